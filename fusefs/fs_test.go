package fusefs

import (
	"context"
	"testing"
	"time"

	"bazil.org/fuse"

	"github.com/npm/crux/cas"
	"github.com/npm/crux/pkgmap"
	"github.com/npm/crux/resolver"
)

func testFS(t *testing.T) *FS {
	t.Helper()
	store, err := cas.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	d, err := store.Put([]byte("module.x=1;"))
	if err != nil {
		t.Fatal(err)
	}
	m := pkgmap.NewMap()
	m.Built = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m.Insert([]string{"a", "index.js"}, pkgmap.NewFile(d, 11, 0o644))

	return NewFS(resolver.New(t.TempDir(), m, store))
}

func TestRootLookupAndRead(t *testing.T) {
	fsys := testFS(t)
	ctx := context.Background()

	root, err := fsys.Root()
	if err != nil {
		t.Fatal(err)
	}
	dir := root.(*Dir)

	node, err := dir.Lookup(ctx, "a")
	if err != nil {
		t.Fatalf("Lookup(a): %v", err)
	}
	pkgDir := node.(*Dir)

	node, err = pkgDir.Lookup(ctx, "index.js")
	if err != nil {
		t.Fatalf("Lookup(index.js): %v", err)
	}
	file := node.(*File)

	data, err := file.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(data) != "module.x=1;" {
		t.Errorf("ReadAll = %q", data)
	}

	// Second read hits the node cache and must match.
	data2, err := file.ReadAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if string(data2) != string(data) {
		t.Error("cached read differs")
	}
}

func TestLookupMissing(t *testing.T) {
	fsys := testFS(t)
	root, _ := fsys.Root()
	if _, err := root.(*Dir).Lookup(context.Background(), "nope"); err == nil {
		t.Error("Lookup of a missing name must fail")
	}
}

func TestAttrAndReadDirAll(t *testing.T) {
	fsys := testFS(t)
	ctx := context.Background()
	root, _ := fsys.Root()
	dir := root.(*Dir)

	var attr fuse.Attr
	if err := dir.Attr(ctx, &attr); err != nil {
		t.Fatalf("Attr: %v", err)
	}
	if !attr.Mode.IsDir() {
		t.Error("root attr must be a directory")
	}

	dirents, err := dir.ReadDirAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(dirents) != 1 || dirents[0].Name != "a" || dirents[0].Type != fuse.DT_Dir {
		t.Errorf("ReadDirAll = %+v", dirents)
	}

	node, _ := dir.Lookup(ctx, "a")
	fileEnts, err := node.(*Dir).ReadDirAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(fileEnts) != 1 || fileEnts[0].Name != "index.js" || fileEnts[0].Type != fuse.DT_File {
		t.Errorf("package ReadDirAll = %+v", fileEnts)
	}

	var fattr fuse.Attr
	fnode, _ := node.(*Dir).Lookup(ctx, "index.js")
	if err := fnode.(*File).Attr(ctx, &fattr); err != nil {
		t.Fatal(err)
	}
	if fattr.Size != 11 || fattr.Inode == 0 {
		t.Errorf("file attr = %+v", fattr)
	}
}
