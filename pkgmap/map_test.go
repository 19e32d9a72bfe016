package pkgmap

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/npm/crux/integrity"
)

func digestOf(t *testing.T, data string) integrity.Digest {
	t.Helper()
	d, err := integrity.FromBytes(integrity.Sha512, []byte(data))
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestInsertAndLookup(t *testing.T) {
	m := NewMap()
	d := digestOf(t, "module.x=1;")
	if err := m.Insert([]string{"a", "index.js"}, NewFile(d, 11, 0o644)); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		segments []string
		wantKind string
		wantNil  bool
	}{
		{name: "root", segments: nil, wantKind: KindDir},
		{name: "package dir", segments: []string{"a"}, wantKind: KindDir},
		{name: "file", segments: []string{"a", "index.js"}, wantKind: KindFile},
		{name: "missing file", segments: []string{"a", "missing.js"}, wantNil: true},
		{name: "missing package", segments: []string{"b"}, wantNil: true},
		{name: "file as dir parent", segments: []string{"a", "index.js", "x"}, wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := m.Lookup(tt.segments)
			if tt.wantNil {
				if e != nil {
					t.Fatalf("Lookup(%v) = %+v, want nil", tt.segments, e)
				}
				return
			}
			if e == nil {
				t.Fatalf("Lookup(%v) = nil", tt.segments)
			}
			if e.Kind != tt.wantKind {
				t.Errorf("Lookup(%v).Kind = %s, want %s", tt.segments, e.Kind, tt.wantKind)
			}
		})
	}
}

func TestLookupCaseFoldRetry(t *testing.T) {
	m := NewMap()
	d := digestOf(t, "x")
	if err := m.Insert([]string{"MyPkg", "Index.js"}, NewFile(d, 1, 0o644)); err != nil {
		t.Fatal(err)
	}

	if m.Lookup([]string{"MyPkg", "Index.js"}) == nil {
		t.Error("exact-case lookup failed")
	}
	if m.Lookup([]string{"mypkg", "index.js"}) == nil {
		t.Error("case-insensitive retry should resolve folded segments")
	}
	if m.Lookup([]string{"mypkgx"}) != nil {
		t.Error("fold retry must not match different names")
	}
}

func TestPersistLoadVerify(t *testing.T) {
	projectRoot := t.TempDir()
	lockBytes := []byte(`{"lockfileVersion":2,"packages":{}}`)

	m := NewMap()
	d := digestOf(t, "content")
	if err := m.Insert([]string{"a", "index.js"}, NewFile(d, 7, 0o644)); err != nil {
		t.Fatal(err)
	}
	if err := m.Persist(projectRoot, lockBytes); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	loaded, err := Load(projectRoot)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Empty() {
		t.Fatal("loaded map is empty")
	}
	if !loaded.Verify(lockBytes) {
		t.Error("seal must verify against the lockfile it was persisted with")
	}

	// Mutating any byte of the lockfile renders the seal invalid.
	mutated := append([]byte{}, lockBytes...)
	mutated[0] = '['
	if loaded.Verify(mutated) {
		t.Error("seal must not verify against a mutated lockfile")
	}

	entry := loaded.Lookup([]string{"a", "index.js"})
	if entry == nil {
		t.Fatal("entry lost in persist round-trip")
	}
	if !entry.Digest.Equal(d) || entry.Size != 7 || entry.Mode != 0o644 {
		t.Errorf("entry metadata mismatch after round-trip: %+v", entry)
	}
}

func TestLoadAbsentYieldsEmptyMap(t *testing.T) {
	m, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load on missing file: %v", err)
	}
	if !m.Empty() {
		t.Error("missing map file should load as a typed empty map")
	}
	if m.Verify([]byte("anything")) {
		t.Error("empty map must never verify")
	}
}

func TestLoadRejectsCorruptMapFile(t *testing.T) {
	projectRoot := t.TempDir()
	dir := filepath.Join(projectRoot, DependencyDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, MapFileName), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(projectRoot)
	if !errors.Is(err, ErrInvalidMapFile) {
		t.Errorf("Load on corrupt file = %v, want ErrInvalidMapFile", err)
	}
}

func TestEntryChildNamesSorted(t *testing.T) {
	dir := NewDir()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		dir.Children[name] = NewFile(integrity.Digest{}, 0, 0o644)
	}
	got := dir.ChildNames()
	want := []string{"alpha", "mid", "zeta"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ChildNames = %v, want %v", got, want)
	}
}

func TestNewFileMasksToPermissionBits(t *testing.T) {
	e := NewFile(integrity.Digest{}, 0, fs.ModeDir|0o755)
	if e.Mode != 0o755 {
		t.Errorf("Mode = %o, want 0o755 (9-bit permissions only)", e.Mode)
	}
}

func TestMapCounters(t *testing.T) {
	m := NewMap()
	d := digestOf(t, "c")
	m.Insert([]string{"a", "index.js"}, NewFile(d, 10, 0o644))
	m.Insert([]string{"a", "lib", "util.js"}, NewFile(d, 20, 0o644))
	m.Insert([]string{"b", "index.js"}, NewFile(d, 5, 0o644))

	if got := m.FileCount(); got != 3 {
		t.Errorf("FileCount = %d, want 3", got)
	}
	if got := m.TotalSize(); got != 35 {
		t.Errorf("TotalSize = %d, want 35", got)
	}
}

func TestMapJSONCarriesLockfileIntegrity(t *testing.T) {
	projectRoot := t.TempDir()
	lockBytes := []byte(`{"lockfileVersion":2,"packages":{}}`)
	m := NewMap()
	if err := m.Persist(projectRoot, lockBytes); err != nil {
		t.Fatal(err)
	}

	raw, err := os.ReadFile(filepath.Join(projectRoot, DependencyDir, MapFileName))
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	sealString, ok := decoded["lockfile_integrity"].(string)
	if !ok || sealString == "" {
		t.Fatalf("persisted map missing lockfile_integrity field: %v", decoded)
	}
	if _, err := integrity.Parse(sealString); err != nil {
		t.Errorf("lockfile_integrity is not a canonical digest: %v", err)
	}
}
