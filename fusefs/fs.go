package fusefs

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"

	"github.com/npm/crux/resolver"
)

// FS exposes a project's package map as a read-only FUSE filesystem.
// The mount shows exactly what the overlay serves: the dependency tree
// that exists only as map entries and cache blobs. Useful for
// inspecting an installation without materialising it.
type FS struct {
	res *resolver.Resolver
}

// NewFS creates a filesystem instance over a resolver.
func NewFS(res *resolver.Resolver) *FS {
	return &FS{res: res}
}

// Root returns the root directory node, the dependency root itself.
func (f *FS) Root() (fs.Node, error) {
	return &Dir{fs: f, path: f.res.DependencyRoot()}, nil
}

// Dir is a directory node backed by a Dir resolution.
type Dir struct {
	fs   *FS
	path string
}

// Attr returns directory attributes from the stat service.
func (d *Dir) Attr(ctx context.Context, a *fuse.Attr) error {
	res := d.fs.res.Resolve(d.path)
	if res.Kind != resolver.Dir {
		return syscall.ENOENT
	}
	st, err := d.fs.res.Stat(res, false)
	if err != nil {
		return syscall.ENOENT
	}
	a.Inode = st.Ino
	a.Mode = os.ModeDir | st.Mode
	a.Mtime = st.ModTime
	a.Ctime = st.ModTime
	a.Atime = time.Now()
	return nil
}

// Lookup resolves one name under this directory to a node.
func (d *Dir) Lookup(ctx context.Context, name string) (fs.Node, error) {
	res := d.fs.res.Resolve(filepath.Join(d.path, name))
	switch res.Kind {
	case resolver.Dir:
		return &Dir{fs: d.fs, path: res.Path}, nil
	case resolver.File:
		return &File{fs: d.fs, path: res.Path}, nil
	}
	return nil, syscall.ENOENT
}

// ReadDirAll lists the directory from the map's children.
func (d *Dir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	res := d.fs.res.Resolve(d.path)
	if res.Kind != resolver.Dir {
		return nil, syscall.ENOTDIR
	}

	var dirents []fuse.Dirent
	for _, name := range res.Entry.ChildNames() {
		child := d.fs.res.Resolve(filepath.Join(d.path, name))
		st, err := d.fs.res.Stat(child, false)
		if err != nil {
			continue
		}
		entryType := fuse.DT_File
		if child.Kind == resolver.Dir {
			entryType = fuse.DT_Dir
		}
		dirents = append(dirents, fuse.Dirent{
			Inode: st.Ino,
			Name:  name,
			Type:  entryType,
		})
	}
	return dirents, nil
}

// File is a file node backed by a File resolution.
type File struct {
	fs   *FS
	path string
	data []byte // cached blob content
	mu   sync.RWMutex
}

// Attr returns file attributes from the stat service.
func (f *File) Attr(ctx context.Context, a *fuse.Attr) error {
	res := f.fs.res.Resolve(f.path)
	if res.Kind != resolver.File {
		return syscall.ENOENT
	}
	st, err := f.fs.res.Stat(res, false)
	if err != nil {
		return syscall.ENOENT
	}
	a.Inode = st.Ino
	a.Mode = st.Mode
	a.Size = uint64(st.Size)
	a.Mtime = st.ModTime
	a.Ctime = st.ModTime
	a.Atime = time.Now()
	return nil
}

// ReadAll returns the blob bytes, verified against the entry's digest.
func (f *File) ReadAll(ctx context.Context) ([]byte, error) {
	f.mu.RLock()
	if f.data != nil {
		data := f.data
		f.mu.RUnlock()
		return data, nil
	}
	f.mu.RUnlock()

	res := f.fs.res.Resolve(f.path)
	if res.Kind != resolver.File {
		return nil, syscall.ENOENT
	}
	data, err := f.fs.res.Read(res)
	if err != nil {
		return nil, syscall.EIO
	}

	f.mu.Lock()
	f.data = data
	f.mu.Unlock()
	return data, nil
}
