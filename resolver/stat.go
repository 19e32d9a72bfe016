package resolver

import (
	"fmt"
	"hash/fnv"
	"io/fs"
	"path/filepath"
	"time"
)

// Stat is a synthetic stat record for a map-served path. Mtime and Ino
// are synthetic but stable across a process lifetime for a given
// (path, digest) pair: mtime is the map build time, ino is derived
// from the blob digest (or the path, for directories).
type Stat struct {
	Size    int64
	Mode    fs.FileMode
	Kind    Kind
	ModTime time.Time
	Ino     uint64

	path string
}

// Stat produces a stat record for a Dir or File resolution. With
// verify set, file stats also assert that the blob is present in the
// store, failing with cas.ErrNotFound otherwise.
func (r *Resolver) Stat(res Resolution, verify bool) (Stat, error) {
	switch res.Kind {
	case File:
		if verify {
			if _, err := r.store.Size(res.Entry.Digest); err != nil {
				return Stat{}, err
			}
		}
		return Stat{
			Size:    res.Entry.Size,
			Mode:    res.Entry.Mode,
			Kind:    File,
			ModTime: r.m.Built,
			Ino:     res.Entry.Digest.Ino(),
			path:    res.Path,
		}, nil
	case Dir:
		return Stat{
			Size:    0,
			Mode:    0o755,
			Kind:    Dir,
			ModTime: r.m.Built,
			Ino:     pathIno(res.Path),
			path:    res.Path,
		}, nil
	case Missing:
		return Stat{}, fmt.Errorf("%w: %s", ErrNotFound, res.Path)
	}
	return Stat{}, fmt.Errorf("%w: %s", ErrUntracked, res.Path)
}

// Read returns the blob bytes for a File resolution, fully verified
// against the entry's digest. Dir resolutions fail with ErrIsDir and
// Missing ones with ErrNotFound.
func (r *Resolver) Read(res Resolution) ([]byte, error) {
	switch res.Kind {
	case File:
		return r.store.ReadAll(res.Entry.Digest)
	case Dir:
		return nil, fmt.Errorf("%w: %s", ErrIsDir, res.Path)
	case Missing:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, res.Path)
	}
	return nil, fmt.Errorf("%w: %s", ErrUntracked, res.Path)
}

// FileInfo adapts the stat record to fs.FileInfo for callers that
// expect the standard interface. Sys returns the Stat itself.
func (s Stat) FileInfo() fs.FileInfo {
	return statInfo{s}
}

type statInfo struct {
	s Stat
}

func (i statInfo) Name() string { return filepath.Base(i.s.path) }
func (i statInfo) Size() int64  { return i.s.Size }
func (i statInfo) Mode() fs.FileMode {
	if i.s.Kind == Dir {
		return fs.ModeDir | i.s.Mode
	}
	return i.s.Mode
}
func (i statInfo) ModTime() time.Time { return i.s.ModTime }
func (i statInfo) IsDir() bool        { return i.s.Kind == Dir }
func (i statInfo) Sys() any           { return i.s }

// pathIno derives a stable directory inode from the path. Directories
// have no digest, so the path is the only stable identity available.
func pathIno(path string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(path))
	return h.Sum64()
}
