package overlay

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/npm/crux/resolver"
)

// materialisedMode is the permission set applied to files copied out
// of the cache on first mutation.
const materialisedMode fs.FileMode = 0o755

// writeFlags are the open flags that trigger materialisation.
const writeFlags = os.O_WRONLY | os.O_RDWR | os.O_APPEND | os.O_CREATE | os.O_TRUNC

// Open opens path read-only through the overlay.
func (o *Overlay) Open(path string) (*os.File, error) {
	return o.OpenFile(path, os.O_RDONLY, 0)
}

// Create opens path for writing, materialising a map-served file
// first.
func (o *Overlay) Create(path string) (*os.File, error) {
	return o.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o666)
}

// OpenFile is the generalised open. Read-only opens of map-served
// files are redirected to the blob's cache path without copying.
// Opens carrying write intent materialise the blob at the real path
// with mode 0o755 and then open that file with the caller's flags,
// so every later operation on the path observes the real file.
func (o *Overlay) OpenFile(path string, flag int, perm fs.FileMode) (*os.File, error) {
	res := o.res.Resolve(path)
	switch res.Kind {
	case resolver.Untracked:
		return o.host.openFile(path, flag, perm)
	case resolver.Missing:
		if flag&os.O_CREATE != 0 {
			return o.host.openFile(path, flag, perm)
		}
		if f, err := o.host.openFile(path, flag, perm); err == nil || !isNotExist(err) {
			return f, err
		}
		return nil, pathErr("open", path, syscall.ENOENT)
	case resolver.Dir:
		if flag&writeFlags != 0 {
			return nil, pathErr("open", path, syscall.EISDIR)
		}
		if f, err := o.host.openFile(path, flag, perm); err == nil {
			return f, nil
		}
		return nil, pathErr("open", path, syscall.EISDIR)
	}

	// File resolution. A previously materialised real file wins.
	if _, err := o.host.lstat(path); err == nil {
		return o.host.openFile(path, flag, perm)
	}

	if flag&writeFlags == 0 {
		cachePath, err := o.res.CachePath(res)
		if err != nil {
			return nil, err
		}
		f, err := o.host.openFile(cachePath, os.O_RDONLY, 0)
		if err != nil {
			if isNotExist(err) {
				return nil, pathErr("open", path, syscall.ENOENT)
			}
			return nil, err
		}
		return f, nil
	}

	if err := o.materialise(path, res); err != nil {
		return nil, err
	}
	// The blob's bytes are the file's initial content; the caller's
	// truncate bit would discard them before the first write.
	return o.host.openFile(path, flag&^os.O_TRUNC, perm)
}

// ReadStream opens a streaming reader for path. Map-served files are
// streamed straight from the cache.
func (o *Overlay) ReadStream(path string) (io.ReadCloser, error) {
	return o.Open(path)
}

// WriteStream opens a streaming writer for path, materialising a
// map-served file first.
func (o *Overlay) WriteStream(path string) (io.WriteCloser, error) {
	return o.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o666)
}

// Access checks accessibility of path for the given unix mode mask
// (F_OK, R_OK, W_OK, X_OK combinations). Map directories accept
// existence and read probes and reject write and execute with EACCES;
// map files delegate to the real check against the cache path.
func (o *Overlay) Access(path string, mode uint32) error {
	res := o.res.Resolve(path)
	switch res.Kind {
	case resolver.Untracked:
		return accessErr(path, unix.Access(path, mode))
	case resolver.Missing:
		if err := unix.Access(path, mode); err == nil {
			return nil
		}
		return pathErr("access", path, syscall.ENOENT)
	case resolver.Dir:
		if mode&(unix.W_OK|unix.X_OK) != 0 {
			return pathErr("access", path, syscall.EACCES)
		}
		return nil
	}
	cachePath, err := o.res.CachePath(res)
	if err != nil {
		return err
	}
	if err := unix.Access(cachePath, mode); err != nil {
		errno, ok := err.(syscall.Errno)
		if !ok {
			return err
		}
		if errno == syscall.ENOENT {
			return pathErr("access", path, syscall.ENOENT)
		}
		return pathErr("access", path, errno)
	}
	return nil
}

// materialise copies the blob behind a File resolution to its nominal
// real path. The copy gets mode 0o755; overwrites of the materialised
// file never propagate back into the blob store.
func (o *Overlay) materialise(path string, res resolver.Resolution) error {
	data, err := o.readBlob(res)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, materialisedMode); err != nil {
		return err
	}
	return o.host.chmod(path, materialisedMode)
}

func accessErr(path string, err error) error {
	if err == nil {
		return nil
	}
	if errno, ok := err.(syscall.Errno); ok {
		return pathErr("access", path, errno)
	}
	return err
}
