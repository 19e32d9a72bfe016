package overlay

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/npm/crux/cas"
	"github.com/npm/crux/pkgmap"
	"github.com/npm/crux/resolver"
)

// realFS holds the host filesystem primitives, captured once at
// install time; wrappers call these primitives through this reference.
// Access checks (unix.Access), directory creation (os.MkdirAll) and
// the materialising write (os.WriteFile) are not captured here and
// call the host directly. Installation is idempotent but not
// reversible.
type realFS struct {
	stat     func(string) (fs.FileInfo, error)
	lstat    func(string) (fs.FileInfo, error)
	readFile func(string) ([]byte, error)
	readDir  func(string) ([]os.DirEntry, error)
	openFile func(string, int, fs.FileMode) (*os.File, error)
	chmod    func(string, fs.FileMode) error
	remove   func(string) error
	realpath func(string) (string, error)
}

func captureRealFS() realFS {
	return realFS{
		stat:     os.Stat,
		lstat:    os.Lstat,
		readFile: os.ReadFile,
		readDir:  os.ReadDir,
		openFile: os.OpenFile,
		chmod:    os.Chmod,
		remove:   os.Remove,
		realpath: filepath.EvalSymlinks,
	}
}

// Overlay is the typed filesystem facade. Each operation consults the
// resolver and either short-circuits the request to the map and blob
// cache, rewrites it to point into the cache, or defers to the real
// filesystem. The overlay holds no per-call state; all methods are
// safe for concurrent use.
type Overlay struct {
	cfg  Config
	res  *resolver.Resolver
	host realFS
}

// Install loads the project's package map and constructs the overlay.
// Call it once per process, before code that expects the dependency
// tree runs. The loaded map is read-only for the process lifetime;
// mutating filesystem calls never update it.
func Install(cfg Config) (*Overlay, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	store, err := cas.NewStore(cfg.CacheRoot)
	if err != nil {
		return nil, err
	}
	m, err := pkgmap.Load(cfg.ProjectPrefix)
	if err != nil {
		return nil, err
	}
	return &Overlay{
		cfg:  cfg,
		res:  resolver.New(cfg.ProjectPrefix, m, store),
		host: captureRealFS(),
	}, nil
}

// NewWithResolver constructs an overlay over an existing resolver.
// Used by the installer bridge after a fresh map build, and by tests.
func NewWithResolver(cfg Config, res *resolver.Resolver) *Overlay {
	return &Overlay{cfg: cfg, res: res, host: captureRealFS()}
}

// Config returns the immutable install-time configuration.
func (o *Overlay) Config() Config {
	return o.cfg
}

// Resolver returns the overlay's resolver.
func (o *Overlay) Resolver() *resolver.Resolver {
	return o.res
}

// Stat returns file info for path. The real filesystem is consulted
// first and wins when it has the path; only a real ENOENT opens the
// door to the resolver. Any other real error propagates verbatim.
func (o *Overlay) Stat(path string) (fs.FileInfo, error) {
	info, err := o.host.stat(path)
	if err == nil || !isNotExist(err) {
		return info, err
	}
	return o.syntheticStat("stat", path, err)
}

// Lstat is Stat without following a trailing symlink on the real
// filesystem. Map entries are never symlinks, so the synthetic half is
// identical to Stat's.
func (o *Overlay) Lstat(path string) (fs.FileInfo, error) {
	info, err := o.host.lstat(path)
	if err == nil || !isNotExist(err) {
		return info, err
	}
	return o.syntheticStat("lstat", path, err)
}

func (o *Overlay) syntheticStat(op, path string, realErr error) (fs.FileInfo, error) {
	res := o.res.Resolve(path)
	switch res.Kind {
	case resolver.Untracked:
		return nil, realErr
	case resolver.Missing:
		return nil, pathErr(op, path, syscall.ENOENT)
	}
	st, err := o.res.Stat(res, false)
	if err != nil {
		return nil, pathErr(op, path, syscall.ENOENT)
	}
	return st.FileInfo(), nil
}

// Realpath resolves path to a canonical absolute path. For a File
// resolution the canonical location is the blob's cache path.
func (o *Overlay) Realpath(path string) (string, error) {
	real, err := o.host.realpath(path)
	if err == nil || !isNotExist(err) {
		return real, err
	}
	res := o.res.Resolve(path)
	switch res.Kind {
	case resolver.Untracked:
		return "", err
	case resolver.Missing:
		return "", pathErr("realpath", path, syscall.ENOENT)
	case resolver.File:
		return o.res.CachePath(res)
	}
	return res.Path, nil
}

// Exists reports whether path exists through the overlay.
func (o *Overlay) Exists(path string) bool {
	res := o.res.Resolve(path)
	switch res.Kind {
	case resolver.Dir, resolver.File:
		return true
	case resolver.Missing:
		// The real file may have been materialised at this path.
		_, err := o.host.stat(path)
		return err == nil
	}
	_, err := o.host.stat(path)
	return err == nil
}

// ReadFile returns the contents of path. The real file wins when both
// it and a map entry exist; a map-served file is read from the blob
// store with mandatory integrity verification.
func (o *Overlay) ReadFile(path string) ([]byte, error) {
	data, err := o.host.readFile(path)
	if err == nil || !isNotExist(err) {
		return data, err
	}
	res := o.res.Resolve(path)
	switch res.Kind {
	case resolver.Untracked:
		return nil, err
	case resolver.Missing:
		return nil, pathErr("open", path, syscall.ENOENT)
	case resolver.Dir:
		return nil, pathErr("read", path, syscall.EISDIR)
	}
	return o.readBlob(res)
}

// ReadDir enumerates a directory, merging the real listing with the
// map's children. If only the map side exists, its children are
// returned alone; duplicated names collapse to one entry. A File
// resolution where a directory was expected fails with ENOTDIR.
func (o *Overlay) ReadDir(path string) ([]string, error) {
	entries, realErr := o.host.readDir(path)
	if realErr != nil && !isNotExist(realErr) {
		return nil, realErr
	}

	res := o.res.Resolve(path)
	switch res.Kind {
	case resolver.Dir:
		seen := make(map[string]bool)
		var names []string
		if realErr == nil {
			for _, e := range entries {
				if !seen[e.Name()] {
					seen[e.Name()] = true
					names = append(names, e.Name())
				}
			}
		}
		for _, name := range res.Entry.ChildNames() {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
		sort.Strings(names)
		return names, nil
	case resolver.File:
		if realErr == nil {
			return dirEntryNames(entries), nil
		}
		return nil, pathErr("readdirent", path, syscall.ENOTDIR)
	}

	if realErr == nil {
		return dirEntryNames(entries), nil
	}
	if res.Kind == resolver.Missing {
		return nil, pathErr("open", path, syscall.ENOENT)
	}
	return nil, realErr
}

// Remove unlinks the real file at path, if any. Map entries are
// unaffected: a materialised copy is removed, the map keeps serving.
func (o *Overlay) Remove(path string) error {
	return o.host.remove(path)
}

// Chmod changes the mode of path. A map directory is made real with
// the requested mode; a map file is materialised first. Both are the
// standard copy-on-write trigger for permission mutations.
func (o *Overlay) Chmod(path string, mode fs.FileMode) error {
	res := o.res.Resolve(path)
	switch res.Kind {
	case resolver.Untracked:
		return o.host.chmod(path, mode)
	case resolver.Missing:
		if _, err := o.host.stat(path); err == nil {
			return o.host.chmod(path, mode)
		}
		return pathErr("chmod", path, syscall.ENOENT)
	case resolver.Dir:
		if err := os.MkdirAll(path, mode); err != nil {
			return err
		}
		return o.host.chmod(path, mode)
	}
	if _, err := o.host.stat(path); err != nil {
		if err := o.materialise(path, res); err != nil {
			return err
		}
	}
	return o.host.chmod(path, mode)
}

func (o *Overlay) readBlob(res resolver.Resolution) ([]byte, error) {
	data, err := o.res.Read(res)
	if err != nil {
		return nil, o.blobError("read", res.Path, err)
	}
	return data, nil
}

func dirEntryNames(entries []os.DirEntry) []string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}
