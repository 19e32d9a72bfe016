package overlay

import (
	"path/filepath"
	"syscall"

	"github.com/npm/crux/pkgmap"
	"github.com/npm/crux/resolver"
)

// Module-loader probe results. The loader's stat probe collapses the
// full stat record to a three-way answer; missing paths get a negative
// errno the way the host loader reports them.
const (
	ProbeFile   = 0
	ProbeDir    = 1
	ProbeAbsent = -34
)

// ModuleStat is the loader's "file, directory, or absent?" probe.
// Absent paths whose basename is the dependency directory name report
// as directories so recursive module lookup walks past them and
// terminates without touching disk.
func (o *Overlay) ModuleStat(path string) int {
	res := o.res.Resolve(path)
	switch res.Kind {
	case resolver.File:
		return ProbeFile
	case resolver.Dir:
		return ProbeDir
	case resolver.Missing:
		if filepath.Base(res.Path) == pkgmap.DependencyDir {
			return ProbeDir
		}
		return ProbeAbsent
	}
	info, err := o.host.stat(path)
	if err != nil {
		return ProbeAbsent
	}
	if info.IsDir() {
		return ProbeDir
	}
	return ProbeFile
}

// ModuleReadFile is the loader's direct-read probe, used for manifest
// files it wants to parse without an open file handle. Map-served
// files come back from the blob store, verified.
func (o *Overlay) ModuleReadFile(path string) ([]byte, error) {
	res := o.res.Resolve(path)
	switch res.Kind {
	case resolver.File:
		return o.readBlob(res)
	case resolver.Dir:
		return nil, pathErr("read", path, syscall.EISDIR)
	case resolver.Missing:
		if data, err := o.host.readFile(path); err == nil {
			return data, nil
		}
		return nil, pathErr("open", path, syscall.ENOENT)
	}
	return o.host.readFile(path)
}
