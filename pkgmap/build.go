package pkgmap

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"

	"github.com/npm/crux/integrity"
)

// FileInfo describes one file of an installed package: its blob digest
// plus the stat metadata the overlay will serve for it.
type FileInfo struct {
	Digest integrity.Digest
	Size   int64
	Mode   fs.FileMode
}

// Manifest maps package-relative file paths (slash-separated) to their
// file info. It is produced by whatever populated the blob cache for
// the package, typically the installer's extractor.
type Manifest map[string]FileInfo

// ManifestSource supplies the file manifest for a package named in the
// lockfile. lockPath is the package's path key in the lockfile
// packages table (e.g. "node_modules/a/node_modules/b").
type ManifestSource interface {
	Manifest(lockPath string, pkg *LockPackage) (Manifest, error)
}

// ManifestFunc adapts a function to the ManifestSource interface.
type ManifestFunc func(lockPath string, pkg *LockPackage) (Manifest, error)

// Manifest calls f.
func (f ManifestFunc) Manifest(lockPath string, pkg *LockPackage) (Manifest, error) {
	return f(lockPath, pkg)
}

// Build walks the lockfile's dependency graph in deterministic order
// and emits the map tree rooted at the project's dependency directory.
// Packages are processed parents before children (lexicographic order
// of lockfile paths guarantees this); within a package, files are
// inserted in sorted name order. Two builds from the same lockfile and
// manifests yield identical maps, so downstream tooling can diff them.
//
// Bundled and symlinked (directory-spec) dependencies are not special:
// their manifests mirror the source directory and contribute dir and
// file entries like any other package.
func Build(lock *Lockfile, manifests ManifestSource) (*Map, error) {
	m := NewMap()
	m.Built = time.Now().UTC().Truncate(time.Second)

	for _, lockPath := range lock.DependencyPaths() {
		pkg := lock.Packages[lockPath]
		manifest, err := manifests.Manifest(lockPath, pkg)
		if err != nil {
			return nil, fmt.Errorf("manifest for %s: %w", lockPath, err)
		}

		// The lockfile path starts with the dependency directory name,
		// which the map root already represents.
		pkgSegments, err := relativeSegments(lockPath)
		if err != nil {
			return nil, err
		}

		names := make([]string, 0, len(manifest))
		for name := range manifest {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			info := manifest[name]
			fileSegments := append(append([]string{}, pkgSegments...), strings.Split(name, "/")...)
			entry := NewFile(info.Digest, info.Size, info.Mode)
			if err := m.Insert(fileSegments, entry); err != nil {
				return nil, fmt.Errorf("inserting %s/%s: %w", lockPath, name, err)
			}
		}
	}
	return m, nil
}

// relativeSegments strips the leading dependency directory from a
// lockfile path and splits the rest into segments.
func relativeSegments(lockPath string) ([]string, error) {
	prefix := DependencyDir + "/"
	if !strings.HasPrefix(lockPath, prefix) {
		return nil, fmt.Errorf("%w: lockfile path %q is not under %s", ErrInvalidPath, lockPath, DependencyDir)
	}
	return strings.Split(strings.TrimPrefix(lockPath, prefix), "/"), nil
}
