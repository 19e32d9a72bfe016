package resolver

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/npm/crux/cas"
	"github.com/npm/crux/pkgmap"
)

// Kind classifies what the resolver found for a path.
type Kind int

const (
	// Untracked paths lie outside the dependency domain; callers defer
	// to the real filesystem.
	Untracked Kind = iota

	// Missing paths lie inside the dependency domain but have no map
	// entry; callers synthesise NOT_FOUND.
	Missing

	// Dir paths resolve to a directory entry in the map.
	Dir

	// File paths resolve to a file entry in the map.
	File
)

func (k Kind) String() string {
	switch k {
	case Untracked:
		return "untracked"
	case Missing:
		return "missing"
	case Dir:
		return "dir"
	case File:
		return "file"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Resolution is the resolver's answer for one absolute path.
type Resolution struct {
	Kind Kind

	// Path is the cleaned absolute path that was resolved.
	Path string

	// Entry is the map entry for Dir and File resolutions. For the
	// virtual empty node_modules directory it is a fresh empty dir.
	Entry *pkgmap.Entry
}

// Resolver answers path queries against an immutable package map and
// the blob cache. All methods are pure over the loaded map and safe
// for unsynchronised concurrent use.
type Resolver struct {
	depRoot string
	m       *pkgmap.Map
	store   *cas.Store
}

// New creates a Resolver for a project. projectPrefix is the project
// root; the dependency root is its node_modules directory.
func New(projectPrefix string, m *pkgmap.Map, store *cas.Store) *Resolver {
	return &Resolver{
		depRoot: filepath.Join(filepath.Clean(projectPrefix), pkgmap.DependencyDir),
		m:       m,
		store:   store,
	}
}

// DependencyRoot returns the absolute path the map is rooted at.
func (r *Resolver) DependencyRoot() string {
	return r.depRoot
}

// Map returns the package map the resolver serves.
func (r *Resolver) Map() *pkgmap.Map {
	return r.m
}

// Store returns the blob store the resolver serves from.
func (r *Resolver) Store() *cas.Store {
	return r.store
}

// Resolve classifies an absolute path against the map. Paths outside
// the dependency root are Untracked. Inside it, a successful tree walk
// yields Dir or File; a failed walk yields Missing, except that a path
// whose final segment is the dependency directory name and whose
// parent lies in the dependency domain resolves as a virtual empty
// directory. That special case makes recursive module lookup terminate
// without touching disk.
func (r *Resolver) Resolve(path string) Resolution {
	abs := filepath.Clean(path)

	if abs == r.depRoot {
		return Resolution{Kind: Dir, Path: abs, Entry: r.m.Root}
	}
	rel, ok := strings.CutPrefix(abs, r.depRoot+string(filepath.Separator))
	if !ok {
		return Resolution{Kind: Untracked, Path: abs}
	}

	segments := strings.Split(filepath.ToSlash(rel), "/")
	if entry := r.m.Lookup(segments); entry != nil {
		kind := File
		if entry.IsDir() {
			kind = Dir
		}
		return Resolution{Kind: kind, Path: abs, Entry: entry}
	}

	if segments[len(segments)-1] == pkgmap.DependencyDir {
		return Resolution{Kind: Dir, Path: abs, Entry: pkgmap.NewDir()}
	}
	return Resolution{Kind: Missing, Path: abs}
}

// CachePath returns the blob-store path backing a File resolution. It
// is pure and does not check that the blob exists.
func (r *Resolver) CachePath(res Resolution) (string, error) {
	if res.Kind != File {
		return "", fmt.Errorf("%w: %s is %s", ErrNotFile, res.Path, res.Kind)
	}
	return r.store.PathFor(res.Entry.Digest), nil
}
