package pkgmap

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/npm/crux/integrity"
)

// Entry kinds.
const (
	KindFile = "file"
	KindDir  = "dir"
)

// MapFileName is the persisted map file, written under the project's
// dependency directory. It carries the lockfile seal, which alone
// establishes validity; the serialised tree is a convenience and can
// always be rebuilt from the lockfile.
const MapFileName = ".pkglock-hash"

// DependencyDir is the conventional dependency directory name the map
// is rooted at.
const DependencyDir = "node_modules"

// Entry is one node of the package map: a file backed by a blob in the
// cache, or a directory whose children are further entries. Names in
// Children are single path segments, stored as-is with no case
// normalisation.
type Entry struct {
	Kind     string            `json:"kind"`
	Digest   integrity.Digest  `json:"digest,omitzero"`
	Size     int64             `json:"size,omitempty"`
	Mode     fs.FileMode       `json:"mode,omitempty"`
	Children map[string]*Entry `json:"children,omitempty"`
}

// NewDir returns an empty directory entry.
func NewDir() *Entry {
	return &Entry{Kind: KindDir, Children: map[string]*Entry{}}
}

// NewFile returns a file entry for a blob.
func NewFile(digest integrity.Digest, size int64, mode fs.FileMode) *Entry {
	return &Entry{Kind: KindFile, Digest: digest, Size: size, Mode: mode & fs.ModePerm}
}

// IsDir reports whether the entry is a directory.
func (e *Entry) IsDir() bool {
	return e.Kind == KindDir
}

// Child returns the child entry for a single name segment, or nil.
func (e *Entry) Child(name string) *Entry {
	if e == nil || !e.IsDir() {
		return nil
	}
	return e.Children[name]
}

// ChildNames returns the sorted child names of a directory entry.
func (e *Entry) ChildNames() []string {
	if e == nil || !e.IsDir() {
		return nil
	}
	names := make([]string, 0, len(e.Children))
	for name := range e.Children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Map is the package map for one project: a finite tree rooted at the
// project's dependency directory, pure data, immutable once built.
type Map struct {
	// Built is the map build time; the overlay serves it as the
	// synthetic mtime of every entry.
	Built time.Time `json:"built"`

	// Seal is the integrity of the lockfile the map was built from.
	Seal integrity.Digest `json:"lockfile_integrity,omitzero"`

	// Root is the dir entry for the dependency directory itself.
	Root *Entry `json:"root"`
}

// NewMap returns a typed empty map.
func NewMap() *Map {
	return &Map{Root: NewDir()}
}

// Empty reports whether the map holds no entries.
func (m *Map) Empty() bool {
	return m.Root == nil || len(m.Root.Children) == 0
}

// Lookup walks the tree by path segments relative to the dependency
// root. An empty segment list yields the root. Returns nil when any
// segment is missing. Lookup is an exact match first; if that fails, a
// single case-insensitive retry pass is made per segment, so maps
// written on case-sensitive hosts still resolve on hosts that fold
// case.
func (m *Map) Lookup(segments []string) *Entry {
	entry := m.Root
	for _, seg := range segments {
		next := entry.Child(seg)
		if next == nil {
			next = childFold(entry, seg)
		}
		if next == nil {
			return nil
		}
		entry = next
	}
	return entry
}

// Insert places a file entry at the path given by segments, creating
// intermediate directories. Used by the builder; the map must not be
// mutated once it is serving an overlay.
func (m *Map) Insert(segments []string, entry *Entry) error {
	if len(segments) == 0 {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	node := m.Root
	for _, seg := range segments[:len(segments)-1] {
		child := node.Children[seg]
		if child == nil {
			child = NewDir()
			node.Children[seg] = child
		}
		if !child.IsDir() {
			return fmt.Errorf("%w: %s is a file", ErrInvalidPath, seg)
		}
		node = child
	}
	node.Children[segments[len(segments)-1]] = entry
	return nil
}

// FileCount returns the number of file entries in the map.
func (m *Map) FileCount() int {
	return countFiles(m.Root)
}

// TotalSize returns the summed size of all file entries.
func (m *Map) TotalSize() int64 {
	return sumSizes(m.Root)
}

// Load reads the persisted map from a project root. A missing map file
// yields a typed empty map, not an error.
func Load(projectRoot string) (*Map, error) {
	data, err := os.ReadFile(filepath.Join(projectRoot, DependencyDir, MapFileName))
	if os.IsNotExist(err) {
		return NewMap(), nil
	}
	if err != nil {
		return nil, err
	}
	var m Map
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMapFile, err)
	}
	if m.Root == nil {
		m.Root = NewDir()
	}
	return &m, nil
}

// Verify reports whether the map's seal matches the given lockfile
// bytes. A map with no seal never verifies.
func (m *Map) Verify(lockfileBytes []byte) bool {
	if m.Seal.IsZero() {
		return false
	}
	return m.Seal.Verify(lockfileBytes) == nil
}

// Persist writes the map plus a seal computed over lockfileBytes under
// the project's dependency directory. The file is published with a
// rename so concurrent readers see either the previous or the next
// version, never a partial file.
func (m *Map) Persist(projectRoot string, lockfileBytes []byte) error {
	seal, err := integrity.FromBytes(integrity.DefaultAlgorithm, lockfileBytes)
	if err != nil {
		return err
	}
	m.Seal = seal

	dir := filepath.Join(projectRoot, DependencyDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, MapFileName+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, filepath.Join(dir, MapFileName))
}

func childFold(dir *Entry, name string) *Entry {
	if dir == nil || !dir.IsDir() {
		return nil
	}
	for childName, child := range dir.Children {
		if foldEqual(childName, name) {
			return child
		}
	}
	return nil
}

// foldEqual is ASCII case-insensitive comparison. Package names on the
// registry are ASCII; anything else falls back to exact match.
func foldEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func countFiles(e *Entry) int {
	if e == nil {
		return 0
	}
	if !e.IsDir() {
		return 1
	}
	n := 0
	for _, child := range e.Children {
		n += countFiles(child)
	}
	return n
}

func sumSizes(e *Entry) int64 {
	if e == nil {
		return 0
	}
	if !e.IsDir() {
		return e.Size
	}
	var n int64
	for _, child := range e.Children {
		n += sumSizes(child)
	}
	return n
}
