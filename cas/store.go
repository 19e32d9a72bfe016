package cas

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/taigrr/colorhash"

	"github.com/npm/crux/integrity"
)

// Directory names within the cache root. ContentDir matches the
// community cacache layout so existing caches can be reused as-is.
const (
	ContentDir = "content-v2"
	TmpDir     = "tmp"
)

// tmpShards is the number of temp-directory shards. Concurrent
// installs write their in-flight blobs across shards so a single
// directory never accumulates an unbounded number of entries.
const tmpShards = 256

// Store is a content-addressed blob store rooted at a cache directory.
// Blobs are stored once per digest under a stable, digest-derived path
// and published with an atomic rename, so the store is safe to share
// across processes.
type Store struct {
	root string
}

// NewStore creates a Store rooted at the given directory, creating the
// layout if it does not exist.
func NewStore(root string) (*Store, error) {
	for _, dir := range []string{root, filepath.Join(root, TmpDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory %s: %w", dir, err)
		}
	}
	return &Store{root: root}, nil
}

// Root returns the cache root directory.
func (s *Store) Root() string {
	return s.root
}

// PathFor returns the absolute on-disk path for a digest. It is a pure
// function of the digest and the cache root and never touches disk:
// <root>/content-v2/<algorithm>/<first-2>/<next-2>/<rest>.
func (s *Store) PathFor(d integrity.Digest) string {
	h := d.Hex()
	return filepath.Join(s.root, ContentDir, d.Algorithm, h[:2], h[2:4], h[4:])
}

// Put computes the integrity of data, writes the blob under the
// content-addressed layout, and returns the digest. Existing blobs are
// not rewritten, and concurrent puts of the same digest cannot corrupt
// the entry: the blob is written to a temp file and published with a
// rename, so the last writer wins at the byte level with identical
// content by construction.
func (s *Store) Put(data []byte) (integrity.Digest, error) {
	return s.PutAs(integrity.DefaultAlgorithm, data)
}

// PutAs is Put with an explicit digest algorithm.
func (s *Store) PutAs(algorithm string, data []byte) (integrity.Digest, error) {
	d, err := integrity.FromBytes(algorithm, data)
	if err != nil {
		return integrity.Digest{}, err
	}

	dest := s.PathFor(d)
	if _, err := os.Stat(dest); err == nil {
		return d, nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return integrity.Digest{}, fmt.Errorf("creating content directory: %w", err)
	}

	tmp, err := s.tempFile(d)
	if err != nil {
		return integrity.Digest{}, err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return integrity.Digest{}, fmt.Errorf("writing blob: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return integrity.Digest{}, fmt.Errorf("syncing blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return integrity.Digest{}, err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return integrity.Digest{}, fmt.Errorf("publishing blob: %w", err)
	}
	return d, nil
}

// Has reports whether the blob for d is present on disk.
func (s *Store) Has(d integrity.Digest) bool {
	_, err := os.Stat(s.PathFor(d))
	return err == nil
}

// Open returns a streamed reader over the blob. Streamed reads skip
// integrity verification for performance; callers that need it can
// wrap the reader with integrity.NewVerifier. Fails with ErrNotFound
// if the blob is absent.
func (s *Store) Open(d integrity.Digest) (io.ReadCloser, error) {
	f, err := os.Open(s.PathFor(d))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, d)
		}
		return nil, err
	}
	return f, nil
}

// ReadAll reads the full blob and verifies it against the digest.
// Fails with ErrNotFound if the blob is absent and ErrIntegrity if the
// on-disk bytes do not hash to d.
func (s *Store) ReadAll(d integrity.Digest) ([]byte, error) {
	data, err := os.ReadFile(s.PathFor(d))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, d)
		}
		return nil, err
	}
	if err := d.Verify(data); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIntegrity, d, err)
	}
	return data, nil
}

// Size returns the on-disk size of the blob for d.
func (s *Store) Size(d integrity.Digest) (int64, error) {
	info, err := os.Stat(s.PathFor(d))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, d)
		}
		return 0, err
	}
	return info.Size(), nil
}

// tempFile creates an in-flight blob file in a shard of the temp
// directory. The shard index is a color hash of the digest so writers
// of unrelated content land in different directories.
func (s *Store) tempFile(d integrity.Digest) (*os.File, error) {
	shard := fmt.Sprintf("%02x", colorhash.HashString(d.String())%tmpShards)
	dir := filepath.Join(s.root, TmpDir, shard)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating temp shard: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, uuid.NewString()), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating temp blob: %w", err)
	}
	return f, nil
}
