package integrity

import (
	"bytes"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/zeebo/blake3"
)

// Supported digest algorithms. Sha512 is the default for new blobs;
// sha1 is accepted for verifying legacy registry metadata only.
const (
	Sha512 = "sha512"
	Sha256 = "sha256"
	Sha1   = "sha1"
	Blake3 = "blake3"
)

// DefaultAlgorithm is used when computing digests for new content.
const DefaultAlgorithm = Sha512

// Digest is a self-describing integrity value in ssri form:
// "<algorithm>-<base64 hash>". Equality is byte-identical over the
// canonical string form. A Digest is the sole identity of a blob.
type Digest struct {
	Algorithm string
	Sum       []byte
}

// Parse parses a canonical "<algorithm>-<base64>" string into a Digest.
func Parse(s string) (Digest, error) {
	algo, b64, ok := strings.Cut(s, "-")
	if !ok || algo == "" || b64 == "" {
		return Digest{}, fmt.Errorf("%w: %q", ErrMalformedDigest, s)
	}
	if !knownAlgorithm(algo) {
		return Digest{}, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algo)
	}
	sum, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return Digest{}, fmt.Errorf("%w: %q: %v", ErrMalformedDigest, s, err)
	}
	return Digest{Algorithm: algo, Sum: sum}, nil
}

// FromBytes computes the digest of data with the given algorithm.
func FromBytes(algorithm string, data []byte) (Digest, error) {
	h, err := newHasher(algorithm)
	if err != nil {
		return Digest{}, err
	}
	h.Write(data)
	return Digest{Algorithm: algorithm, Sum: h.Sum(nil)}, nil
}

// FromReader computes the digest of everything read from r.
func FromReader(algorithm string, r io.Reader) (Digest, error) {
	h, err := newHasher(algorithm)
	if err != nil {
		return Digest{}, err
	}
	if _, err := io.Copy(h, r); err != nil {
		return Digest{}, err
	}
	return Digest{Algorithm: algorithm, Sum: h.Sum(nil)}, nil
}

// String returns the canonical "<algorithm>-<base64>" form.
func (d Digest) String() string {
	return d.Algorithm + "-" + base64.StdEncoding.EncodeToString(d.Sum)
}

// Hex returns the hash as lowercase hex, used for on-disk cache layout.
func (d Digest) Hex() string {
	return hex.EncodeToString(d.Sum)
}

// IsZero reports whether d is the zero Digest.
func (d Digest) IsZero() bool {
	return d.Algorithm == "" && len(d.Sum) == 0
}

// Equal reports byte-identical equality over the canonical form.
func (d Digest) Equal(other Digest) bool {
	return d.Algorithm == other.Algorithm && bytes.Equal(d.Sum, other.Sum)
}

// Verify recomputes the digest of data and compares it against d.
func (d Digest) Verify(data []byte) error {
	got, err := FromBytes(d.Algorithm, data)
	if err != nil {
		return err
	}
	if !d.Equal(got) {
		return fmt.Errorf("%w: want %s, got %s", ErrIntegrityMismatch, d, got)
	}
	return nil
}

// Ino derives a stable 64-bit inode number from the digest. Software
// that relies on inode identity observes the same value for the same
// content across a process lifetime.
func (d Digest) Ino() uint64 {
	if len(d.Sum) < 8 {
		var buf [8]byte
		copy(buf[:], d.Sum)
		return binary.BigEndian.Uint64(buf[:])
	}
	return binary.BigEndian.Uint64(d.Sum[:8])
}

// MarshalText implements encoding.TextMarshaler using the canonical form.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Verifier wraps a reader and checks the accumulated bytes against an
// expected digest when the stream is exhausted.
type Verifier struct {
	r      io.Reader
	h      hash.Hash
	expect Digest
}

// NewVerifier returns a Verifier reading from r that checks against expect.
func NewVerifier(r io.Reader, expect Digest) (*Verifier, error) {
	h, err := newHasher(expect.Algorithm)
	if err != nil {
		return nil, err
	}
	return &Verifier{r: r, h: h, expect: expect}, nil
}

// Read reads from the underlying reader, feeding the hash. On EOF the
// accumulated digest is compared against the expected one and
// ErrIntegrityMismatch is returned in place of EOF on failure.
func (v *Verifier) Read(p []byte) (int, error) {
	n, err := v.r.Read(p)
	if n > 0 {
		v.h.Write(p[:n])
	}
	if err == io.EOF {
		got := Digest{Algorithm: v.expect.Algorithm, Sum: v.h.Sum(nil)}
		if !v.expect.Equal(got) {
			return n, fmt.Errorf("%w: want %s, got %s", ErrIntegrityMismatch, v.expect, got)
		}
	}
	return n, err
}

func knownAlgorithm(algo string) bool {
	switch algo {
	case Sha512, Sha256, Sha1, Blake3:
		return true
	}
	return false
}

func newHasher(algorithm string) (hash.Hash, error) {
	switch algorithm {
	case Sha512:
		return sha512.New(), nil
	case Sha256:
		return sha256.New(), nil
	case Sha1:
		return sha1.New(), nil
	case Blake3:
		return blake3.New(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algorithm)
}
