package cas

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/npm/crux/integrity"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestPutReadRoundTrip(t *testing.T) {
	s := newTestStore(t)

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty blob", data: []byte{}},
		{name: "small module", data: []byte("module.x=1;")},
		{name: "binary content", data: []byte{0x00, 0x01, 0x02, 0xff}},
		{name: "larger blob", data: bytes.Repeat([]byte("abcd"), 64*1024)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := s.Put(tt.data)
			if err != nil {
				t.Fatalf("Put: %v", err)
			}
			got, err := s.ReadAll(d)
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			if !bytes.Equal(got, tt.data) {
				t.Errorf("ReadAll returned %d bytes, want %d byte-identical", len(got), len(tt.data))
			}
		})
	}
}

func TestPutIdempotent(t *testing.T) {
	s := newTestStore(t)
	data := []byte("same content twice")

	d1, err := s.Put(data)
	if err != nil {
		t.Fatal(err)
	}
	info1, err := os.Stat(s.PathFor(d1))
	if err != nil {
		t.Fatal(err)
	}

	d2, err := s.Put(data)
	if err != nil {
		t.Fatal(err)
	}
	if !d1.Equal(d2) {
		t.Fatalf("second Put digest %s != first %s", d2, d1)
	}
	info2, err := os.Stat(s.PathFor(d2))
	if err != nil {
		t.Fatal(err)
	}
	if !info1.ModTime().Equal(info2.ModTime()) {
		t.Error("existing blob should not be rewritten")
	}
}

func TestPathForLayout(t *testing.T) {
	s := newTestStore(t)
	d, err := integrity.FromBytes(integrity.Sha512, []byte("layout"))
	if err != nil {
		t.Fatal(err)
	}
	p := s.PathFor(d)

	h := d.Hex()
	want := filepath.Join(s.Root(), ContentDir, "sha512", h[:2], h[2:4], h[4:])
	if p != want {
		t.Errorf("PathFor = %s, want %s", p, want)
	}
	if !strings.HasPrefix(p, s.Root()) {
		t.Error("PathFor must live under the cache root")
	}
}

func TestReadMissingBlob(t *testing.T) {
	s := newTestStore(t)
	d, err := integrity.FromBytes(integrity.Sha512, []byte("never stored"))
	if err != nil {
		t.Fatal(err)
	}

	if s.Has(d) {
		t.Error("Has on missing blob should be false")
	}
	if _, err := s.ReadAll(d); !errors.Is(err, ErrNotFound) {
		t.Errorf("ReadAll error = %v, want ErrNotFound", err)
	}
	if _, err := s.Open(d); !errors.Is(err, ErrNotFound) {
		t.Errorf("Open error = %v, want ErrNotFound", err)
	}
}

func TestReadAllDetectsCorruption(t *testing.T) {
	s := newTestStore(t)
	d, err := s.Put([]byte("pristine content"))
	if err != nil {
		t.Fatal(err)
	}

	// Flip a byte behind the store's back.
	if err := os.WriteFile(s.PathFor(d), []byte("tampered content"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err = s.ReadAll(d)
	if !errors.Is(err, ErrIntegrity) {
		t.Errorf("ReadAll on corrupted blob = %v, want ErrIntegrity", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("integrity failures must not be masked as not-found")
	}
}

func TestOpenStreamsWithoutVerification(t *testing.T) {
	s := newTestStore(t)
	data := []byte("streamed content")
	d, err := s.Put(data)
	if err != nil {
		t.Fatal(err)
	}

	rc, err := s.Open(d)
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Error("Open stream content mismatch")
	}
}

func TestConcurrentPutSameDigest(t *testing.T) {
	s := newTestStore(t)
	data := bytes.Repeat([]byte("concurrent"), 4096)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Put(data); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent Put: %v", err)
	}

	d, err := integrity.FromBytes(integrity.DefaultAlgorithm, data)
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.ReadAll(d)
	if err != nil {
		t.Fatalf("ReadAll after concurrent puts: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("blob corrupted by concurrent puts")
	}
}

func TestPutAsAlgorithms(t *testing.T) {
	s := newTestStore(t)
	for _, algo := range []string{integrity.Sha512, integrity.Sha256, integrity.Blake3} {
		t.Run(algo, func(t *testing.T) {
			d, err := s.PutAs(algo, []byte("algo "+algo))
			if err != nil {
				t.Fatalf("PutAs(%s): %v", algo, err)
			}
			if d.Algorithm != algo {
				t.Errorf("digest algorithm = %s, want %s", d.Algorithm, algo)
			}
			if _, err := s.ReadAll(d); err != nil {
				t.Errorf("ReadAll: %v", err)
			}
		})
	}
}
