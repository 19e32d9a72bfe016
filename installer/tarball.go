package installer

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/npm/crux/cas"
	"github.com/npm/crux/integrity"
	"github.com/npm/crux/overlay"
	"github.com/npm/crux/pkgmap"
)

// tarballRoot is the directory prefix registry tarballs wrap their
// contents in.
const tarballRoot = "package/"

// TarballExtractor is the reference Extractor: it reads gzip'd
// registry tarballs from local paths, verifies them against the
// lockfile integrity, and streams every contained file into the blob
// store.
type TarballExtractor struct {
	Store *cas.Store

	// Open resolves a "resolved" lockfile value to a tarball stream.
	// Nil means treat the value as a local filesystem path.
	Open func(ctx context.Context, resolved string) (io.ReadCloser, error)
}

// Extract populates the blob store from the package's tarball and
// returns its file manifest. When targetDir is non-empty the files are
// additionally materialised under it, which is what packages with
// install scripts or bundled dependencies need before their scripts
// run.
func (e *TarballExtractor) Extract(ctx context.Context, pkg PackageSpec, targetDir string, opts ExtractOptions) (pkgmap.Manifest, error) {
	rc, err := e.open(ctx, opts.Resolved)
	if err != nil {
		return nil, fmt.Errorf("opening tarball for %s@%s: %w", pkg.Name, pkg.Version, err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	if opts.Integrity != "" {
		d, err := integrity.Parse(opts.Integrity)
		if err != nil {
			return nil, fmt.Errorf("%w: %s@%s: %v", ErrBadTarball, pkg.Name, pkg.Version, err)
		}
		if err := d.Verify(raw); err != nil {
			return nil, fmt.Errorf("%w: %s@%s: %v", ErrTarballIntegrity, pkg.Name, pkg.Version, err)
		}
	}

	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %s@%s: %v", ErrBadTarball, pkg.Name, pkg.Version, err)
	}
	defer zr.Close()

	manifest := pkgmap.Manifest{}
	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s@%s: %v", ErrBadTarball, pkg.Name, pkg.Version, err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		name := cleanEntryName(hdr.Name)
		if name == "" {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("%w: %s@%s: %v", ErrBadTarball, pkg.Name, pkg.Version, err)
		}
		d, err := e.Store.Put(data)
		if err != nil {
			return nil, err
		}
		manifest[name] = pkgmap.FileInfo{
			Digest: d,
			Size:   int64(len(data)),
			Mode:   fs.FileMode(hdr.Mode) & fs.ModePerm,
		}
		if targetDir != "" {
			dest := filepath.Join(targetDir, filepath.FromSlash(name))
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return nil, err
			}
			if err := os.WriteFile(dest, data, fs.FileMode(hdr.Mode)&fs.ModePerm); err != nil {
				return nil, err
			}
		}
	}
	return manifest, nil
}

// Fetch implements Fetcher for cache-only population: no files touch
// the project directory. Directory-spec (link) dependencies are walked
// from their source directory instead of a tarball.
func (e *TarballExtractor) Fetch(ctx context.Context, lockPath string, pkg *pkgmap.LockPackage) (pkgmap.Manifest, error) {
	if pkg.Link {
		return e.fetchDirectory(pkg.Resolved)
	}
	spec := PackageSpec{Name: pkgmap.PackageName(lockPath), Version: pkg.Version}
	return e.Extract(ctx, spec, "", ExtractOptions{Integrity: pkg.Integrity, Resolved: pkg.Resolved})
}

// fetchDirectory mirrors a directory-spec dependency: every file under
// the source directory becomes a blob and a manifest entry.
func (e *TarballExtractor) fetchDirectory(root string) (pkgmap.Manifest, error) {
	manifest := pkgmap.Manifest{}
	err := filepath.WalkDir(root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		if entry.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		d, err := e.Store.Put(data)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		manifest[filepath.ToSlash(rel)] = pkgmap.FileInfo{
			Digest: d,
			Size:   int64(len(data)),
			Mode:   info.Mode() & fs.ModePerm,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return manifest, nil
}

func (e *TarballExtractor) open(ctx context.Context, resolved string) (io.ReadCloser, error) {
	if e.Open != nil {
		return e.Open(ctx, resolved)
	}
	return os.Open(resolved)
}

// cleanEntryName strips the tarball's package/ root and rejects
// entries that would escape it.
func cleanEntryName(name string) string {
	name = path.Clean(strings.TrimPrefix(name, tarballRoot))
	if name == "." || name == ".." || strings.HasPrefix(name, "../") || path.IsAbs(name) {
		return ""
	}
	return name
}

func storeFor(cfg overlay.Config) (*cas.Store, error) {
	return cas.NewStore(cfg.CacheRoot)
}
