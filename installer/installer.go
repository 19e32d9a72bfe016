package installer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/npm/crux/overlay"
	"github.com/npm/crux/pkgmap"
	"github.com/npm/crux/resolver"
)

// DefaultFetchLimit bounds how many packages are fetched into the
// cache concurrently during a map build.
const DefaultFetchLimit = 64

// PackageSpec identifies one package to extract.
type PackageSpec struct {
	Name    string
	Version string
}

// ExtractOptions carries the lockfile-verified provenance of a
// package: where its tarball came from and what it must hash to.
type ExtractOptions struct {
	Integrity string
	Resolved  string
}

// Extractor is the capability that materialises a package's files so
// the blob cache can be populated. targetDir may be empty, in which
// case files land only in the cache. The returned manifest names every
// file the package contributes.
type Extractor interface {
	Extract(ctx context.Context, pkg PackageSpec, targetDir string, opts ExtractOptions) (pkgmap.Manifest, error)
}

// Fetcher supplies the file manifest for one lockfile package,
// populating the blob cache as a side effect.
type Fetcher interface {
	Fetch(ctx context.Context, lockPath string, pkg *pkgmap.LockPackage) (pkgmap.Manifest, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, lockPath string, pkg *pkgmap.LockPackage) (pkgmap.Manifest, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, lockPath string, pkg *pkgmap.LockPackage) (pkgmap.Manifest, error) {
	return f(ctx, lockPath, pkg)
}

// Bridge drives map building for a project: it verifies the persisted
// map against the current lockfile, rebuilds when the seal no longer
// holds, and persists the result. It is the only writer of the map
// file; the overlay never mutates it.
type Bridge struct {
	Fetcher Fetcher

	// FetchLimit caps concurrent package fetches. Zero means
	// DefaultFetchLimit.
	FetchLimit int

	// Log receives build progress. Nil disables logging.
	Log *slog.Logger
}

// BuildAndPersistMap ensures the project has a valid package map for
// its current lockfile. A persisted map whose seal verifies is kept
// as-is. Otherwise every package in the lockfile is fetched (bounded
// parallelism; completion order is not observable) and the map is
// rebuilt deterministically and persisted with a fresh seal.
func (b *Bridge) BuildAndPersistMap(ctx context.Context, projectRoot, lockfilePath string) (*pkgmap.Map, error) {
	lockBytes, err := os.ReadFile(lockfilePath)
	if err != nil {
		return nil, fmt.Errorf("reading lockfile: %w", err)
	}

	existing, err := pkgmap.Load(projectRoot)
	if err != nil {
		return nil, err
	}
	if existing.Verify(lockBytes) {
		b.log(ctx, "package map seal verified, keeping persisted map",
			slog.String("project", projectRoot))
		return existing, nil
	}
	if !existing.Empty() {
		b.log(ctx, "package map seal mismatch, rebuilding",
			slog.String("project", projectRoot))
	}

	lock, err := pkgmap.ParseLockfile(lockBytes)
	if err != nil {
		return nil, err
	}

	manifests, err := b.fetchAll(ctx, lock)
	if err != nil {
		return nil, err
	}

	m, err := pkgmap.Build(lock, pkgmap.ManifestFunc(
		func(lockPath string, pkg *pkgmap.LockPackage) (pkgmap.Manifest, error) {
			return manifests[lockPath], nil
		}))
	if err != nil {
		return nil, err
	}
	if err := m.Persist(projectRoot, lockBytes); err != nil {
		return nil, fmt.Errorf("persisting package map: %w", err)
	}
	b.log(ctx, "package map built",
		slog.String("project", projectRoot),
		slog.Int("files", m.FileCount()),
		slog.Int64("bytes", m.TotalSize()))
	return m, nil
}

// fetchAll populates the cache for every lockfile package. Fetches run
// concurrently up to the limit; only the assembled manifest table is
// observable afterwards.
func (b *Bridge) fetchAll(ctx context.Context, lock *pkgmap.Lockfile) (map[string]pkgmap.Manifest, error) {
	limit := b.FetchLimit
	if limit <= 0 {
		limit = DefaultFetchLimit
	}

	var mu sync.Mutex
	manifests := make(map[string]pkgmap.Manifest, len(lock.Packages))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, lockPath := range lock.DependencyPaths() {
		pkg := lock.Packages[lockPath]
		g.Go(func() error {
			manifest, err := b.Fetcher.Fetch(ctx, lockPath, pkg)
			if err != nil {
				return fmt.Errorf("fetching %s: %w", lockPath, err)
			}
			mu.Lock()
			manifests[lockPath] = manifest
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return manifests, nil
}

// InstallOverlay constructs the process's filesystem overlay for a
// freshly built map. Call it once, before code that expects the
// dependency tree runs.
func (b *Bridge) InstallOverlay(cfg overlay.Config, m *pkgmap.Map) (*overlay.Overlay, error) {
	store, err := storeFor(cfg)
	if err != nil {
		return nil, err
	}
	return overlay.NewWithResolver(cfg, resolver.New(cfg.ProjectPrefix, m, store)), nil
}

func (b *Bridge) log(ctx context.Context, msg string, args ...any) {
	if b.Log != nil {
		b.Log.InfoContext(ctx, msg, args...)
	}
}
