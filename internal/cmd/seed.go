package cmd

import (
	"archive/tar"
	"bytes"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/spf13/cobra"

	"github.com/npm/crux/integrity"
	"github.com/npm/crux/pkgmap"
)

// NewSeedCmd creates and returns the seed subcommand for the crux CLI.
// It generates a synthetic project: local package tarballs plus a
// lockfile referencing them, ready for 'crux map build'.
func NewSeedCmd() *cobra.Command {
	var (
		outputPath string
		pkgCount   int
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Generate a test project with lockfile and tarballs",
		Long: `Generate a synthetic project for exercising crux.

Creates OUTPUT/tarballs/ with one registry-shaped tar.gz per package and
OUTPUT/package-lock.json referencing each tarball by path and integrity.
Package contents are randomised from a small UUID pool so some files
deduplicate in the blob cache and some do not.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(outputPath, pkgCount, verbose)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Path to output directory (required)")
	cmd.Flags().IntVarP(&pkgCount, "count", "n", 50, "Number of packages to generate")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	cmd.MarkFlagRequired("output")
	return cmd
}

func runSeed(outputPath string, pkgCount int, verbose bool) error {
	tarballDir := filepath.Join(outputPath, "tarballs")
	if err := os.MkdirAll(tarballDir, 0o755); err != nil {
		return err
	}

	// Pool of shared content so the cache sees duplicates.
	contentPool := make([]string, 20)
	for i := range contentPool {
		contentPool[i] = uuid.New().String() + "\n"
	}

	lock := &pkgmap.Lockfile{
		Name:            "seed-project",
		Version:         "1.0.0",
		LockfileVersion: 2,
		Packages:        map[string]*pkgmap.LockPackage{"": {Version: "1.0.0"}},
	}

	for i := 0; i < pkgCount; i++ {
		name := fmt.Sprintf("pkg-%04d", i)
		files := map[string]string{
			"package.json": fmt.Sprintf("{\"name\":%q,\"version\":\"1.0.0\"}\n", name),
			"index.js":     pick(contentPool),
		}
		extraFiles, err := randInt(4)
		if err != nil {
			return err
		}
		for j := int64(0); j < extraFiles; j++ {
			files[fmt.Sprintf("lib/mod%d.js", j)] = pick(contentPool)
		}

		tarball, err := buildTarball(files)
		if err != nil {
			return err
		}
		d, err := integrity.FromBytes(integrity.Sha512, tarball)
		if err != nil {
			return err
		}
		tarballPath := filepath.Join(tarballDir, name+".tgz")
		if err := os.WriteFile(tarballPath, tarball, 0o644); err != nil {
			return err
		}

		lock.Packages[filepath.Join("node_modules", name)] = &pkgmap.LockPackage{
			Version:   "1.0.0",
			Resolved:  tarballPath,
			Integrity: d.String(),
		}

		if verbose && (i+1)%10 == 0 {
			fmt.Printf("generated %d/%d packages...\n", i+1, pkgCount)
		}
	}

	lockBytes, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(outputPath, "package-lock.json"), lockBytes, 0o644); err != nil {
		return err
	}

	fmt.Printf("seeded %d packages under %s\n", pkgCount, outputPath)
	return nil
}

func buildTarball(files map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(zw)
	for name, content := range files {
		if err := tw.WriteHeader(&tar.Header{
			Name:     "package/" + name,
			Mode:     0o644,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}); err != nil {
			return nil, err
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			return nil, err
		}
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func pick(pool []string) string {
	i, err := rand.Int(rand.Reader, big.NewInt(int64(len(pool))))
	if err != nil {
		return pool[0]
	}
	return pool[i.Int64()]
}

func randInt(max int64) (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(max))
	if err != nil {
		return 0, err
	}
	return n.Int64(), nil
}
