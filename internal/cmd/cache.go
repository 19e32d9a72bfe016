package cmd

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/npm/crux/cas"
	"github.com/npm/crux/integrity"
)

// NewCacheCmd creates the cache subcommand group.
func NewCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and verify the blob cache",
	}
	cmd.AddCommand(newCacheVerifyCmd())
	return cmd
}

func newCacheVerifyCmd() *cobra.Command {
	var (
		cacheRoot string
		verbose   bool
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify every blob in the cache against its digest",
		Long: `Verify every blob in the cache against its digest.

Each blob's on-disk path encodes its digest; this command re-hashes the
content and reports any blob whose bytes no longer match. Corrupt blobs
should be deleted so the next install refetches them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheVerify(cacheRoot, verbose)
		},
	}

	cmd.Flags().StringVarP(&cacheRoot, "cache", "c", defaultCacheRoot(), "Path to the blob cache root")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Report every blob checked")
	return cmd
}

func runCacheVerify(cacheRoot string, verbose bool) error {
	contentRoot := filepath.Join(cacheRoot, cas.ContentDir)
	if _, err := os.Stat(contentRoot); os.IsNotExist(err) {
		return fmt.Errorf("no cache content at %s", contentRoot)
	}

	var checked, corrupt int
	err := filepath.Walk(contentRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		d, ok := digestFromContentPath(contentRoot, path)
		if !ok {
			fmt.Printf("skipping unrecognised cache entry: %s\n", path)
			return nil
		}
		checked++
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := d.Verify(data); err != nil {
			corrupt++
			fmt.Printf("corrupt blob: %s (%s)\n", path, d)
			return nil
		}
		if verbose {
			fmt.Printf("ok: %s\n", d)
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Printf("\nVerification complete:\n")
	fmt.Printf("  Blobs checked: %d\n", checked)
	fmt.Printf("  Corrupt: %d\n", corrupt)
	if corrupt > 0 {
		os.Exit(1)
	}
	return nil
}

// digestFromContentPath reconstructs the digest encoded by a content
// path: <algorithm>/<aa>/<bb>/<rest> relative to the content root.
func digestFromContentPath(contentRoot, path string) (integrity.Digest, bool) {
	rel, err := filepath.Rel(contentRoot, path)
	if err != nil {
		return integrity.Digest{}, false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) != 4 {
		return integrity.Digest{}, false
	}
	algorithm := parts[0]
	sum, err := hex.DecodeString(parts[1] + parts[2] + parts[3])
	if err != nil {
		return integrity.Digest{}, false
	}
	d := integrity.Digest{Algorithm: algorithm, Sum: sum}
	if _, err := integrity.Parse(d.String()); err != nil {
		return integrity.Digest{}, false
	}
	return d, true
}
