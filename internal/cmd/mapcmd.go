package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/npm/crux/cas"
	"github.com/npm/crux/installer"
	"github.com/npm/crux/pkgmap"
)

// NewMapCmd creates the map subcommand group: building and verifying a
// project's package map against its lockfile.
func NewMapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "map",
		Short: "Build or verify a project's package map",
	}
	cmd.AddCommand(newMapBuildCmd())
	cmd.AddCommand(newMapVerifyCmd())
	return cmd
}

func newMapBuildCmd() *cobra.Command {
	var (
		cacheRoot string
		lockfile  string
	)

	cmd := &cobra.Command{
		Use:   "build PROJECT_DIR",
		Short: "Build the package map from the project lockfile",
		Long: `Build the package map from the project lockfile.

Every package named in the lockfile is extracted into the blob cache and
the resulting map is persisted, sealed against the lockfile bytes. A map
whose seal still verifies is kept without a rebuild.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectRoot := args[0]
			if lockfile == "" {
				lockfile = filepath.Join(projectRoot, "package-lock.json")
			}

			store, err := cas.NewStore(cacheRoot)
			if err != nil {
				return err
			}
			bridge := &installer.Bridge{
				Fetcher: &installer.TarballExtractor{Store: store},
				Log:     slog.Default(),
			}
			m, err := bridge.BuildAndPersistMap(cmd.Context(), projectRoot, lockfile)
			if err != nil {
				return err
			}
			fmt.Printf("map ready: %d files, %d bytes\n", m.FileCount(), m.TotalSize())
			return nil
		},
	}

	cmd.Flags().StringVarP(&cacheRoot, "cache", "c", defaultCacheRoot(), "Path to the blob cache root")
	cmd.Flags().StringVarP(&lockfile, "lockfile", "l", "", "Path to the lockfile (default: PROJECT_DIR/package-lock.json)")
	return cmd
}

func newMapVerifyCmd() *cobra.Command {
	var lockfile string

	cmd := &cobra.Command{
		Use:   "verify PROJECT_DIR",
		Short: "Check the persisted map's seal against the current lockfile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectRoot := args[0]
			if lockfile == "" {
				lockfile = filepath.Join(projectRoot, "package-lock.json")
			}

			m, err := pkgmap.Load(projectRoot)
			if err != nil {
				return err
			}
			if m.Empty() && m.Seal.IsZero() {
				return fmt.Errorf("no package map persisted under %s", projectRoot)
			}
			lockBytes, err := os.ReadFile(lockfile)
			if err != nil {
				return err
			}
			if !m.Verify(lockBytes) {
				return fmt.Errorf("%w: run 'crux map build'", pkgmap.ErrSealMismatch)
			}
			fmt.Println("seal ok")
			return nil
		},
	}

	cmd.Flags().StringVarP(&lockfile, "lockfile", "l", "", "Path to the lockfile (default: PROJECT_DIR/package-lock.json)")
	return cmd
}

// defaultCacheRoot is the conventional per-user cache location.
func defaultCacheRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".crux-cache"
	}
	return filepath.Join(home, ".crux", "cache")
}
