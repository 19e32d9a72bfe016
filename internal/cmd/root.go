package cmd

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/npm/crux/version"
)

// NewRootCmd creates and returns the root cobra command for the crux CLI.
// It sets up all subcommands, command groups, and basic configuration.
func NewRootCmd() *cobra.Command {
	var debug bool

	rootCmd := &cobra.Command{
		Use:   "crux",
		Short: "crux - content-addressed package storage without a dependency tree on disk",
		Long: `crux keeps packages in a single content-addressed blob cache and maps
each project's dependency files onto it through a per-project package map.
At runtime a filesystem overlay answers dependency paths from the map and
the cache, so node_modules never has to be materialised.

Use subcommands to perform different operations:
  - map: Build or verify a project's package map from its lockfile
  - mount: Mount the package map as a read-only FUSE filesystem
  - cache: Verify blob cache integrity
  - stats: Show package map statistics
  - seed: Generate a test project with lockfile and tarballs`,
		Version: version.GetFullVersion(),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if debug {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
				Level:      level,
				TimeFormat: time.Kitchen,
			})))
		},
	}
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	groupStorage := "storage"
	groupUtilities := "utilities"

	rootCmd.AddGroup(&cobra.Group{
		ID:    groupStorage,
		Title: "Storage Operations",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    groupUtilities,
		Title: "Utility Commands",
	})

	mapCmd := NewMapCmd()
	mountCmd := NewMountCmd()
	cacheCmd := NewCacheCmd()
	statsCmd := NewStatsCmd()
	seedCmd := NewSeedCmd()

	mapCmd.GroupID = groupStorage
	mountCmd.GroupID = groupStorage
	cacheCmd.GroupID = groupStorage
	statsCmd.GroupID = groupUtilities
	seedCmd.GroupID = groupUtilities

	rootCmd.AddCommand(mapCmd)
	rootCmd.AddCommand(mountCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(seedCmd)

	return rootCmd
}
