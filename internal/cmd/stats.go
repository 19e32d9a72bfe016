package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/npm/crux/pkgmap"
)

// NewStatsCmd creates and returns the stats subcommand for the crux CLI.
// It summarises a project's persisted package map.
func NewStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats PROJECT_DIR",
		Short: "Show package map statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := pkgmap.Load(args[0])
			if err != nil {
				return err
			}
			if m.Empty() {
				return fmt.Errorf("no package map persisted under %s", args[0])
			}

			fmt.Printf("Package map for %s:\n", args[0])
			fmt.Printf("  Built: %s\n", m.Built)
			fmt.Printf("  Packages: %d\n", len(m.Root.Children))
			fmt.Printf("  Files: %d\n", m.FileCount())
			fmt.Printf("  Total size: %d bytes\n", m.TotalSize())
			if !m.Seal.IsZero() {
				fmt.Printf("  Seal: %s\n", m.Seal)
			}
			return nil
		},
	}
}
