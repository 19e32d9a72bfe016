package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
	_ "bazil.org/fuse/fs/fstestutil"
	"github.com/spf13/cobra"

	"github.com/npm/crux/cas"
	"github.com/npm/crux/fusefs"
	"github.com/npm/crux/pkgmap"
	"github.com/npm/crux/resolver"
	"github.com/npm/crux/version"
)

// NewMountCmd creates and returns the mount subcommand for the crux CLI.
// It exposes a project's package map as a read-only FUSE filesystem.
func NewMountCmd() *cobra.Command {
	var cacheRoot string

	cmd := &cobra.Command{
		Use:   "mount PROJECT_DIR MOUNTPOINT",
		Short: "Mount the package map as a read-only FUSE filesystem",
		Long: `Mount the project's package map at the specified mountpoint.

PROJECT_DIR is the project whose persisted package map should be served.
MOUNTPOINT is the directory where the filesystem will be mounted. The
mount is read-only and serves file contents straight from the blob cache.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMount(args[0], args[1], cacheRoot)
		},
	}

	cmd.Flags().StringVarP(&cacheRoot, "cache", "c", defaultCacheRoot(), "Path to the blob cache root")
	return cmd
}

func runMount(projectRoot, mountpoint, cacheRoot string) error {
	if pathsOverlap(projectRoot, mountpoint) {
		return fmt.Errorf("mountpoint %s overlaps project directory %s", mountpoint, projectRoot)
	}

	store, err := cas.NewStore(cacheRoot)
	if err != nil {
		return err
	}
	m, err := pkgmap.Load(projectRoot)
	if err != nil {
		return err
	}
	if m.Empty() {
		return fmt.Errorf("no package map persisted under %s, run 'crux map build' first", projectRoot)
	}

	filesystem := fusefs.NewFS(resolver.New(projectRoot, m, store))

	c, err := fuse.Mount(
		mountpoint,
		fuse.FSName("crux"),
		fuse.Subtype("cruxfs"),
		fuse.ReadOnly(),
	)
	if err != nil {
		return err
	}
	defer c.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		<-sigChan
		slog.Info("received interrupt, unmounting")
		fuse.Unmount(mountpoint)
		c.Close()
		os.Exit(0)
	}()

	slog.Info("mounted package map",
		slog.String("version", version.GetVersion()),
		slog.String("project", projectRoot),
		slog.String("mountpoint", mountpoint))
	return fs.Serve(c, filesystem)
}

// pathsOverlap reports whether one path contains the other. Mounting
// inside the project would shadow the map's own dependency root.
func pathsOverlap(path1, path2 string) bool {
	abs1, err1 := filepath.Abs(path1)
	abs2, err2 := filepath.Abs(path2)
	if err1 != nil || err2 != nil {
		return false
	}
	if abs1 == abs2 {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(abs1, abs2+sep) || strings.HasPrefix(abs2, abs1+sep)
}
