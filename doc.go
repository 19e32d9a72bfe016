// Package main provides the crux command-line interface.
//
// crux is an experimental package manager core that keeps packages in a
// single content-addressed blob cache instead of materialising a
// dependency tree on disk. A per-project package map, derived from the
// lockfile, names every file the project needs by path and digest; a
// filesystem overlay serves those paths at runtime.
//
// The binary supports multiple subcommands:
//   - map: Build or verify a project's package map from its lockfile
//   - mount: Mount the package map as a read-only FUSE filesystem
//   - cache: Verify blob cache integrity
//   - stats: Show package map statistics
//   - seed: Generate a test project with lockfile and tarballs
package main
