// Package cmd implements the crux command-line interface.
//
// Subcommands cover map building and verification, FUSE mounting of a
// project's package map, blob cache verification, map statistics, and
// test-project generation.
package cmd
