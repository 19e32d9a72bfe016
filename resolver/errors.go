package resolver

import "errors"

// Sentinel errors for package resolver.
// The overlay converts these to POSIX-style codes before they leave
// the facade; they can be checked with errors.Is() below it.
var (
	ErrNotFound  = errors.New("no entry for path in package map")
	ErrIsDir     = errors.New("file operation on directory entry")
	ErrNotDir    = errors.New("directory operation on file entry")
	ErrNotFile   = errors.New("resolution is not a file")
	ErrUntracked = errors.New("path is not tracked by the package map")
)
