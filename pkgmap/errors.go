package pkgmap

import "errors"

// Sentinel errors for package pkgmap.
// These errors can be checked with errors.Is() for specific error handling.
var (
	ErrInvalidLockfile = errors.New("invalid lockfile")
	ErrInvalidMapFile  = errors.New("invalid package map file")
	ErrInvalidPath     = errors.New("invalid map path")

	// ErrSealMismatch signals that a persisted map does not belong to
	// the current lockfile. It triggers a rebuild, never a fatal stop.
	ErrSealMismatch = errors.New("package map seal does not match lockfile")
)
