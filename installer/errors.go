package installer

import "errors"

// Sentinel errors for package installer.
// These errors can be checked with errors.Is() for specific error handling.
var (
	ErrBadTarball       = errors.New("malformed package tarball")
	ErrTarballIntegrity = errors.New("package tarball failed integrity verification")
)
