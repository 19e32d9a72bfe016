package cas

import "errors"

// Sentinel errors for package cas.
// These errors can be checked with errors.Is() for specific error handling.
var (
	// ErrNotFound is returned when no blob exists for a digest.
	ErrNotFound = errors.New("blob not found in cache")

	// ErrIntegrity is returned when on-disk bytes do not hash to their
	// digest. It is a distinct failure class and is never masked as a
	// missing blob.
	ErrIntegrity = errors.New("blob failed integrity verification")
)
