package integrity

import "errors"

// Sentinel errors for package integrity.
// These errors can be checked with errors.Is() for specific error handling.
var (
	ErrMalformedDigest   = errors.New("malformed integrity digest")
	ErrUnknownAlgorithm  = errors.New("unknown digest algorithm")
	ErrIntegrityMismatch = errors.New("integrity mismatch")
)
