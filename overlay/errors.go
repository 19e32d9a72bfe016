package overlay

import (
	"errors"
	"os"
	"syscall"

	"github.com/npm/crux/cas"
	"github.com/npm/crux/resolver"
)

// Sentinel errors for package overlay.
// These errors can be checked with errors.Is() for specific error handling.
var (
	ErrInvalidConfig = errors.New("invalid overlay configuration")
)

// pathErr builds the POSIX-style error the host would produce for the
// operation. The errno is recoverable with errors.Is (ENOENT -2,
// ENOTDIR -20, EISDIR -21, EACCES -13).
func pathErr(op, path string, errno syscall.Errno) error {
	return &os.PathError{Op: op, Path: path, Err: errno}
}

// isNotExist reports whether a real-filesystem error is ENOENT. Only
// ENOENT opens the door to resolver fallback; every other host error
// propagates verbatim.
func isNotExist(err error) bool {
	return errors.Is(err, syscall.ENOENT) || os.IsNotExist(err)
}

// blobError converts resolver and store failures to the overlay's
// boundary errors. Integrity failures stay a distinct class and are
// never masked as ENOENT.
func (o *Overlay) blobError(op, path string, err error) error {
	switch {
	case errors.Is(err, cas.ErrIntegrity):
		return err
	case errors.Is(err, cas.ErrNotFound), errors.Is(err, resolver.ErrNotFound):
		return pathErr(op, path, syscall.ENOENT)
	case errors.Is(err, resolver.ErrIsDir):
		return pathErr(op, path, syscall.EISDIR)
	case errors.Is(err, resolver.ErrNotDir):
		return pathErr(op, path, syscall.ENOTDIR)
	}
	return err
}
