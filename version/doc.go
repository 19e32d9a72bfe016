// Package version provides build and version information for crux.
//
// Version data comes from build flags when set, falling back to the Go
// module build info embedded in the binary.
package version
