// Package overlay implements the virtual filesystem facade that makes
// a project look conventionally installed without a dependency tree on
// disk.
//
// The facade mirrors the host filesystem API: Stat, Lstat, Realpath,
// Access, ReadFile, ReadDir, OpenFile, Chmod, the streaming variants,
// and the two module-loader probes. Every operation classifies its
// path through the resolver and then passes through, synthesises the
// host's natural error, or serves the request from the package map and
// blob cache. Paths the map does not own behave exactly as they would
// without the overlay; a missing dependency presents as a plain ENOENT
// on the expected path.
//
// Read-only opens of map-served files are redirected to the blob's
// cache path with no copying. The first mutating operation on a
// map-served path (write-intent open, chmod) materialises the blob at
// its nominal real path; from then on the real file wins. The overlay
// is the failure boundary: internal resolver and store errors leave it
// as POSIX-style errors, with integrity failures kept distinct.
//
// Consumers compile against this facade. Spawned children that link
// directly to the host's native primitives bypass it; the overlay
// cannot transparently reach them.
package overlay
