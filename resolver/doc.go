// Package resolver classifies absolute paths against a loaded package
// map and produces synthetic stat records and blob reads for the paths
// it owns.
//
// Resolve is a pure tree walk over the immutable map: it never touches
// disk and needs no synchronisation. The four outcomes (Untracked,
// Missing, Dir, File) drive every decision the filesystem overlay
// makes — pass through, synthesise NOT_FOUND, or serve from the cache.
package resolver
