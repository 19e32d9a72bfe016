// Package pkgmap builds and persists the per-project package map.
//
// The map is a finite tree rooted at the project's dependency directory
// (node_modules) that names every file the project and its transitive
// dependencies need, by relative path and blob digest. It is built from
// the project lockfile in a deterministic order, persisted alongside an
// integrity seal over the lockfile bytes, and loaded read-only at process
// start. The seal alone decides validity: when it no longer verifies
// against the current lockfile, the map is rebuilt.
package pkgmap
