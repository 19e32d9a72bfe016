// Package fusefs mounts a project's package map as a read-only FUSE
// filesystem.
//
// The mount is an inspection surface: it shows the dependency tree the
// overlay serves, straight from map entries and cache blobs, without
// materialising anything under the project. Nodes delegate every
// answer to the resolver's Resolve/Stat/Read services, so the view is
// always consistent with what the overlay would report.
package fusefs
