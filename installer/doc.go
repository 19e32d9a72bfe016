// Package installer is the bridge between an install orchestrator and
// the map/cache core.
//
// The orchestrator hands it a verified lockfile; the bridge populates
// the blob cache through an Extractor, builds the package map in a
// deterministic order, and persists it sealed against the lockfile
// bytes. A persisted map whose seal still verifies is reused without a
// rebuild. Package fetches run with bounded parallelism; only the
// final map is observable.
package installer
