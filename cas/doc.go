// Package cas implements the content-addressed blob store.
//
// Every file a project depends on is stored exactly once, under a path
// derived from its integrity digest. The on-disk layout is compatible with
// the community cacache content directory
// (<root>/content-v2/<algorithm>/<aa>/<bb>/<rest-of-hex>), so a cache
// populated by other tooling can be served directly.
//
// Writers publish blobs with write-to-temp, fsync, rename, which makes the
// store safe to share between processes: concurrent puts of the same digest
// race only on the final rename and both sides carry identical bytes.
package cas
