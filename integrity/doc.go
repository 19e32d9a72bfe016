// Package integrity implements self-describing content digests in ssri form.
//
// A digest is the string "<algorithm>-<base64 hash>" and is the sole identity
// of a blob in the cache. Equality is byte-identical over the canonical form.
// Sha512 is the default algorithm for new content; sha256 and blake3 are
// fully supported, and sha1 is accepted for verifying legacy metadata.
package integrity
