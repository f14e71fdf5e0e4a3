// Package checksum computes content digests for deduplication.
//
// The catalog keys unique content by the SHA-256 of its bytes, so two
// byte-identical files share one digest regardless of name or directory.
// Files are streamed in fixed-size blocks; nothing is held in memory
// beyond one block.
package checksum
