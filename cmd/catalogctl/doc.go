// Command catalogctl provides maintenance operations for the media
// catalog database.
//
// It supports the following operations:
//   - scan: Run a full catalog scan synchronously
//   - purge: Delete cached derived assets of one kind
//   - reprocess: Re-extract metadata for cataloged content
//   - fts-rebuild: Drop and repopulate the full-text search index
//   - vacuum: Compact the catalog database
//   - roots: Inspect and edit watched roots
//
// Usage:
//
//	catalogctl <command> [flags]
//
// All commands load the same configuration as the server (config file,
// .env, MEDIA_CATALOG_* environment variables) and operate on the same
// database. The --db flag overrides the configured database path.
//
// Notes:
//
// Running catalogctl against a live server's database is safe: SQLite
// WAL mode serializes writers with bounded waits, and every operation
// here is one the server itself performs. A scan started by catalogctl
// and one started by the server dedupe against each other through the
// catalog's uniqueness constraints.
package main
