// Package catalog is the relational store behind the ingestion
// pipeline: Content rows keyed by checksum, Location rows keyed by
// (directory, filename), watched roots, tags, settings, and the FTS5
// search index that mirrors the locations table.
//
// Contents and locations are linked by checksum value, not by a
// synthetic foreign key, so content identity survives any row reshape.
// SQLite runs in WAL mode with a busy timeout; every goroutine draws
// its own connection from the database/sql pool.
package catalog
