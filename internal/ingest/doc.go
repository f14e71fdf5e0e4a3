// Package ingest is the content-addressed pipeline shared by the
// scanner and the watcher. One file in, one transaction out: Content
// (if the checksum is new), Location, and the search-index row commit
// together or not at all, and a successful commit schedules a change
// notification for the root's visibility tier.
package ingest
