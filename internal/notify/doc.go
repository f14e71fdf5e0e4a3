// Package notify turns bursts of catalog mutations into a bounded
// number of debounced "catalog changed" signals, partitioned by
// visibility tier. Ingesting a folder of ten thousand photos produces
// a handful of refresh signals, not ten thousand.
package notify
