// Package metrics defines the Prometheus instrumentation for the media
// catalog service.
//
// All metrics are registered at package load time via promauto and share
// the media_catalog_ prefix. They are grouped by subsystem:
//
//   - HTTP: request counts, durations, in-flight gauge
//   - Database: per-operation query counts and durations, connection and
//     file-size gauges
//   - Ingestion: per-outcome counters and the known-checksum working set
//   - Scanner: pass counters, discovery counters, running gauge
//   - Watcher: event counters and watched-directory gauge
//   - Assets: build counters/durations, cache hit/miss, purge counters
//   - Notify: schedule/signal counters and subscriber gauges per tier
//   - Catalog: library-wide gauges refreshed by the Collector
//   - Filesystem: operation and retry metrics fed through the
//     filesystem.Observer interface
//
// # Collector
//
// The Collector polls a StatsProvider (implemented by the catalog store)
// on a fixed interval and publishes library-wide gauges:
//
//	collector := metrics.NewCollector(store, time.Minute)
//	collector.Start()
//	defer collector.Stop()
//
// # First-scrape visibility
//
// InitializeMetrics pre-creates every expected label combination so
// dashboards see zero-valued series immediately after startup rather
// than gaps until the first event of each type occurs.
package metrics
