package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_catalog_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_catalog_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_db_connections_open",
			Help: "Number of open database connections",
		},
	)

	DBSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_catalog_db_size_bytes",
			Help: "Size of SQLite database files in bytes",
		},
		[]string{"file"}, // "main", "wal", "shm"
	)
)

// Ingestion metrics
var (
	IngestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_ingest_total",
			Help: "Total number of ingest attempts by outcome",
		},
		[]string{"outcome"},
	)

	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_catalog_ingest_duration_seconds",
			Help:    "Time spent ingesting a single file",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	KnownChecksums = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_known_checksums",
			Help: "Number of checksums in the in-memory working set",
		},
	)
)

// Scanner metrics
var (
	ScanRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_catalog_scan_runs_total",
			Help: "Total number of full scan passes",
		},
	)

	ScanLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_scan_last_run_timestamp",
			Help: "Timestamp of the last completed scan pass",
		},
	)

	ScanLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_scan_last_run_duration_seconds",
			Help: "Duration of the last scan pass in seconds",
		},
	)

	ScanFilesSeen = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_catalog_scan_files_seen_total",
			Help: "Total number of files visited by scan passes",
		},
	)

	ScanNewFiles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_catalog_scan_new_files_total",
			Help: "Total number of new files ingested by scan passes",
		},
	)

	ScanRootsAutoRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_catalog_scan_roots_autoregistered_total",
			Help: "Total number of subdirectories auto-registered as watched roots",
		},
	)

	ScanOrphansRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_catalog_scan_orphan_locations_removed_total",
			Help: "Total number of orphaned locations removed by cleanup",
		},
	)

	ScanFolderTagsApplied = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_catalog_scan_folder_tags_applied_total",
			Help: "Total number of tag associations added by the inheritance sweep",
		},
	)

	ScanErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_catalog_scan_errors_total",
			Help: "Total number of scan errors",
		},
	)

	ScanIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_scan_running",
			Help: "Whether a scan pass is currently running (1 = running, 0 = idle)",
		},
	)
)

// Watcher metrics
var (
	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_watcher_events_total",
			Help: "Total number of filesystem watcher events",
		},
		[]string{"event_type"},
	)

	WatcherErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_catalog_watcher_errors_total",
			Help: "Total number of filesystem watcher errors",
		},
	)

	WatcherWatchedDirectories = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_watcher_watched_directories",
			Help: "Number of directories currently being watched",
		},
	)
)

// Derived asset metrics
var (
	AssetBuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_asset_builds_total",
			Help: "Total number of derived asset builds",
		},
		[]string{"kind", "type", "status"},
	)

	AssetBuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_catalog_asset_build_duration_seconds",
			Help:    "Derived asset build duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"kind"},
	)

	AssetCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_catalog_asset_cache_hits_total",
			Help: "Total number of derived asset cache hits",
		},
	)

	AssetCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_catalog_asset_cache_misses_total",
			Help: "Total number of derived asset cache misses",
		},
	)

	AssetBuildsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_asset_builds_in_flight",
			Help: "Number of asset builds currently in progress or queued",
		},
	)

	AssetsPurgedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_assets_purged_total",
			Help: "Total number of derived asset files purged",
		},
		[]string{"kind"},
	)
)

// Change notification metrics
var (
	NotifySchedulesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_notify_schedules_total",
			Help: "Total number of notification schedule requests",
		},
		[]string{"tier"},
	)

	NotifySignalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_notify_signals_total",
			Help: "Total number of debounced change signals emitted",
		},
		[]string{"tier"},
	)

	NotifySubscribers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_catalog_notify_subscribers",
			Help: "Number of active change-signal subscribers",
		},
		[]string{"tier"},
	)

	NotifyDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_notify_dropped_total",
			Help: "Total number of signals dropped on slow subscribers",
		},
		[]string{"tier"},
	)
)

// Catalog library gauges, updated by the collector
var (
	CatalogContentsTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_catalog_contents_total",
			Help: "Total number of unique content entries by type",
		},
		[]string{"type"},
	)

	CatalogLocationsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_locations_total",
			Help: "Total number of file locations in the catalog",
		},
	)

	CatalogRootsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_watched_roots_total",
			Help: "Total number of watched roots",
		},
	)

	CatalogTagsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_tags_total",
			Help: "Total number of tags",
		},
	)
)

// Filesystem metrics, recorded through the filesystem.Observer
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_catalog_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation duration in seconds",
			Buckets: []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_filesystem_operation_errors_total",
			Help: "Total number of filesystem operation errors",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_filesystem_retry_attempts_total",
			Help: "Total number of filesystem retry attempts",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_filesystem_retry_success_total",
			Help: "Total number of filesystem operations that succeeded after retry",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_filesystem_retry_failures_total",
			Help: "Total number of filesystem operations that failed after all retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_catalog_filesystem_retry_duration_seconds",
			Help:    "Total time spent in filesystem retry loops",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_filesystem_stale_errors_total",
			Help: "Total number of stale NFS handle errors",
		},
		[]string{"operation", "volume"},
	)
)

// Memory monitor metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_memory_usage_ratio",
			Help: "Current heap usage as a fraction of the memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_memory_paused",
			Help: "Whether heavy work is paused for memory pressure (1 = paused)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_catalog_memory_gc_pauses_total",
			Help: "Total number of forced GC pauses due to memory pressure",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_catalog_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
