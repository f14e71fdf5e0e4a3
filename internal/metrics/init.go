package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	// --- Ingest outcomes ---
	for _, outcome := range []string{"new", "duplicate", "skipped-unsupported", "error"} {
		IngestTotal.WithLabelValues(outcome)
	}

	// --- Watcher event types ---
	for _, event := range []string{"create", "write", "remove", "rename", "chmod", "unknown"} {
		WatcherEventsTotal.WithLabelValues(event)
	}

	// --- Asset builds (per kind × type × status) ---
	kinds := []string{"thumb", "preview"}
	mediaTypes := []string{"image", "video"}

	for _, k := range kinds {
		for _, mt := range mediaTypes {
			AssetBuildsTotal.WithLabelValues(k, mt, "success")
			AssetBuildsTotal.WithLabelValues(k, mt, "error")
		}
		AssetBuildDuration.WithLabelValues(k)
		AssetsPurgedTotal.WithLabelValues(k)
	}

	// --- Notification tiers ---
	for _, tier := range []string{"public", "restricted"} {
		NotifySchedulesTotal.WithLabelValues(tier)
		NotifySignalsTotal.WithLabelValues(tier)
		NotifySubscribers.WithLabelValues(tier)
		NotifyDroppedTotal.WithLabelValues(tier)
	}

	// --- Database storage files ---
	for _, file := range []string{"main", "wal", "shm"} {
		DBSizeBytes.WithLabelValues(file)
	}

	// --- Filesystem operation metrics (per volume × operation) ---
	volumes := []string{"media", "cache", "database", "unknown"}
	fsOps := []string{"stat", "open", "readdir"}

	for _, vol := range volumes {
		for _, op := range fsOps {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}

	// --- DB query operations ---
	for _, op := range []string{
		"get_content", "content_exists", "all_checksums", "update_content_metadata",
		"get_location", "locations_for_checksum", "locations_under_directory",
		"delete_location", "move_location", "set_location_deleted",
		"permanent_delete_location", "delete_orphan_locations",
		"list_roots", "get_root_by_path", "insert_root", "set_root_ignored",
		"get_or_create_tag", "list_tags", "add_tag_to_content", "remove_tag_from_content",
		"tags_for_root", "add_tag_to_root", "apply_folder_tags",
		"get_setting", "set_setting", "seed_setting",
		"rebuild_search_index", "calculate_stats", "vacuum",
	} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	// --- Catalog gauges ---
	for _, t := range []string{"image", "video"} {
		CatalogContentsTotal.WithLabelValues(t)
	}
}
