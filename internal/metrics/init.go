package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)

	for _, outcome := range []string{"complete", "failed", "skipped"} {
		ScanRunsTotal.WithLabelValues(outcome)
	}
	for _, result := range []string{"inserted", "updated", "failed"} {
		ScanCoursesProcessed.WithLabelValues(result)
	}
	for _, event := range []string{"add", "remove"} {
		WatcherEventsTotal.WithLabelValues(event)
	}
	for _, action := range []string{"imported", "exported", "diverged", "none", "error"} {
		ThumbnailSyncTotal.WithLabelValues(action)
	}

	for _, cache := range []string{"handles", "chunks", "thumbnails"} {
		CacheHits.WithLabelValues(cache)
		CacheMisses.WithLabelValues(cache)
		CacheEntries.WithLabelValues(cache)
		for _, reason := range []string{"capacity", "expired", "removed"} {
			CacheEvictions.WithLabelValues(cache, reason)
		}
	}

	for _, result := range []string{"fetched", "skipped", "error"} {
		DeliveryPrefetches.WithLabelValues(result)
	}

	for _, outcome := range []string{"commit", "rollback"} {
		DBTransactionDuration.WithLabelValues(outcome)
	}

	volumes := []string{"content", "data", "unknown"}
	for _, op := range []string{"stat", "open", "readdir"} {
		for _, vol := range volumes {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}
}
