package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillgoblin_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skillgoblin_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "skillgoblin_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillgoblin_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skillgoblin_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skillgoblin_db_transaction_duration_seconds",
			Help:    "Database transaction duration in seconds by outcome",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"outcome"}, // "commit", "rollback"
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "skillgoblin_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Catalog metrics
var (
	CatalogCourses = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "skillgoblin_catalog_courses",
			Help: "Number of courses in the catalog",
		},
	)
)

// Scanner metrics
var (
	ScanRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillgoblin_scan_runs_total",
			Help: "Total number of full scans by outcome",
		},
		[]string{"outcome"}, // "complete", "failed", "skipped"
	)

	ScanRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "skillgoblin_scan_running",
			Help: "Whether a full scan is currently running (1 = running, 0 = idle)",
		},
	)

	ScanCoursesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillgoblin_scan_courses_processed_total",
			Help: "Courses processed by scans by result",
		},
		[]string{"result"}, // "inserted", "updated", "failed"
	)

	ScanCoursesRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "skillgoblin_scan_courses_removed_total",
			Help: "Courses removed because their folder disappeared",
		},
	)

	ScanLastDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "skillgoblin_scan_last_duration_seconds",
			Help: "Duration of the last full scan in seconds",
		},
	)

	ScanLastTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "skillgoblin_scan_last_timestamp",
			Help: "Timestamp of the last finished full scan",
		},
	)

	SubtitlesConverted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "skillgoblin_subtitles_converted_total",
			Help: "SRT subtitle files converted to WebVTT sidecars",
		},
	)
)

// Watcher metrics
var (
	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillgoblin_watcher_events_total",
			Help: "Top-level content root changes handled by the watcher",
		},
		[]string{"event"}, // "add", "remove"
	)

	WatcherErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "skillgoblin_watcher_errors_total",
			Help: "Errors raised while watching the content root",
		},
	)

	WatcherPollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "skillgoblin_watcher_poll_duration_seconds",
			Help:    "Duration of a single content root poll",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)
)

// Thumbnail metrics
var (
	ThumbnailSyncTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillgoblin_thumbnail_sync_total",
			Help: "Thumbnail synchronisation outcomes",
		},
		[]string{"action"}, // "imported", "exported", "diverged", "none", "error"
	)
)

// Cache metrics, labeled by cache name ("handles", "chunks", "thumbnails")
var (
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillgoblin_cache_hits_total",
			Help: "Cache hits",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillgoblin_cache_misses_total",
			Help: "Cache misses",
		},
		[]string{"cache"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillgoblin_cache_evictions_total",
			Help: "Cache evictions by reason",
		},
		[]string{"cache", "reason"}, // "capacity", "expired", "removed"
	)

	CacheEntries = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "skillgoblin_cache_entries",
			Help: "Entries currently held by a cache",
		},
		[]string{"cache"},
	)
)

// Delivery metrics
var (
	DeliveryResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillgoblin_delivery_responses_total",
			Help: "Content responses by kind and status code",
		},
		[]string{"kind", "status"}, // kind: "range", "full", "file", "thumbnail"
	)

	DeliveryBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillgoblin_delivery_bytes_total",
			Help: "Bytes of content served by kind",
		},
		[]string{"kind"},
	)

	DeliveryPrefetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillgoblin_delivery_prefetches_total",
			Help: "Next-chunk prefetches by result",
		},
		[]string{"result"}, // "fetched", "skipped", "error"
	)
)

// Filesystem metrics
var (
	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillgoblin_filesystem_retry_attempts_total",
			Help: "Retries of filesystem operations after stale file handle errors",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillgoblin_filesystem_retry_success_total",
			Help: "Filesystem operations that succeeded after a retry",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillgoblin_filesystem_retry_failures_total",
			Help: "Filesystem operations that failed after exhausting retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skillgoblin_filesystem_stale_errors_total",
			Help: "Stale file handle (ESTALE) errors observed",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skillgoblin_filesystem_operation_duration_seconds",
			Help:    "Duration of retried filesystem operations including backoff",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"operation", "volume"},
	)
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "skillgoblin_memory_usage_ratio",
			Help: "Go heap usage as a share of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "skillgoblin_memory_paused",
			Help: "Whether scans are paused for memory pressure (1 = paused)",
		},
	)

	MemoryGCPauses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "skillgoblin_memory_gc_pauses_total",
			Help: "Times memory pressure paused scans and forced a GC",
		},
	)
)

// Application info
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "skillgoblin_app_info",
			Help: "Application build information",
		},
		[]string{"version", "commit", "go_version"},
	)
)
