// Package startup handles application initialization, configuration loading,
// and startup/shutdown logging.
//
// # Configuration
//
// Configuration is read from environment variables by [ReadConfig]; an
// optional .env file in the working directory is applied first and never
// overrides variables that are already set. [LoadConfig] additionally prints
// the banner and prepares directories. Supported variables:
//
//   - CONTENT_DIR: course folders (default: /app/data/content)
//   - DATA_DIR: directory of skillgoblin.db, must be writable (default: /app/data)
//   - PORT: HTTP server port (default: 3000)
//   - METRICS_PORT: Prometheus metrics server port (default: 9090)
//   - METRICS_ENABLED: Enable or disable metrics server (default: true)
//   - WATCH_INTERVAL: directory watcher poll interval, 0 disables (default: 10s)
//   - MAX_CHUNK_SIZE: range response clamp, bytes or 2MiB style (default: 2MiB)
//   - MAX_FULL_FILE_SIZE: largest file served without a range (default: 20MiB)
//   - HANDLE_CACHE_SIZE / HANDLE_CACHE_TTL: open file pool (default: 30 / 60s)
//   - CHUNK_CACHE_SIZE / CHUNK_CACHE_TTL: chunk cache (default: 100 / 5m)
//   - THUMBNAIL_CACHE_SIZE / THUMBNAIL_CACHE_TTL: thumbnail cache (default: 50 / 10m)
//   - PLACEHOLDER_IMAGE: thumbnail fallback (default: public/images/placeholder.png)
//   - LOG_LEVEL, DEBUG: logging level
//   - LOG_STATIC_FILES, LOG_HEALTH_CHECKS: access log filters
//   - MEMORY_LIMIT, MEMORY_RATIO, GOMEMLIMIT: see package memory
//
// Invalid values log a warning and keep their default.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//
//	go build -ldflags "-X skillgoblin/internal/startup.Version=1.2.0"
//
// # Lifecycle Logging
//
// [LogDatabaseInit], [LogScanInit], [LogHTTPRoutes], [LogServerStarted] and the
// LogShutdown* helpers keep startup and shutdown output consistent.
package startup
