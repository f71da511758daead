// Package metrics provides Prometheus instrumentation for the course library.
//
// All metrics are prefixed with "skillgoblin_" and registered through promauto,
// so importing the package is enough to expose them on the default registry.
//
// # Metric Categories
//
//   - HTTP: request counts, durations and in-flight requests
//   - Database: query counts and durations, transaction outcomes, open connections
//   - Catalog: number of courses (refreshed by [Collector])
//   - Scanner: full scan runs, per-course results, removals, SRT conversions
//   - Watcher: handled add/remove events, poll durations, errors
//   - Thumbnail: synchronisation outcomes per case
//   - Cache: hits, misses, evictions and sizes for the handle, chunk and thumbnail caches
//   - Delivery: responses by kind and status, bytes served, prefetch results
//   - Filesystem: stale file handle retries per operation and volume
//
// Call [InitializeMetrics] once at startup so that labelled series exist before
// the first scrape.
package metrics
