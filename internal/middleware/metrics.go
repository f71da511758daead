package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"skillgoblin/internal/metrics"
)

// metricsResponseWriter captures the status code and, for streamed content,
// the time to first byte.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode      int
	startTime       time.Time
	firstByteTime   time.Time
	headerWritten   bool
	isStreamingPath bool
}

func newMetricsResponseWriter(w http.ResponseWriter, startTime time.Time, streaming bool) *metricsResponseWriter {
	return &metricsResponseWriter{
		ResponseWriter:  w,
		statusCode:      http.StatusOK,
		startTime:       startTime,
		isStreamingPath: streaming,
	}
}

func (rw *metricsResponseWriter) markHeader() {
	if rw.headerWritten {
		return
	}
	rw.headerWritten = true
	if rw.isStreamingPath {
		rw.firstByteTime = time.Now()
	}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	if !rw.headerWritten {
		rw.statusCode = code
		rw.markHeader()
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *metricsResponseWriter) Write(b []byte) (int, error) {
	rw.markHeader()
	return rw.ResponseWriter.Write(b)
}

func (rw *metricsResponseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the connection for write deadlines.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// GetDuration returns the time to first byte for streamed content, otherwise
// the time since the request started. A long video range transfer says
// nothing about server latency.
func (rw *metricsResponseWriter) GetDuration() time.Duration {
	if rw.isStreamingPath && !rw.firstByteTime.IsZero() {
		return rw.firstByteTime.Sub(rw.startTime)
	}
	return time.Since(rw.startTime)
}

// MetricsConfig holds configuration for the metrics middleware
type MetricsConfig struct {
	// SkipPaths are paths that should not be recorded
	SkipPaths []string
}

// DefaultMetricsConfig returns the default metrics configuration
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		SkipPaths: []string{"/metrics", "/health", "/healthz", "/livez", "/readyz"},
	}
}

// streamingPrefix serves course files and video ranges.
const streamingPrefix = "/api/content/"

func isStreamingPath(path string) bool {
	return strings.HasPrefix(path, streamingPrefix)
}

// Metrics returns a middleware that records Prometheus metrics
func Metrics(config MetricsConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, path := range config.SkipPaths {
				if strings.HasPrefix(r.URL.Path, path) {
					next.ServeHTTP(w, r)
					return
				}
			}

			metrics.HTTPRequestsInFlight.Inc()
			defer metrics.HTTPRequestsInFlight.Dec()

			wrapped := newMetricsResponseWriter(w, time.Now(), isStreamingPath(r.URL.Path))
			next.ServeHTTP(wrapped, r)

			path := normalizePath(r.URL.Path)
			status := strconv.Itoa(wrapped.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(wrapped.GetDuration().Seconds())
		})
	}
}

// wildcardPrefixes end in a free-form path or id that would explode label cardinality.
var wildcardPrefixes = []string{
	"/api/content/",
	"/api/course-thumbnail/",
	"/api/user-progress/",
	"/api/user-favorites/",
	"/api/users/",
}

// courseActions are fixed segments under /api/courses/ that are not ids.
var courseActions = map[string]bool{
	"edit":   true,
	"rescan": true,
}

// normalizePath normalizes the path for metrics to avoid high cardinality
func normalizePath(path string) string {
	for _, prefix := range wildcardPrefixes {
		if strings.HasPrefix(path, prefix) {
			return prefix + "{path}"
		}
	}

	if rest, ok := strings.CutPrefix(path, "/api/courses/"); ok && rest != "" {
		id, action, _ := strings.Cut(rest, "/")
		if courseActions[id] {
			return path
		}
		if action == "" {
			return "/api/courses/{id}"
		}
		return "/api/courses/{id}/" + action
	}

	// Keep the first few path segments for context
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if part == "" {
			continue
		}
		if i > 4 {
			parts[i] = "{path}"
			return strings.Join(parts[:i+1], "/")
		}
	}

	return path
}
