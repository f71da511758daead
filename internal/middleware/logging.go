package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"skillgoblin/internal/logging"
)

// w3cFields is the #Fields directive matching every access log line.
const w3cFields = "date time c-ip cs-method cs-uri-stem cs-uri-query sc-status sc-bytes time-taken cs(Range) sc(Content-Encoding) cs(User-Agent) cs(Referer)"

// responseWriter records the status and body size for the access log.
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{
		ResponseWriter: w,
		statusCode:     http.StatusOK,
	}
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// LoggingConfig holds configuration for the logging middleware
type LoggingConfig struct {
	// SkipPaths are path prefixes never logged
	SkipPaths []string
	// SkipExtensions mark UI assets, dropped unless LogStaticFiles is set.
	// They never apply below /api/, so course thumbnails and subtitles are logged.
	SkipExtensions  []string
	LogStaticFiles  bool
	LogHealthChecks bool
}

// DefaultLoggingConfig returns a sensible default configuration
func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		SkipPaths:       []string{},
		SkipExtensions:  []string{".css", ".js", ".map", ".ico", ".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".woff", ".woff2", ".ttf", ".webmanifest"},
		LogStaticFiles:  false,
		LogHealthChecks: true,
	}
}

var healthCheckPaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/livez":   true,
	"/readyz":  true,
}

// accessLogger writes one W3C Extended Log Format line per request.
type accessLogger struct {
	config LoggingConfig
	out    func(line string)
	now    func() time.Time
}

func newAccessLogger(config LoggingConfig, out func(string)) *accessLogger {
	return &accessLogger{config: config, out: out, now: time.Now}
}

// Logger returns HTTP logging middleware using W3C Extended Log Format.
// The #Version and #Fields directives are written once, when the middleware
// is built.
func Logger(config LoggingConfig) func(http.Handler) http.Handler {
	l := newAccessLogger(config, func(line string) { logging.Printf("%s", line) })
	l.out("#Software: SkillGoblin")
	l.out("#Version: 1.0")
	l.out("#Fields: " + w3cFields)
	return l.middleware
}

func (l *accessLogger) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.skip(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		start := l.now()
		wrapped := newResponseWriter(w)
		next.ServeHTTP(wrapped, r)
		l.out(l.line(r, wrapped, l.now().Sub(start)))
	})
}

// line formats a request. Every request-controlled field is sanitized so a
// crafted path or header cannot forge extra log lines.
func (l *accessLogger) line(r *http.Request, rw *responseWriter, took time.Duration) string {
	ts := l.now().UTC()
	return fmt.Sprintf("%s %s %s %s %s %s %d %d %d %s %s %s %s",
		ts.Format("2006-01-02"),
		ts.Format("15:04:05"),
		w3cValue(clientIP(r)),
		w3cValue(r.Method),
		w3cValue(r.URL.EscapedPath()),
		w3cValue(r.URL.RawQuery),
		rw.statusCode,
		rw.bytesWritten,
		took.Milliseconds(),
		w3cValue(r.Header.Get("Range")),
		w3cValue(rw.Header().Get("Content-Encoding")),
		w3cValue(r.Header.Get("User-Agent")),
		w3cValue(r.Header.Get("Referer")),
	)
}

func (l *accessLogger) skip(path string) bool {
	for _, prefix := range l.config.SkipPaths {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}

	if !l.config.LogHealthChecks && healthCheckPaths[path] {
		return true
	}

	if !l.config.LogStaticFiles && !strings.HasPrefix(path, "/api/") {
		lower := strings.ToLower(path)
		for _, ext := range l.config.SkipExtensions {
			if strings.HasSuffix(lower, ext) {
				return true
			}
		}
	}

	return false
}

// sanitizeLogField removes control characters that could be used for log injection.
// Newlines and carriage returns become spaces; NUL, ESC and the other C0
// controls except tab are dropped.
func sanitizeLogField(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r':
			b.WriteRune(' ')
		case r < 0x20 && r != '\t':
			continue
		case r == 0x7f:
			continue
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// w3cValue sanitizes a field, renders empty values as "-" and quotes values
// containing separators, doubling embedded quotes.
func w3cValue(s string) string {
	s = sanitizeLogField(s)
	if s == "" {
		return "-"
	}
	if strings.ContainsAny(s, " \t\"") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// connection's address without its port.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
