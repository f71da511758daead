package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"
	"sync"

	"skillgoblin/internal/mediatypes"
)

// CompressionConfig holds configuration for the compression middleware
type CompressionConfig struct {
	// MinSize is the smallest body, in bytes, worth compressing
	MinSize int
	// Level is the gzip compression level (gzip.BestSpeed to gzip.BestCompression)
	Level int
	// SkipPrefixes are request paths passed through untouched. Course content
	// and thumbnails choose their own encoding and must not be buffered.
	SkipPrefixes []string
}

// DefaultCompressionConfig returns sensible defaults for compression
func DefaultCompressionConfig() CompressionConfig {
	return CompressionConfig{
		MinSize:      1024,
		Level:        gzip.DefaultCompression,
		SkipPrefixes: []string{"/api/content/", "/api/course-thumbnail/"},
	}
}

// gzipResponseWriter holds back the first MinSize bytes so small bodies and
// non-compressible types go out unchanged.
type gzipResponseWriter struct {
	http.ResponseWriter
	pool       *sync.Pool
	minSize    int
	buf        []byte
	status     int
	decided    bool
	gz         *gzip.Writer
	headerSent bool
}

func (g *gzipResponseWriter) WriteHeader(status int) {
	if status < http.StatusOK {
		g.ResponseWriter.WriteHeader(status)
		return
	}
	if g.decided || g.headerSent {
		return
	}
	g.status = status
	g.headerSent = true

	// Bodiless responses never need a decision
	if status == http.StatusNoContent || status == http.StatusNotModified {
		g.decided = true
		g.ResponseWriter.WriteHeader(status)
	}
}

func (g *gzipResponseWriter) Write(p []byte) (int, error) {
	if g.decided {
		if g.gz != nil {
			return g.gz.Write(p)
		}
		return g.ResponseWriter.Write(p)
	}

	g.buf = append(g.buf, p...)
	if len(g.buf) >= g.minSize {
		if err := g.decide(); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// compressible reports whether the buffered response should be gzipped.
// Partial content and bodies the handler already encoded pass through.
func (g *gzipResponseWriter) compressible() bool {
	h := g.Header()
	return len(g.buf) >= g.minSize &&
		g.status != http.StatusPartialContent &&
		h.Get("Content-Encoding") == "" &&
		mediatypes.IsCompressible(h.Get("Content-Type"))
}

// decide commits the headers and flushes the buffer.
func (g *gzipResponseWriter) decide() error {
	if g.decided {
		return nil
	}
	g.decided = true

	buf := g.buf
	g.buf = nil

	if g.status == 0 {
		g.status = http.StatusOK
	}

	if !g.compressible() {
		g.ResponseWriter.WriteHeader(g.status)
		_, err := g.ResponseWriter.Write(buf)
		return err
	}

	h := g.Header()
	h.Del("Content-Length")
	h.Set("Content-Encoding", "gzip")
	h.Add("Vary", "Accept-Encoding")
	g.ResponseWriter.WriteHeader(g.status)

	g.gz = g.pool.Get().(*gzip.Writer)
	g.gz.Reset(g.ResponseWriter)
	_, err := g.gz.Write(buf)
	return err
}

// Close finalizes the response and returns the gzip writer to the pool
func (g *gzipResponseWriter) Close() error {
	err := g.decide()
	if g.gz != nil {
		if cerr := g.gz.Close(); err == nil {
			err = cerr
		}
		g.pool.Put(g.gz)
		g.gz = nil
	}
	return err
}

// Flush implements http.Flusher
func (g *gzipResponseWriter) Flush() {
	_ = g.decide()
	if g.gz != nil {
		_ = g.gz.Flush()
	}
	if f, ok := g.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController
func (g *gzipResponseWriter) Unwrap() http.ResponseWriter {
	return g.ResponseWriter
}

// Compression returns a middleware that gzips compressible API and UI
// responses for clients that accept it.
func Compression(config CompressionConfig) func(http.Handler) http.Handler {
	level := config.Level
	if level < gzip.HuffmanOnly || level > gzip.BestCompression {
		level = gzip.DefaultCompression
	}
	pool := &sync.Pool{
		New: func() interface{} {
			w, _ := gzip.NewWriterLevel(io.Discard, level)
			return w
		},
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !shouldCompress(r, config) {
				next.ServeHTTP(w, r)
				return
			}

			gzw := &gzipResponseWriter{
				ResponseWriter: w,
				pool:           pool,
				minSize:        config.MinSize,
				buf:            make([]byte, 0, config.MinSize),
			}
			defer gzw.Close()

			next.ServeHTTP(gzw, r)
		})
	}
}

func shouldCompress(r *http.Request, config CompressionConfig) bool {
	if r.Method == http.MethodHead || !mediatypes.AcceptsGzip(r.Header.Get("Accept-Encoding")) {
		return false
	}
	// Range responses must keep their byte offsets
	if r.Header.Get("Range") != "" {
		return false
	}
	for _, prefix := range config.SkipPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return false
		}
	}
	return true
}
