package delivery

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/singleflight"

	"skillgoblin/internal/cache"
	"skillgoblin/internal/course"
	"skillgoblin/internal/database"
	"skillgoblin/internal/filesystem"
	"skillgoblin/internal/logging"
	"skillgoblin/internal/mediatypes"
	"skillgoblin/internal/memory"
	"skillgoblin/internal/metrics"
	"skillgoblin/internal/streaming"
	"skillgoblin/internal/thumbnail"
)

// Catalog is the part of the catalog store the engine reads.
type Catalog interface {
	GetFolderName(ctx context.Context, id string) (string, error)
	GetThumbnail(ctx context.Context, id string) ([]byte, error)
}

// Engine serves course files and thumbnails by virtual path.
type Engine struct {
	cfg     Config
	catalog Catalog
	paths   course.Paths
	monitor *memory.Monitor
	retry   filesystem.RetryConfig
	log     logging.Logger

	handles    *handlePool
	chunks     *cache.Cache[chunkKey, []byte]
	chunkGroup singleflight.Group
	thumbs     *cache.Cache[string, thumbEntry]
	thumbGroup singleflight.Group

	placeholder []byte

	prefetchSlots chan struct{}
	prefetches    sync.WaitGroup

	started   atomic.Bool
	stopChan  chan struct{}
	stopOnce  sync.Once
	sweepDone chan struct{}
}

// New creates an Engine. monitor may be nil.
func New(cfg Config, catalog Catalog, paths course.Paths, monitor *memory.Monitor) *Engine {
	retry := filesystem.DefaultRetryConfig()
	e := &Engine{
		cfg:           cfg,
		catalog:       catalog,
		paths:         paths,
		monitor:       monitor,
		retry:         retry,
		log:           logging.For("delivery"),
		handles:       newHandlePool(cfg.HandleCacheSize, cfg.HandleCacheTTL, retry),
		placeholder:   thumbnail.LoadPlaceholder(cfg.PlaceholderPath),
		prefetchSlots: make(chan struct{}, max(cfg.PrefetchWorkers, 1)),
		stopChan:      make(chan struct{}),
		sweepDone:     make(chan struct{}),
	}
	e.chunks = cache.New(cache.Options[chunkKey, []byte]{
		Name:     "chunks",
		Capacity: cfg.ChunkCacheSize,
		TTL:      cfg.ChunkCacheTTL,
	})
	e.thumbs = cache.New(cache.Options[string, thumbEntry]{
		Name:     "thumbnails",
		Capacity: cfg.ThumbnailCacheSize,
		TTL:      cfg.ThumbnailCacheTTL,
	})
	return e
}

// Start runs the background sweep of expired cache entries.
func (e *Engine) Start() {
	if e.cfg.SweepInterval <= 0 || !e.started.CompareAndSwap(false, true) {
		return
	}
	go e.sweepLoop()
}

// Stop ends the sweep, waits for prefetches and closes idle file handles.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		close(e.stopChan)
		if e.started.Load() {
			<-e.sweepDone
		}
		e.prefetches.Wait()
		e.handles.closeAll()
		e.chunks.Purge()
		e.thumbs.Purge()
	})
}

func (e *Engine) sweepLoop() {
	defer close(e.sweepDone)
	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.Sweep()
		case <-e.stopChan:
			return
		}
	}
}

// Sweep drops expired entries from all three caches.
func (e *Engine) Sweep() {
	handles := e.handles.sweep()
	chunks := e.chunks.Sweep()
	thumbs := e.thumbs.Sweep()
	if handles+chunks+thumbs > 0 {
		e.log.Debug("Cache sweep: %d handles, %d chunks, %d thumbnails expired", handles, chunks, thumbs)
	}
}

// ServeContent answers a request for the virtual path {courseId}/{segments...}.
// escapedPath is the still percent-encoded path; every segment is decoded
// exactly once before resolution.
func (e *Engine) ServeContent(w http.ResponseWriter, r *http.Request, escapedPath string) {
	courseID, rel, err := splitVirtualPath(escapedPath)
	if err != nil {
		e.writeError(w, r, "file", err)
		return
	}

	if rel == course.ThumbnailFile {
		e.serveThumbnail(w, r, courseID)
		return
	}

	target, info, err := e.resolve(r.Context(), courseID, rel)
	if err != nil {
		e.writeError(w, r, "file", err)
		return
	}

	if mediatypes.IsVideo(target) {
		e.serveVideo(w, r, target, info)
		return
	}
	e.serveFile(w, r, target, info)
}

// splitVirtualPath decodes escapedPath into a course id and a slash
// separated path below the course folder.
func splitVirtualPath(escapedPath string) (string, string, error) {
	parts := strings.Split(strings.Trim(escapedPath, "/"), "/")
	if len(parts) < 2 {
		return "", "", fmt.Errorf("%w: path needs a course id and a file", ErrInvalidInput)
	}

	for i, part := range parts {
		decoded, err := url.PathUnescape(part)
		if err != nil {
			return "", "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		if strings.ContainsRune(decoded, 0) || strings.Contains(decoded, `\`) {
			return "", "", fmt.Errorf("%w: illegal character in path", ErrInvalidInput)
		}
		parts[i] = decoded
	}

	courseID := parts[0]
	if courseID == "" || courseID == "." || courseID == ".." || strings.Contains(courseID, "/") {
		return "", "", fmt.Errorf("%w: bad course id %q", ErrInvalidInput, courseID)
	}
	rel := strings.Join(parts[1:], "/")
	if strings.Trim(rel, "/") == "" {
		return "", "", fmt.Errorf("%w: missing file path", ErrInvalidInput)
	}
	return courseID, rel, nil
}

// resolveFolder maps a course id to its folder, falling back to a slug scan
// of the content root for rows without a folder mapping.
func (e *Engine) resolveFolder(ctx context.Context, courseID string) (string, error) {
	folder, err := e.catalog.GetFolderName(ctx, courseID)
	if err != nil && !errors.Is(err, database.ErrCourseNotFound) {
		return "", fmt.Errorf("looking up folder of %s: %w", courseID, err)
	}
	if folder != "" {
		return folder, nil
	}

	folder, err = e.paths.FindFolderBySlug(courseID)
	if err != nil {
		if errors.Is(err, course.ErrFolderNotFound) {
			return "", fmt.Errorf("%w: course %s", ErrNotFound, courseID)
		}
		return "", err
	}
	e.log.Debug("Resolved %s to folder %q by slug", courseID, folder)
	return folder, nil
}

func (e *Engine) resolve(ctx context.Context, courseID, rel string) (string, os.FileInfo, error) {
	folder, err := e.resolveFolder(ctx, courseID)
	if err != nil {
		return "", nil, err
	}

	target, err := e.paths.Resolve(folder, rel)
	if err != nil {
		if errors.Is(err, course.ErrOutsideRoot) {
			e.log.Warn("Rejected path outside course %s: %q", courseID, rel)
			return "", nil, fmt.Errorf("%w: %s", ErrForbidden, rel)
		}
		return "", nil, err
	}

	info, err := filesystem.StatWithRetry(target, e.retry)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil, fmt.Errorf("%w: %s", ErrNotFound, rel)
		}
		return "", nil, err
	}
	if info.IsDir() {
		return "", nil, fmt.Errorf("%w: %s is a directory", ErrNotFound, rel)
	}
	return target, info, nil
}

func (e *Engine) serveVideo(w http.ResponseWriter, r *http.Request, target string, info os.FileInfo) {
	h := w.Header()
	h.Set("Content-Type", mediatypes.ContentType(target))
	h.Set("Accept-Ranges", "bytes")
	h.Set("Cache-Control", "public, max-age=3600")

	header := r.Header.Get("Range")
	if header == "" {
		if info.Size() >= e.cfg.MaxFullFileSize {
			e.log.Info("Refusing whole-file request for %s (%s)", target, humanize.IBytes(uint64(info.Size())))
			e.writeError(w, r, "full", ErrTooLarge)
			return
		}
		e.streamWhole(w, r, target, info, "full", "")
		return
	}

	br, err := parseRange(header, info.Size(), e.cfg.MaxChunkSize)
	if err != nil {
		if errors.Is(err, ErrRangeNotSatisfiable) {
			h.Set("Content-Range", fmt.Sprintf("bytes */%d", info.Size()))
		}
		e.writeError(w, r, "range", err)
		return
	}

	data, hit, err := e.readChunk(target, info, br)
	if err != nil {
		e.writeError(w, r, "range", err)
		return
	}

	source := SourceDisk
	if hit {
		source = SourceCache
	}
	setCommonHeaders(w, source)
	h.Set("Content-Range", br.contentRange(info.Size()))
	h.Set("Content-Length", itoa(br.length()))
	w.WriteHeader(http.StatusPartialContent)
	metrics.DeliveryResponses.WithLabelValues("range", "206").Inc()

	if r.Method != http.MethodHead {
		n, err := streaming.StreamWithTimeout(r.Context(), w, bytes.NewReader(data), e.cfg.Stream)
		metrics.DeliveryBytes.WithLabelValues("range").Add(float64(n))
		if err != nil && !streaming.IsDisconnect(err) {
			e.log.Warn("Streaming %s bytes %d-%d: %v", target, br.start, br.end, err)
		}
	}

	e.prefetch(target, info, br)
}

func (e *Engine) serveFile(w http.ResponseWriter, r *http.Request, target string, info os.FileInfo) {
	contentType := mediatypes.ContentType(target)
	h := w.Header()
	h.Set("Content-Type", contentType)

	switch ext := mediatypes.Ext(target); {
	case mediatypes.IsImage(target):
		h.Set("Cache-Control", "public, max-age=86400")
	case ext == ".js" || ext == ".css":
		h.Set("Cache-Control", "public, max-age=3600")
	}

	encoding := ""
	if info.Size() > 0 && mediatypes.IsCompressible(contentType) && mediatypes.AcceptsGzip(r.Header.Get("Accept-Encoding")) {
		encoding = "gzip"
	}
	e.streamWhole(w, r, target, info, "file", encoding)
}

// streamWhole sends the entire file through a pooled handle, gzipped when
// encoding is "gzip". The handle is released as soon as the copy ends,
// including when the client disconnects mid-stream.
func (e *Engine) streamWhole(w http.ResponseWriter, r *http.Request, target string, info os.FileInfo, kind, encoding string) {
	fh, err := e.handles.acquire(target, info)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		e.writeError(w, r, kind, err)
		return
	}
	defer e.handles.release(target, fh)

	setCommonHeaders(w, SourceDisk)
	h := w.Header()
	if encoding == "gzip" {
		h.Set("Content-Encoding", "gzip")
		h.Add("Vary", "Accept-Encoding")
		h.Del("Content-Length")
	} else {
		h.Set("Content-Length", itoa(info.Size()))
	}
	w.WriteHeader(http.StatusOK)
	metrics.DeliveryResponses.WithLabelValues(kind, "200").Inc()

	if r.Method == http.MethodHead {
		return
	}

	src := io.NewSectionReader(fh.file, 0, info.Size())
	var n int64
	if encoding == "gzip" {
		n, err = e.copyGzip(r.Context(), w, src)
	} else {
		n, err = streaming.StreamWithTimeout(r.Context(), w, src, e.cfg.Stream)
	}
	metrics.DeliveryBytes.WithLabelValues(kind).Add(float64(n))
	if err != nil && !streaming.IsDisconnect(err) {
		e.log.Warn("Streaming %s: %v", target, err)
	}
}

var gzipWriterPool = sync.Pool{
	New: func() interface{} {
		return gzip.NewWriter(io.Discard)
	},
}

func (e *Engine) copyGzip(ctx context.Context, w http.ResponseWriter, src io.Reader) (int64, error) {
	tw := streaming.NewTimeoutWriter(ctx, w, e.cfg.Stream)
	gz := gzipWriterPool.Get().(*gzip.Writer)
	gz.Reset(tw)
	defer func() {
		gz.Reset(io.Discard)
		gzipWriterPool.Put(gz)
	}()

	n, err := io.Copy(gz, src)
	if cerr := gz.Close(); err == nil {
		err = cerr
	}
	if cerr := tw.Close(); err == nil {
		err = cerr
	}
	return n, err
}

func setCommonHeaders(w http.ResponseWriter, source string) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Content-Source", source)
}

func (e *Engine) writeError(w http.ResponseWriter, r *http.Request, kind string, err error) {
	status := StatusCode(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		e.log.Error("Serving %s: %v", r.URL.Path, err)
		msg = "Internal server error"
	}
	metrics.DeliveryResponses.WithLabelValues(kind, strconv.Itoa(status)).Inc()

	h := w.Header()
	h.Del("Content-Length")
	h.Del("Content-Encoding")
	h.Set("Content-Type", "application/json")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": msg}); err != nil {
		e.log.Debug("Writing error response: %v", err)
	}
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}
