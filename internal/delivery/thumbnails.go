package delivery

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"skillgoblin/internal/database"
	"skillgoblin/internal/metrics"
)

// X-Content-Source values.
const (
	SourceCache       = "Cache"
	SourceDatabase    = "Database"
	SourcePlaceholder = "Placeholder"
	SourceDisk        = "Disk"
)

type thumbEntry struct {
	data        []byte
	placeholder bool
}

func thumbKey(courseID, query string) string {
	return courseID + "?" + query
}

// thumbnail returns the image for courseID, keyed by the request query so
// cache-busting parameters get their own entries.
func (e *Engine) thumbnail(ctx context.Context, courseID, query string) (thumbEntry, string) {
	key := thumbKey(courseID, query)
	if ent, ok := e.thumbs.Get(key); ok {
		return ent, SourceCache
	}

	// shared by every waiter, so one client leaving must not fail the rest
	ctx = context.WithoutCancel(ctx)
	v, _, _ := e.thumbGroup.Do(key, func() (interface{}, error) {
		blob, err := e.catalog.GetThumbnail(ctx, courseID)
		switch {
		case err == nil && len(blob) > 0:
			ent := thumbEntry{data: blob}
			e.thumbs.Set(key, ent)
			return ent, nil
		case err != nil && !errors.Is(err, database.ErrCourseNotFound):
			e.log.Warn("Loading thumbnail for %s: %v", courseID, err)
			return thumbEntry{data: e.placeholder, placeholder: true}, nil
		default:
			ent := thumbEntry{data: e.placeholder, placeholder: true}
			e.thumbs.Set(key, ent)
			return ent, nil
		}
	})

	ent := v.(thumbEntry)
	if ent.placeholder {
		return ent, SourcePlaceholder
	}
	return ent, SourceDatabase
}

// serveThumbnail answers {courseId}/thumbnail.png. The response is never
// cacheable; clients bust the server cache with query parameters.
func (e *Engine) serveThumbnail(w http.ResponseWriter, r *http.Request, courseID string) {
	ent, source := e.thumbnail(r.Context(), courseID, r.URL.RawQuery)

	h := w.Header()
	h.Set("Content-Type", "image/png")
	h.Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
	e.writeThumbnail(w, r, ent, source)
}

// ServeCourseThumbnail answers the by-id thumbnail endpoint. A "t" query
// parameter marks the URL as versioned and makes the response immutable.
func (e *Engine) ServeCourseThumbnail(w http.ResponseWriter, r *http.Request, courseID string) {
	if courseID == "" {
		e.writeError(w, r, "thumbnail", ErrInvalidInput)
		return
	}

	version := r.URL.Query().Get("t")
	h := w.Header()
	if version != "" {
		etag := `"` + version + `"`
		h.Set("ETag", etag)
		h.Set("Cache-Control", "public, max-age=31536000")
		if match := r.Header.Get("If-None-Match"); match != "" && strings.Contains(match, etag) {
			w.WriteHeader(http.StatusNotModified)
			metrics.DeliveryResponses.WithLabelValues("thumbnail", "304").Inc()
			return
		}
	}

	ent, source := e.thumbnail(r.Context(), courseID, r.URL.RawQuery)
	if version == "" {
		if ent.placeholder {
			h.Set("Cache-Control", "no-cache")
		} else {
			h.Set("Cache-Control", "public, max-age=3600")
		}
	}
	h.Set("Content-Type", "image/png")
	e.writeThumbnail(w, r, ent, source)
}

func (e *Engine) writeThumbnail(w http.ResponseWriter, r *http.Request, ent thumbEntry, source string) {
	setCommonHeaders(w, source)
	w.Header().Set("Content-Length", itoa(int64(len(ent.data))))
	w.WriteHeader(http.StatusOK)
	metrics.DeliveryResponses.WithLabelValues("thumbnail", "200").Inc()

	if r.Method == http.MethodHead {
		return
	}
	n, err := w.Write(ent.data)
	metrics.DeliveryBytes.WithLabelValues("thumbnail").Add(float64(n))
	if err != nil {
		e.log.Debug("Writing thumbnail: %v", err)
	}
}

// InvalidateThumbnail drops every cached variant of courseID's thumbnail.
func (e *Engine) InvalidateThumbnail(courseID string) {
	prefix := thumbKey(courseID, "")
	for _, key := range e.thumbs.Keys() {
		if strings.HasPrefix(key, prefix) {
			e.thumbs.Remove(key)
		}
	}
}

// PurgeThumbnails empties the thumbnail cache, e.g. after a full scan
// imported new blobs.
func (e *Engine) PurgeThumbnails() {
	e.thumbs.Purge()
}
