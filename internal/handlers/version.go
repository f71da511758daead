package handlers

import (
	"net/http"

	"skillgoblin/internal/startup"
)

// GetVersion returns the build information. The UI polls it to notice an
// upgraded server, so the response carries an ETag and answers 304 when the
// build has not changed.
func (h *Handlers) GetVersion(w http.ResponseWriter, r *http.Request) {
	info := startup.GetBuildInfo()
	etag := `"` + info.Version + "-" + info.Commit + `"`

	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("ETag", etag)
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSONOK(w, info)
}
