package handlers

import (
	"net/http"
	"strings"
)

// ContentPrefix is the route prefix of virtual course paths.
const ContentPrefix = "/api/content/"

// ServeContent hands a virtual course path to the delivery engine. The
// escaped form is passed on so encoded slashes survive to the path decoder.
func (h *Handlers) ServeContent(w http.ResponseWriter, r *http.Request) {
	h.engine.ServeContent(w, r, strings.TrimPrefix(r.URL.EscapedPath(), ContentPrefix))
}
