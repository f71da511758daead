package handlers

import (
	"net/http"
	"runtime"
	"time"

	"skillgoblin/internal/logging"
	"skillgoblin/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
	statusDegraded = "degraded"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Ready     bool   `json:"ready"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	Scanning  bool   `json:"scanning"`
	LastScan  string `json:"lastScan,omitempty"`
	ScanError string `json:"scanError,omitempty"`

	// Progress info
	TotalCourses     int `json:"totalCourses"`
	ProcessedCourses int `json:"processedCourses"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`

	// Catalog summary
	Courses int `json:"courses"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	tracker := h.orch.Status()
	scan := tracker.Snapshot()
	ready := tracker.Ready()

	response := HealthResponse{
		Ready:            ready,
		Version:          startup.Version,
		Uptime:           time.Since(h.startTime).Round(time.Second).String(),
		Scanning:         scan.InProgress,
		TotalCourses:     scan.TotalCourses,
		ProcessedCourses: scan.ProcessedCourses,
		GoVersion:        runtime.Version(),
		NumCPU:           runtime.NumCPU(),
		NumGoroutine:     runtime.NumGoroutine(),
	}

	if ready {
		response.Status = statusHealthy
	} else {
		response.Status = statusStarting
	}

	if scan.EndTime != nil {
		response.LastScan = scan.EndTime.Format(time.RFC3339)
	}

	if scan.Failed() {
		response.ScanError = scan.Error
		response.Status = statusDegraded
	}

	if count, err := h.db.CourseCount(r.Context()); err == nil {
		response.Courses = count
	} else {
		logging.Warn("Health check could not count courses: %v", err)
	}

	w.Header().Set("Content-Type", "application/json")

	// Return 503 only if not ready at all
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if server is running)
func (h *Handlers) LivenessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	// For HEAD requests, only send headers (no body)
	if r.Method != http.MethodHead {
		writeJSON(w, map[string]string{
			"status": "alive",
		})
	}
}

// ReadinessCheck returns 200 only once the first scan has completed or been skipped
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if h.orch.Status().Ready() {
		w.WriteHeader(http.StatusOK)
		writeJSON(w, map[string]string{
			"status": "ready",
		})
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, map[string]string{
			"status": "not_ready",
		})
	}
}
