package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"skillgoblin/internal/indexer"
	"skillgoblin/internal/logging"
)

// ScanStatusResponse is the scan state as seen by clients.
type ScanStatusResponse struct {
	indexer.Status
	Timestamp int64 `json:"timestamp"`
}

func scanStatus(s indexer.Status) ScanStatusResponse {
	return ScanStatusResponse{Status: s, Timestamp: time.Now().UnixMilli()}
}

// GetScanStatus reports the progress of the current or last full scan.
func (h *Handlers) GetScanStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	writeJSONOK(w, scanStatus(h.orch.Status().Snapshot()))
}

type rescanRequest struct {
	PreserveMetadata *bool `json:"preserveMetadata"`
}

type rescanOptions struct {
	PreserveMetadata bool `json:"preserveMetadata"`
}

type rescanResponse struct {
	Success bool               `json:"success"`
	Message string             `json:"message"`
	Options rescanOptions      `json:"options"`
	Status  ScanStatusResponse `json:"status"`
}

// Rescan starts a forced full scan in the background. Metadata edits are
// preserved unless the body sets preserveMetadata to false.
func (h *Handlers) Rescan(w http.ResponseWriter, r *http.Request) {
	var req rescanRequest
	if r.Body != nil {
		err := json.NewDecoder(io.LimitReader(r.Body, 4096)).Decode(&req)
		if err != nil && !errors.Is(err, io.EOF) {
			writeJSONError(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}

	preserve := true
	if req.PreserveMetadata != nil {
		preserve = *req.PreserveMetadata
	}

	status, err := h.orch.StartFullScan(true, preserve)
	if err != nil {
		logging.Error("Failed to start rescan: %v", err)
		writeJSONError(w, "Failed to start rescan", http.StatusInternalServerError)
		return
	}

	logging.Info("Rescan requested (preserveMetadata=%v, run %s)", preserve, status.RunID)
	writeJSONOK(w, rescanResponse{
		Success: true,
		Message: "Course rescan initiated",
		Options: rescanOptions{PreserveMetadata: preserve},
		Status:  scanStatus(status),
	})
}
