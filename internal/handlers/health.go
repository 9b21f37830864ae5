package handlers

import (
	"net/http"
	"runtime"
	"time"

	"screenshot-search/internal/startup"
)

const (
	statusHealthy  = "healthy"
	statusStarting = "starting"
)

// HealthResponse contains the health check response
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Uptime      string `json:"uptime"`
	Scanning    bool   `json:"scanning"`
	LastScanned string `json:"lastScanned,omitempty"`

	// Progress info
	FilesScanned int64 `json:"filesScanned"`
	FilesIndexed int64 `json:"filesIndexed"`
	FilesFailed  int64 `json:"filesFailed"`

	// System info
	GoVersion    string `json:"goVersion"`
	NumCPU       int    `json:"numCpu"`
	NumGoroutine int    `json:"numGoroutine"`

	// Index summary
	TotalIndexed int `json:"totalIndexed,omitempty"`
}

// HealthCheck returns the health status of the service
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	progress := h.scanner.Progress()

	response := HealthResponse{
		Status:       statusHealthy,
		Version:      startup.Version,
		Uptime:       time.Since(h.startTime).String(),
		Scanning:     h.scanner.IsScanning(),
		FilesScanned: progress.Scanned,
		FilesIndexed: progress.Indexed,
		FilesFailed:  progress.Failed,
		GoVersion:    runtime.Version(),
		NumCPU:       runtime.NumCPU(),
		NumGoroutine: runtime.NumGoroutine(),
	}

	if last := h.scanner.LastScanTime(); !last.IsZero() {
		response.LastScanned = last.Format(time.RFC3339)
	}

	if stats, err := h.store.Stats(r.Context()); err == nil {
		response.TotalIndexed = stats.TotalIndexed
	} else {
		response.Status = statusStarting
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	writeJSON(w, response)
}

// LivenessCheck is a simple liveness probe (always returns 200 if the
// server is running)
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

// ReadinessCheck returns 200 once the store is reachable. Search is
// served from the store, so readiness does not wait for a scan.
func (h *Handlers) ReadinessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := h.store.Stats(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, map[string]string{
			"status": "not_ready",
		})
		return
	}
	w.WriteHeader(http.StatusOK)
	writeJSON(w, map[string]string{
		"status": "ready",
	})
}
