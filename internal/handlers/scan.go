package handlers

import (
	"context"
	"errors"
	"net/http"

	"screenshot-search/internal/logging"
	"screenshot-search/internal/scanner"
)

// TriggerScan answers POST /api/scan. The scan runs in the background;
// a request while one is active is rejected, not queued.
func (h *Handlers) TriggerScan(w http.ResponseWriter, _ *http.Request) {
	if h.scanner.IsScanning() {
		writeJSONError(w, "scan already in progress", http.StatusConflict)
		return
	}

	go func() {
		if _, err := h.scanner.Scan(context.Background()); err != nil {
			switch {
			case errors.Is(err, scanner.ErrScanActive):
				// Lost the race to another trigger; nothing to do.
			case errors.Is(err, scanner.ErrRootUnavailable):
				logging.Error("Scan failed, screenshots folder not found: %v", err)
			default:
				logging.Error("Scan failed: %v", err)
			}
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]string{"status": "scan started"})
}

// ScanStatus answers GET /api/scan/status with the latest progress
// snapshot.
func (h *Handlers) ScanStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, h.scanner.Progress())
}

// Prune answers POST /api/prune: removes records for files that no
// longer exist on disk. Scans never prune; this is the only way
// stale records are removed.
func (h *Handlers) Prune(w http.ResponseWriter, r *http.Request) {
	if h.scanner.IsScanning() {
		writeJSONError(w, "scan in progress, try again later", http.StatusConflict)
		return
	}

	pruned, err := h.store.PruneMissing(r.Context())
	if err != nil {
		writeJSONError(w, "prune failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]int64{"pruned": pruned})
}
