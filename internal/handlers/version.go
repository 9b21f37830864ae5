package handlers

import (
	"net/http"

	"screenshot-search/internal/startup"
)

// GetVersion returns build information for the running binary.
func (h *Handlers) GetVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, startup.GetBuildInfo())
}
