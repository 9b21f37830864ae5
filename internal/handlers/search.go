package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"screenshot-search/internal/store"
)

// Search answers GET /api/search. The term may be empty, in which
// case all records matching the date and folder filters are returned
// most recently indexed first.
func (h *Handlers) Search(w http.ResponseWriter, r *http.Request) {
	opts := store.SearchOptions{
		Term:   r.URL.Query().Get("q"),
		Date:   store.ParseDateFilter(r.URL.Query().Get("date")),
		Folder: r.URL.Query().Get("folder"),
	}

	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit > 0 {
		opts.Limit = limit
	}

	result, err := h.store.Search(r.Context(), opts)
	if err != nil {
		writeJSONError(w, "search failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, result)
}

// GetFolders returns the distinct folders present in the index.
func (h *Handlers) GetFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := h.store.Folders(r.Context())
	if err != nil {
		writeJSONError(w, "folder listing failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]interface{}{"folders": folders})
}

// GetText returns the full extracted text for a single indexed image.
func (h *Handlers) GetText(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeJSONError(w, "path parameter is required", http.StatusBadRequest)
		return
	}

	text, err := h.store.Text(r.Context(), path)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSONError(w, "not indexed", http.StatusNotFound)
			return
		}
		writeJSONError(w, "text lookup failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"path": path, "text": text})
}

// GetStats returns index statistics.
func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		writeJSONError(w, "stats query failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, stats)
}
