package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/docoutline/internal/store"
)

const defaultListLimit = 50

// handleListOutlines lists cached outlines, newest first.
func (s *Server) handleListOutlines(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		jsonError(w, "outline cache disabled", http.StatusServiceUnavailable)
		return
	}
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	recs, err := s.catalog.List(r.Context(), limit)
	if err != nil {
		jsonError(w, "failed to list outlines: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []store.Record{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"outlines": recs})
}

// handleDeleteOutline drops one cached outline so the next upload of the
// same bytes is outlined again.
func (s *Server) handleDeleteOutline(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		jsonError(w, "outline cache disabled", http.StatusServiceUnavailable)
		return
	}
	hash := chi.URLParam(r, "hash")
	err := s.catalog.Delete(r.Context(), hash)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, "outline not found", http.StatusNotFound)
		return
	}
	if err != nil {
		jsonError(w, "failed to delete outline: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"deleted": hash})
}
