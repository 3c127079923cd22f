package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleClassifierStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		jsonError(w, "classifier stats unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"classifier":  s.cfg.Classifier,
		"queue_depth": s.orchestrator.QueueDepth(),
		"stats":       s.stats.Snapshot(),
	})
}
