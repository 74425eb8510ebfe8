package api

import (
	"net/http"
)

func (s *Server) handleUpstreamStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		jsonError(w, "upstream stats unavailable", http.StatusServiceUnavailable)
		return
	}
	body := map[string]any{"stats": s.stats.Snapshot()}
	if s.orchestrator != nil {
		body["export_queue_depth"] = s.orchestrator.QueueDepth()
	}
	writeJSON(w, http.StatusOK, body)
}
