package api

import (
	"net/http"
)

// statsResponse is the JSON response for GET /v1/stats.
type statsResponse struct {
	Total         int            `json:"total"`
	ByStatus      map[string]int `json:"by_status"`
	ByMethod      map[string]int `json:"by_method"`
	AvgDurationMS float64        `json:"avg_duration_ms"`
	Endpoints     int            `json:"endpoints"`
	Streams       int            `json:"streams"`
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetCallStats(r.Context())
	if err != nil {
		s.logger.Error("get call stats", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	s.writeJSON(w, http.StatusOK, statsResponse{
		Total:         stats.Total,
		ByStatus:      stats.CountByStatus,
		ByMethod:      stats.CountByMethod,
		AvgDurationMS: stats.AvgDurationMS,
		Endpoints:     len(s.endpoints.Keys()),
		Streams:       s.broker.Subscribers(),
	})
}
