package api

import (
	"encoding/json"
	"net/http"
)

type healthResponse struct {
	Status string `json:"status"`
	// Endpoints is the number of scheduler endpoints with a cached connection.
	Endpoints int `json:"endpoints"`
}

// handleHealthz reports liveness only. It never contacts the registry or the
// scheduler.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	resp := healthResponse{Status: "ok", Endpoints: len(s.endpoints.Keys())}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("encode healthz response", "error", err)
	}
}
