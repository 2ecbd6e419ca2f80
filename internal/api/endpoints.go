package api

import "net/http"

type endpointsResponse struct {
	Endpoints []string `json:"endpoints"`
}

func (s *Server) handleListEndpoints(w http.ResponseWriter, _ *http.Request) {
	keys := s.endpoints.Keys()
	if keys == nil {
		keys = []string{}
	}
	s.writeJSON(w, http.StatusOK, endpointsResponse{Endpoints: keys})
}
