package handler

import (
	"context"
	"encoding/json"
	"net/http"
)

type healthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// GetHealth handles GET /healthz.
// It returns HTTP 200 with {"status":"ok"} when the store answers a ping
// and HTTP 503 with {"status":"unavailable"} when it does not.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.pingTimeout)
	defer cancel()

	status, body := http.StatusOK, healthResponse{Status: "ok"}
	if err := s.store.Ping(ctx); err != nil {
		status, body = http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Error: err.Error()}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
