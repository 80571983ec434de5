package http

import (
	"context"
	"net/http"
	"time"
)

type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Uptime    string `json:"uptime"`
	Sessions  int    `json:"sessions"`
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(healthResponse{
		Status:    "ok",
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Sessions:  s.sessions.Count(),
	}).Write(w, r)
}

type readyResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// handleReady runs every configured dependency check.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := readyResponse{
		Status:    "ready",
		Timestamp: time.Now().Format(time.RFC3339),
		Checks:    map[string]string{},
	}
	status := http.StatusOK

	if s.sessions == nil {
		resp.Checks["sessions"] = "not_configured"
		resp.Status = "not_ready"
		status = http.StatusServiceUnavailable
	} else {
		resp.Checks["sessions"] = "ok"
	}
	for name, check := range s.readyChecks {
		if err := check(ctx); err != nil {
			resp.Checks[name] = "failed: " + err.Error()
			resp.Status = "not_ready"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}

	NewJSONResponse().Status(status).Body(resp).Write(w, r)
}
