package handlers

import (
	"context"
	"net/http"
)

// HealthHandler reports process liveness.
type HealthHandler struct{}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Pinger checks a dependency, typically the database pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyHandler reports whether the gateway can serve traffic.
type ReadyHandler struct {
	DB Pinger
}

func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.DB != nil {
		if err := h.DB.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"reason": "database unreachable",
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
