package handlers

import (
	"context"
	"net/http"
	"time"
)

// Pinger is anything whose connectivity can be checked
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports liveness and readiness
type HealthHandler struct {
	db Pinger
}

// NewHealthHandler creates a handler; db may be nil when no store is configured
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// GetHealth handles GET /api/health
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetReady handles GET /api/health/ready
// Checks the refresh log database is reachable
func (h *HealthHandler) GetReady(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":    "ok",
			"database":  "disabled",
			"timestamp": time.Now().UTC(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "error",
			"database":  "disconnected",
			"timestamp": time.Now().UTC(),
			"error":     err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"database":  "connected",
		"timestamp": time.Now().UTC(),
	})
}
