package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/skorotkiewicz/gnunet-social/internal/logging"
)

const healthCheckTimeout = 2 * time.Second

// HealthHandler responds with service health information. Database is
// optional and only checked when the activity archive is enabled.
type HealthHandler struct {
	Database Pinger
}

// Handle implements GET /healthz.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	payload := map[string]string{
		"status": "ok",
	}
	status := http.StatusOK

	if h.Database != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := h.Database.Ping(ctx); err != nil {
			logging.FromContext(r.Context()).Warn("database health check failed", "error", err)
			payload["status"] = "degraded"
			payload["database"] = "unreachable"
			status = http.StatusServiceUnavailable
		} else {
			payload["database"] = "ok"
		}
	}

	respondJSON(r.Context(), w, status, payload)
}
