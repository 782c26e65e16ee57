package rest

import (
	"context"
	"net/http"
	"time"

	"share-worker/internal/contextkeys"
	"share-worker/internal/core/port"
)

type HealthChecker interface {
	Ping(ctx context.Context) error
}

type OpsHandler struct {
	db      HealthChecker
	metrics port.MetricsPort
}

func NewOpsHandler(db HealthChecker, metrics port.MetricsPort) *OpsHandler {
	return &OpsHandler{db: db, metrics: metrics}
}

// Health handles GET /health.
func (h *OpsHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		contextkeys.LoggerFromContext(r.Context()).Warn("Health check failed", port.Fields{"error": err.Error()})
		RespondWithJSON(w, http.StatusServiceUnavailable, HealthResponseDTO{Status: "unavailable", Database: "down"})
		return
	}
	RespondWithJSON(w, http.StatusOK, HealthResponseDTO{Status: "ok", Database: "up"})
}

// Metrics handles GET /api/v1/metrics.
func (h *OpsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, MetricsResponseDTO{Counters: h.metrics.Snapshot()})
}
