package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is the slice of the store the health check needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Database    string    `json:"database"`
	Environment string    `json:"environment"`
}

type HealthHandler struct {
	db          Pinger
	environment string
	logger      *slog.Logger
	now         func() time.Time
}

func NewHealthHandler(db Pinger, environment string, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{db: db, environment: environment, logger: logger, now: time.Now}
}

// HandleHealth reports liveness and database connectivity.
//
// HTTP: GET /health
//
// A failed ping answers 503 so load balancers take the instance out of
// rotation.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:      "ok",
		Timestamp:   h.now().UTC(),
		Database:    "connected",
		Environment: h.environment,
	}
	status := http.StatusOK

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn("health check: database ping failed", slog.String("error", err.Error()))
		resp.Status = "degraded"
		resp.Database = "disconnected"
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, resp)
}
