package handlers

import (
	"context"
	"net/http"
	"time"
)

// HealthChecker is satisfied by database.PostgresDB and database.RedisDB.
type HealthChecker interface {
	Health(ctx context.Context) error
}

type HealthHandler struct {
	db    HealthChecker
	redis HealthChecker
}

func NewHealthHandler(db, redis HealthChecker) *HealthHandler {
	return &HealthHandler{db: db, redis: redis}
}

type HealthResponse struct {
	Status   string `json:"status"`
	Postgres string `json:"postgres,omitempty"`
	Redis    string `json:"redis,omitempty"`
}

func checkStatus(ctx context.Context, c HealthChecker) string {
	if c == nil {
		return "unconfigured"
	}
	if err := c.Health(ctx); err != nil {
		return "unhealthy"
	}
	return "healthy"
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:   "healthy",
		Postgres: checkStatus(ctx, h.db),
		Redis:    checkStatus(ctx, h.redis),
	}
	status := http.StatusOK
	if resp.Postgres != "healthy" || resp.Redis != "healthy" {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// Ready reports whether the service can take traffic. Redis is required for
// sessions, so both stores must answer.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if checkStatus(ctx, h.db) != "healthy" || checkStatus(ctx, h.redis) != "healthy" {
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ready"})
}

func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "alive"})
}
