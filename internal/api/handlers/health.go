package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/adaptivenexus/scandoq-chatboat/internal/api"
)

const healthCheckTimeout = 2 * time.Second

type DatabasePinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db DatabasePinger
}

func NewHealthHandler(db DatabasePinger) *HealthHandler {
	return &HealthHandler{db: db}
}

type HealthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// Health reports 503 when the database does not answer within
// healthCheckTimeout.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		log.Printf("health: database check failed: %v", err)
		api.Success(w, http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Database: "error"})
		return
	}
	api.Success(w, http.StatusOK, HealthResponse{Status: "ok", Database: "ok"})
}
