package handlers

import (
	"net/http"

	"genienews/internal/core"
)

// Version is reported by the health endpoint
const Version = "1.0.0"

// PortalHandler serves the service-level endpoints shared by all features
type PortalHandler struct {
	logger   *core.Logger
	registry *core.Registry
	db       *core.Database
}

// NewPortalHandler creates a new portal handler
func NewPortalHandler(logger *core.Logger, registry *core.Registry, db *core.Database) *PortalHandler {
	return &PortalHandler{
		logger:   logger,
		registry: registry,
		db:       db,
	}
}

// HealthCheckHandler reports liveness and database reachability
func (h *PortalHandler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	dbStatus := "ok"
	if err := h.db.PingContext(r.Context()); err != nil {
		h.logger.Error("Health check database ping failed", "error", err)
		status = http.StatusServiceUnavailable
		dbStatus = "unreachable"
	}

	core.WriteJSON(w, status, map[string]any{
		"status":   http.StatusText(status),
		"service":  "genienews",
		"version":  Version,
		"database": dbStatus,
	})
}

// FeaturesHandler lists the registered features and whether they run
func (h *PortalHandler) FeaturesHandler(w http.ResponseWriter, r *http.Request) {
	core.WriteJSON(w, http.StatusOK, map[string]any{"features": h.registry.GetFeatureStatus()})
}
