// Package handlers holds the admin surface's HTTP handlers: liveness,
// readiness, and the device status snapshot. Unauthenticated, read-only
// — auth/TLS hardening for this surface is an explicit non-goal.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/henryproto/turnstile-emu/internal/adminserver"
)

// HealthCheckTimeout bounds how long the readiness probe waits on the
// catalog database.
const HealthCheckTimeout = 5 * time.Second

// CatalogPinger is the narrow readiness dependency: anything that can
// report whether its backing store is reachable.
type CatalogPinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves /healthz and /readyz.
type HealthHandler struct {
	catalog CatalogPinger
}

// NewHealthHandler creates a health handler. catalog may be nil, in
// which case readiness always reports unhealthy.
func NewHealthHandler(catalog CatalogPinger) *HealthHandler {
	return &HealthHandler{catalog: catalog}
}

// Liveness handles GET /healthz — always 200 while the process answers.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	adminserver.JSON(w, http.StatusOK, adminserver.HealthyResponse(map[string]string{
		"service": "turnstile-emu",
	}))
}

// Readiness handles GET /readyz — 503 if the catalog database is
// unreachable, 200 otherwise.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		adminserver.JSON(w, http.StatusServiceUnavailable, adminserver.UnhealthyResponse("catalog not initialized"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), HealthCheckTimeout)
	defer cancel()

	start := time.Now()
	err := h.catalog.Ping(ctx)
	latency := time.Since(start)

	if err != nil {
		adminserver.JSON(w, http.StatusServiceUnavailable, adminserver.UnhealthyResponse(err.Error()))
		return
	}
	adminserver.JSON(w, http.StatusOK, adminserver.HealthyResponse(map[string]interface{}{
		"catalog_latency": latency.String(),
	}))
}
