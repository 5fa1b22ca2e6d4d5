// Package handlers contains the echo handlers for the gateway's HTTP
// surface: health, the dashboard feed, and the Meta webhook.
package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// HealthHandler answers liveness probes.
type HealthHandler struct{}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// Register registers the health route.
func (h *HealthHandler) Register(e *echo.Echo) {
	e.GET("/healthz", h.Check)
}

// Check reports process liveness.
func (h *HealthHandler) Check(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
