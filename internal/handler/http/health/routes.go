package health

import (
	"github.com/labstack/echo/v4"
)

// SetupRoutes registers probe routes with the Echo instance
func (h *HealthHandler) SetupRoutes(e *echo.Echo) {
	e.GET("/healthz", h.HandleLiveness)
	e.GET("/readyz", h.HandleReadiness)
	e.GET("/statusz", h.HandleStatus)
}
