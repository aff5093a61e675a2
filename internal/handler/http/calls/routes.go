package calls

import (
	"github.com/labstack/echo/v4"
)

// SetupRoutes registers call forwarding and tag management routes with the Echo instance
func (h *CallsHandler) SetupRoutes(e *echo.Echo) {
	e.Any("/v1/calls/*", h.HandleCall)
	e.GET("/v1/tags", h.HandleListTags)
	e.DELETE("/v1/tags", h.HandleCancelAll)
	e.DELETE("/v1/tags/:tag", h.HandleCancelTag)
}
