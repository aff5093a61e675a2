package httpiface

import "github.com/labstack/echo/v4"

// HttpRouter is implemented by every handler the app mounts on Echo
type HttpRouter interface {
	SetupRoutes(e *echo.Echo)
}
