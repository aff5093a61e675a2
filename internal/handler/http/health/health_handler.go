package health

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/atomic"
)

// StatsFunc reports the number of registered calls and the executor backlog
type StatsFunc func() (inflight, queueDepth int)

// HealthHandler serves the liveness, readiness and status probes
type HealthHandler struct {
	readiness *atomic.Bool
	stats     StatsFunc
}

// NewHealthHandler creates a HealthHandler
// readiness: flipped to false when shutdown begins
// stats: may be nil, in which case /statusz reports zeros
func NewHealthHandler(readiness *atomic.Bool, stats StatsFunc) *HealthHandler {
	return &HealthHandler{
		readiness: readiness,
		stats:     stats,
	}
}

type statusResponse struct {
	Ready              bool `json:"ready"`
	InflightCalls      int  `json:"inflight_calls"`
	ExecutorQueueDepth int  `json:"executor_queue_depth"`
}

// HandleLiveness handles GET /healthz; the process is alive if it can answer
func (h *HealthHandler) HandleLiveness(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// HandleReadiness handles GET /readyz: 200 while accepting calls, 503 once draining
func (h *HealthHandler) HandleReadiness(c echo.Context) error {
	if h.readiness.Load() {
		return c.NoContent(http.StatusOK)
	}
	return c.NoContent(http.StatusServiceUnavailable)
}

// HandleStatus handles GET /statusz
func (h *HealthHandler) HandleStatus(c echo.Context) error {
	res := statusResponse{Ready: h.readiness.Load()}
	if h.stats != nil {
		res.InflightCalls, res.ExecutorQueueDepth = h.stats()
	}
	return c.JSON(http.StatusOK, res)
}
