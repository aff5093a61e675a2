package calls

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/zep-us/callbridge/pkg/call"
	"github.com/zep-us/callbridge/pkg/engine"
	"github.com/zep-us/callbridge/pkg/logger"
	"github.com/zep-us/callbridge/pkg/registry"
)

const (
	// HeaderTag selects the registry tag for a call; absent means call.NoTag
	HeaderTag = "X-Call-Tag"

	// HeaderMode selects "sync" (wait for the upstream outcome) or "async" (202 immediately)
	HeaderMode = "X-Call-Mode"
)

// CallsHandler forwards requests upstream through tracked calls
// and exposes tag-based inspection and cancellation
type CallsHandler struct {
	factory     *call.Factory
	registry    *registry.Registry
	syncTimeout time.Duration
}

// NewCallsHandler creates a CallsHandler
// factory: builds wrapped calls bound to the shared executor and registry
// reg: the same registry the factory registers calls with
// syncTimeout: how long a sync request waits for completion before canceling (0 = no limit)
func NewCallsHandler(factory *call.Factory, reg *registry.Registry, syncTimeout time.Duration) *CallsHandler {
	return &CallsHandler{
		factory:     factory,
		registry:    reg,
		syncTimeout: syncTimeout,
	}
}

type acceptedResponse struct {
	ID  string `json:"id"`
	Tag string `json:"tag"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type syncOutcome struct {
	resp     *engine.Response
	err      *call.HTTPError
	canceled bool
}

// parseUpstream treats any 2xx as success and every other status as an error carrying the body
func parseUpstream(_ *call.Call[*engine.Response], resp *engine.Response) *call.Result[*engine.Response] {
	if resp.IsSuccessful() {
		return call.Success(resp)
	}
	return call.Failure[*engine.Response](&call.HTTPError{
		Code:   resp.StatusCode,
		Msg:    http.StatusText(resp.StatusCode),
		Header: resp.Header,
		Body:   resp.Body,
	})
}

// HandleCall handles ANY /v1/calls/* by forwarding method, path, query and body upstream
func (h *CallsHandler) HandleCall(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		logger.Error("Failed to read request body: %v", err)
		return c.NoContent(http.StatusBadRequest)
	}

	tag := c.Request().Header.Get(HeaderTag)
	if tag == "" {
		tag = call.NoTag
	}
	waitForOutcome := strings.EqualFold(c.Request().Header.Get(HeaderMode), "sync")

	headers := engine.ForwardHeaders(c.Request().Header)
	headers.Del(HeaderTag)
	headers.Del(HeaderMode)

	path := "/" + c.Param("*")
	if q := c.Request().URL.RawQuery; q != "" {
		path += "?" + q
	}

	wrapped, err := call.NewCall[*engine.Response](h.factory, c.Request().Method, path, body, headers)
	if err != nil {
		logger.Error("Failed to build upstream call: %v", err)
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}

	if !waitForOutcome {
		return h.dispatchAsync(c, wrapped, tag)
	}
	return h.dispatchSync(c, wrapped, tag)
}

func (h *CallsHandler) dispatchAsync(c echo.Context, wrapped *call.Call[*engine.Response], tag string) error {
	cb := call.Funcs[*engine.Response]{
		Parse: parseUpstream,
		Success: func(cl *call.Call[*engine.Response], resp *engine.Response) {
			logger.Debug("Call %s: upstream returned %d", cl.ID(), resp.StatusCode)
		},
		Error: func(cl *call.Call[*engine.Response], e *call.HTTPError) {
			logger.Warn("Call %s: %v", cl.ID(), e)
		},
		Completed: func(cl *call.Call[*engine.Response], _ error, canceled bool) {
			if canceled {
				logger.Info("Call %s canceled", cl.ID())
			}
		},
	}
	if err := wrapped.EnqueueTagged(tag, cb); err != nil {
		logger.Error("Failed to enqueue call: %v", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusAccepted, acceptedResponse{ID: wrapped.ID(), Tag: tag})
}

func (h *CallsHandler) dispatchSync(c echo.Context, wrapped *call.Call[*engine.Response], tag string) error {
	done := make(chan syncOutcome, 1)
	var out syncOutcome
	cb := call.Funcs[*engine.Response]{
		Parse:   parseUpstream,
		Success: func(_ *call.Call[*engine.Response], resp *engine.Response) { out.resp = resp },
		Error:   func(_ *call.Call[*engine.Response], e *call.HTTPError) { out.err = e },
		Completed: func(_ *call.Call[*engine.Response], _ error, canceled bool) {
			out.canceled = canceled
			done <- out
		},
	}
	if err := wrapped.EnqueueTagged(tag, cb); err != nil {
		logger.Error("Failed to enqueue call: %v", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}

	var timeout <-chan time.Time
	if h.syncTimeout > 0 {
		timer := time.NewTimer(h.syncTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case res := <-done:
		return h.writeOutcome(c, res)
	case <-timeout:
		wrapped.Cancel()
		logger.Warn("Call %s: no outcome after %v, canceled", wrapped.ID(), h.syncTimeout)
		return c.JSON(http.StatusGatewayTimeout, errorResponse{Error: "upstream call timed out"})
	case <-c.Request().Context().Done():
		wrapped.Cancel()
		return c.Request().Context().Err()
	}
}

func (h *CallsHandler) writeOutcome(c echo.Context, res syncOutcome) error {
	switch {
	case res.canceled:
		return c.JSON(http.StatusConflict, errorResponse{Error: "call canceled"})
	case res.resp != nil:
		return relay(c, res.resp.StatusCode, res.resp.Header, res.resp.Body)
	case res.err != nil && res.err.Code != 0:
		return relay(c, res.err.Code, res.err.Header, res.err.Body)
	case res.err != nil && isTimeout(res.err):
		return c.JSON(http.StatusGatewayTimeout, errorResponse{Error: res.err.Error()})
	case res.err != nil:
		return c.JSON(http.StatusBadGateway, errorResponse{Error: res.err.Error()})
	default:
		return c.NoContent(http.StatusBadGateway)
	}
}

// relay writes an upstream reply through unchanged, minus the headers echo computes itself
func relay(c echo.Context, code int, header http.Header, body []byte) error {
	engine.RelayHeaders(c.Response().Header(), header)
	c.Response().WriteHeader(code)
	_, err := c.Response().Write(body)
	return err
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout())
}

// HandleCancelTag handles DELETE /v1/tags/:tag
func (h *CallsHandler) HandleCancelTag(c echo.Context) error {
	tag := c.Param("tag")
	n := h.registry.Cancel(tag)
	return c.JSON(http.StatusOK, map[string]any{"tag": tag, "canceled": n})
}

// HandleCancelAll handles DELETE /v1/tags
func (h *CallsHandler) HandleCancelAll(c echo.Context) error {
	n := h.registry.CancelAll()
	return c.JSON(http.StatusOK, map[string]any{"canceled": n})
}

// HandleListTags handles GET /v1/tags
func (h *CallsHandler) HandleListTags(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"tags":     h.registry.Counts(),
		"inflight": h.registry.Len(),
	})
}
