package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"go.uber.org/atomic"

	"github.com/zep-us/callbridge/pkg/callmetrics"
	"github.com/zep-us/callbridge/pkg/logger"
)

// httpCall is the Delegate implementation backed by Client
type httpCall struct {
	client *Client
	req    *http.Request // template; cloned per attempt
	body   []byte        // immutable, shared with clones

	executed atomic.Bool
	canceled atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
}

func (h *httpCall) Enqueue(cb Callback) error {
	if cb == nil {
		return ErrNilCallback
	}
	if !h.executed.CompareAndSwap(false, true) {
		return ErrAlreadyExecuted
	}

	go func() {
		// Cancel must reach a call still waiting for a concurrency slot
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		if !h.publishCancel(cancel) {
			cb.OnFailure(h, ErrCanceled)
			return
		}
		if err := h.client.acquire(ctx); err != nil {
			cb.OnFailure(h, fmt.Errorf("%w: waiting for a concurrency slot: %v", ErrCanceled, err))
			return
		}
		resp, err := h.do(ctx)
		h.client.release()

		if err != nil {
			cb.OnFailure(h, err)
			return
		}
		cb.OnResponse(h, resp)
	}()
	return nil
}

// publishCancel stores cancel for Cancel to find and reports whether the call
// is still live. Storing before reading the flag means a concurrent Cancel is never lost.
func (h *httpCall) publishCancel(cancel context.CancelFunc) bool {
	h.mu.Lock()
	h.cancel = cancel
	h.mu.Unlock()
	return !h.canceled.Load()
}

func (h *httpCall) Execute(ctx context.Context) (*Response, error) {
	if !h.executed.CompareAndSwap(false, true) {
		return nil, ErrAlreadyExecuted
	}
	return h.do(ctx)
}

func (h *httpCall) do(parent context.Context) (*Response, error) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if h.client.timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, h.client.timeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}
	defer cancel()

	if !h.publishCancel(cancel) {
		return nil, ErrCanceled
	}

	req := h.req.Clone(ctx)
	if h.body != nil {
		req.Body = io.NopCloser(bytes.NewReader(h.body))
		req.ContentLength = int64(len(h.body))
		req.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(h.body)), nil
		}
	}

	callmetrics.EngineInflight.Inc()
	defer callmetrics.EngineInflight.Dec()

	resp, err := h.client.httpClient.Do(req)
	if err != nil {
		if h.canceled.Load() {
			return nil, fmt.Errorf("%w: %v", ErrCanceled, err)
		}
		logger.Debug("Engine: %s %s failed: %v", req.Method, req.URL, err)
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, h.client.maxBody))
	if err != nil {
		if h.canceled.Load() || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %v", ErrCanceled, err)
		}
		return nil, fmt.Errorf("failed to read upstream body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		Request:    h.req,
	}, nil
}

func (h *httpCall) Cancel() {
	h.canceled.Store(true)
	h.mu.Lock()
	cancel := h.cancel
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (h *httpCall) IsCanceled() bool {
	return h.canceled.Load()
}

func (h *httpCall) IsExecuted() bool {
	return h.executed.Load()
}

func (h *httpCall) Request() *http.Request {
	return h.req
}

func (h *httpCall) Clone() Delegate {
	return &httpCall{
		client: h.client,
		req:    h.req.Clone(context.Background()),
		body:   h.body,
	}
}
