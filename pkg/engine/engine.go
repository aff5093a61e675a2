// Package engine is the HTTP call engine wrapped by package call.
//
// A Delegate is one request that can be executed exactly once, either
// synchronously with Execute or asynchronously with Enqueue. Async
// completion is reported on an engine goroutine through a Callback.
package engine

import (
	"context"
	"errors"
	"net/http"
)

var (
	// ErrAlreadyExecuted is returned when Execute or Enqueue is called twice on the same Delegate.
	ErrAlreadyExecuted = errors.New("engine: call already executed")

	// ErrCanceled is reported when a call was canceled before or during transport.
	ErrCanceled = errors.New("engine: call canceled")

	// ErrNilCallback is returned by Enqueue when no callback is supplied.
	ErrNilCallback = errors.New("engine: callback is nil")
)

// Response is a fully buffered upstream response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Request    *http.Request
}

// IsSuccessful reports whether the status code is in the 2xx range
func (r *Response) IsSuccessful() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Callback receives the outcome of an enqueued Delegate.
// Exactly one of the two methods is called, on an engine goroutine.
type Callback interface {
	OnResponse(d Delegate, resp *Response)
	OnFailure(d Delegate, err error)
}

// Delegate is a single HTTP call.
type Delegate interface {
	// Enqueue starts the call in the background and reports to cb when done
	Enqueue(cb Callback) error

	// Execute runs the call on the calling goroutine
	Execute(ctx context.Context) (*Response, error)

	// Cancel aborts the call; safe to call at any time and more than once
	Cancel()

	IsCanceled() bool
	IsExecuted() bool

	// Request returns the request template this call was built from
	Request() *http.Request

	// Clone returns a fresh, unexecuted call for the same request
	Clone() Delegate
}

// CallbackFuncs adapts two functions to the Callback interface
type CallbackFuncs struct {
	Response func(d Delegate, resp *Response)
	Failure  func(d Delegate, err error)
}

func (f CallbackFuncs) OnResponse(d Delegate, resp *Response) {
	if f.Response != nil {
		f.Response(d, resp)
	}
}

func (f CallbackFuncs) OnFailure(d Delegate, err error) {
	if f.Failure != nil {
		f.Failure(d, err)
	}
}
