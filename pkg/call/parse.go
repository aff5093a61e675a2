package call

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/zep-us/callbridge/pkg/engine"
)

// FailureFromError classifies a transport failure.
// Code stays 0 since no response was received.
func FailureFromError(err error) *HTTPError {
	var netErr net.Error
	switch {
	case errors.Is(err, engine.ErrCanceled), errors.Is(err, context.Canceled):
		return &HTTPError{Msg: "request canceled", Cause: err}
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return &HTTPError{Msg: "request timed out", Cause: err}
	default:
		return &HTTPError{Msg: "network error", Cause: err}
	}
}

// statusFailure builds the error for a non-2xx response
func statusFailure(resp *engine.Response) *HTTPError {
	msg := http.StatusText(resp.StatusCode)
	if msg == "" {
		msg = "unexpected status"
	}
	return &HTTPError{Code: resp.StatusCode, Msg: msg, Body: resp.Body}
}

// ParseBytes treats 2xx as success with the raw body and anything else as failure
func ParseBytes(resp *engine.Response) *Result[[]byte] {
	if !resp.IsSuccessful() {
		return Failure[[]byte](statusFailure(resp))
	}
	return Success(resp.Body)
}

// ParseJSON decodes a 2xx body into T; other statuses and malformed bodies are failures
func ParseJSON[T any](resp *engine.Response) *Result[T] {
	if !resp.IsSuccessful() {
		return Failure[T](statusFailure(resp))
	}
	var v T
	if err := json.Unmarshal(resp.Body, &v); err != nil {
		return Failure[T](&HTTPError{Code: resp.StatusCode, Msg: "malformed response body", Body: resp.Body, Cause: err})
	}
	return Success(v)
}
