package call

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNilError is the panic value when a failure Result is built without an error
var ErrNilError = errors.New("call: failure result requires a non-nil *HTTPError")

// HTTPError is the error value delivered to Callback.OnError.
// It covers both transport failures and responses that parsed as failures.
type HTTPError struct {
	Code   int         // HTTP status code, 0 when no response was received
	Msg    string      // Human readable description
	Header http.Header // Upstream response headers, if any
	Body   []byte      // Raw upstream body, if any
	Cause  error       // Underlying transport error, if any
}

func (e *HTTPError) Error() string {
	switch {
	case e.Code != 0 && e.Cause != nil:
		return fmt.Sprintf("http %d: %s: %v", e.Code, e.Msg, e.Cause)
	case e.Code != 0:
		return fmt.Sprintf("http %d: %s", e.Code, e.Msg)
	case e.Cause != nil:
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	default:
		return e.Msg
	}
}

func (e *HTTPError) Unwrap() error {
	return e.Cause
}

// Result is either a parsed body or an *HTTPError, never both
type Result[T any] struct {
	body T
	err  *HTTPError
}

// Success wraps a parsed body
func Success[T any](body T) *Result[T] {
	return &Result[T]{body: body}
}

// Failure wraps an error; err must not be nil
func Failure[T any](err *HTTPError) *Result[T] {
	if err == nil {
		panic(ErrNilError)
	}
	return &Result[T]{err: err}
}

func (r *Result[T]) IsSuccess() bool {
	return r.err == nil
}

// Body returns the parsed body; the zero value for a failure
func (r *Result[T]) Body() T {
	return r.body
}

// Error returns the failure, or nil for a success
func (r *Result[T]) Error() *HTTPError {
	return r.err
}
