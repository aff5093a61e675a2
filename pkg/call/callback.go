package call

import (
	"github.com/zep-us/callbridge/pkg/engine"
)

// Callback is the contract a caller implements to consume a tagged call.
// Every method runs on the call's executor, never concurrently for the same call.
//
// For a call that is not canceled the order is
//
//	OnStart, ParseResponse or ParseFailure, OnSuccess or OnError, OnCompleted
//
// A canceled call only sees OnCompleted with canceled set.
type Callback[T any] interface {
	OnStart(c *Call[T])

	// ParseResponse turns any received response, 2xx or not, into a Result.
	// It must not return nil.
	ParseResponse(c *Call[T], resp *engine.Response) *Result[T]

	// ParseFailure turns a transport failure into the error handed to OnError.
	// It must not return nil.
	ParseFailure(c *Call[T], err error) *HTTPError

	OnSuccess(c *Call[T], body T)
	OnError(c *Call[T], err *HTTPError)

	// OnCompleted always runs last; failure is the transport error or nil
	OnCompleted(c *Call[T], failure error, canceled bool)
}

// Funcs adapts plain functions to Callback.
// Parse is mandatory; Failure defaults to FailureFromError and the rest are optional.
type Funcs[T any] struct {
	Start        func(c *Call[T])
	Parse        func(c *Call[T], resp *engine.Response) *Result[T]
	Failure      func(c *Call[T], err error) *HTTPError
	Success      func(c *Call[T], body T)
	Error        func(c *Call[T], err *HTTPError)
	Completed    func(c *Call[T], failure error, canceled bool)
}

func (f Funcs[T]) OnStart(c *Call[T]) {
	if f.Start != nil {
		f.Start(c)
	}
}

func (f Funcs[T]) ParseResponse(c *Call[T], resp *engine.Response) *Result[T] {
	if f.Parse == nil {
		return nil
	}
	return f.Parse(c, resp)
}

func (f Funcs[T]) ParseFailure(c *Call[T], err error) *HTTPError {
	if f.Failure == nil {
		return FailureFromError(err)
	}
	return f.Failure(c, err)
}

func (f Funcs[T]) OnSuccess(c *Call[T], body T) {
	if f.Success != nil {
		f.Success(c, body)
	}
}

func (f Funcs[T]) OnError(c *Call[T], err *HTTPError) {
	if f.Error != nil {
		f.Error(c, err)
	}
}

func (f Funcs[T]) OnCompleted(c *Call[T], failure error, canceled bool) {
	if f.Completed != nil {
		f.Completed(c, failure, canceled)
	}
}
