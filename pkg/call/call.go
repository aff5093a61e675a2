// Package call wraps engine calls so that every callback runs on a chosen
// executor and every in-flight call is tracked under a tag.
package call

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/zep-us/callbridge/pkg/callmetrics"
	"github.com/zep-us/callbridge/pkg/engine"
	"github.com/zep-us/callbridge/pkg/logger"
	"github.com/zep-us/callbridge/pkg/registry"
)

// NoTag is the tag used when EnqueueTagged is given a nil tag
const NoTag = "NO_TAG"

var (
	// ErrNilCallback is returned by EnqueueTagged when no callback is supplied
	ErrNilCallback = errors.New("call: callback is nil")

	// ErrUntaggedEnqueue is returned by the untagged Enqueue form, which is not supported
	ErrUntaggedEnqueue = fmt.Errorf("call: use EnqueueTagged(tag, callback): %w", errors.ErrUnsupported)

	// ErrNilExecutor is the panic value when a Call is built without an executor
	ErrNilExecutor = errors.New("call: executor is nil")

	// ErrNilResult is the panic value when ParseResponse returns nil
	ErrNilResult = errors.New("call: ParseResponse returned nil")

	// ErrNilFailure is the panic value when a failure is reported without a cause
	ErrNilFailure = errors.New("call: failure reported without a cause")
)

// Executor runs callback tasks in the caller-chosen execution context
type Executor interface {
	Execute(task func())
}

// Registry tracks in-flight calls by tag
type Registry interface {
	Add(c registry.Call, tag any)
	Remove(c registry.Call)
}

type nopRegistry struct{}

func (nopRegistry) Add(registry.Call, any) {}
func (nopRegistry) Remove(registry.Call)   {}

// Call decorates an engine.Delegate. It owns the delegate; the executor and
// registry are shared and outlive it.
type Call[T any] struct {
	id       string
	delegate engine.Delegate
	executor Executor
	registry Registry

	enqueued atomic.Bool
}

// New wraps delegate. It panics if executor is nil; a nil registry disables tracking.
func New[T any](delegate engine.Delegate, executor Executor, reg Registry) *Call[T] {
	if executor == nil {
		panic(ErrNilExecutor)
	}
	if reg == nil {
		reg = nopRegistry{}
	}
	return &Call[T]{
		id:       uuid.NewString(),
		delegate: delegate,
		executor: executor,
		registry: reg,
	}
}

// ID uniquely identifies this call instance; clones get a new ID
func (c *Call[T]) ID() string {
	return c.id
}

// Enqueue is the untagged form of the engine API. It always fails and has no
// side effects: calls must be dispatched with EnqueueTagged so they can be tracked.
func (c *Call[T]) Enqueue(engine.Callback) error {
	return ErrUntaggedEnqueue
}

// EnqueueTagged registers the call under tag (NoTag when nil), schedules
// OnStart on the executor and starts the delegate. The outcome is delivered
// to cb on the executor.
func (c *Call[T]) EnqueueTagged(tag any, cb Callback[T]) error {
	if cb == nil {
		return ErrNilCallback
	}
	// Claimed before registration so a concurrent second enqueue cannot
	// register, fail and then remove the winner's registry entry
	if !c.enqueued.CompareAndSwap(false, true) || c.delegate.IsExecuted() {
		return engine.ErrAlreadyExecuted
	}
	if tag == nil {
		tag = NoTag
	}

	c.registry.Add(c, tag)
	callmetrics.CallsEnqueued.Inc()
	logger.Debug("Call %s enqueued with tag %v", c.id, tag)

	// The completion task may be picked up first on a multi-worker executor;
	// whichever task gets here first runs OnStart and the other waits for it.
	var startOnce sync.Once
	start := func() {
		startOnce.Do(func() {
			if !c.IsCanceled() {
				cb.OnStart(c)
			}
		})
	}
	c.executor.Execute(start)

	err := c.delegate.Enqueue(engine.CallbackFuncs{
		Response: func(_ engine.Delegate, resp *engine.Response) {
			c.executor.Execute(func() {
				start()
				c.complete(cb, resp, nil)
			})
		},
		Failure: func(_ engine.Delegate, err error) {
			c.executor.Execute(func() {
				start()
				c.complete(cb, nil, err)
			})
		},
	})
	if err != nil {
		// Lost a race with a concurrent Execute; finish through the
		// failure path so the registration above is still released
		logger.Warn("Call %s: delegate refused enqueue: %v", c.id, err)
		c.executor.Execute(func() {
			start()
			c.complete(cb, nil, err)
		})
	}
	return nil
}

// complete runs the completion protocol on the executor.
// OnCompleted and deregistration run even if a callback panics.
func (c *Call[T]) complete(cb Callback[T], resp *engine.Response, failure error) {
	defer c.registry.Remove(c)

	outcome := callmetrics.OutcomeError
	defer func() {
		canceled := c.IsCanceled()
		if canceled {
			outcome = callmetrics.OutcomeCanceled
		}
		callmetrics.CallsCompleted.WithLabelValues(outcome).Inc()
		cb.OnCompleted(c, failure, canceled)
	}()

	if c.IsCanceled() {
		return
	}

	var result *Result[T]
	if resp != nil {
		result = cb.ParseResponse(c, resp)
		if result == nil {
			panic(ErrNilResult)
		}
	} else {
		if failure == nil {
			panic(ErrNilFailure)
		}
		result = Failure[T](cb.ParseFailure(c, failure))
	}

	if result.IsSuccess() {
		outcome = callmetrics.OutcomeSuccess
		cb.OnSuccess(c, result.Body())
	} else {
		outcome = callmetrics.OutcomeError
		cb.OnError(c, result.Error())
	}
}

// Execute runs the delegate synchronously, bypassing the executor, the registry and callbacks
func (c *Call[T]) Execute(ctx context.Context) (*engine.Response, error) {
	return c.delegate.Execute(ctx)
}

func (c *Call[T]) Cancel() {
	c.delegate.Cancel()
}

func (c *Call[T]) IsCanceled() bool {
	return c.delegate.IsCanceled()
}

func (c *Call[T]) IsExecuted() bool {
	return c.delegate.IsExecuted()
}

func (c *Call[T]) Request() *http.Request {
	return c.delegate.Request()
}

// Clone returns an independent call around a fresh copy of the delegate,
// sharing this call's executor and registry
func (c *Call[T]) Clone() *Call[T] {
	return New[T](c.delegate.Clone(), c.executor, c.registry)
}
