// Package executor provides execution contexts that callback tasks are marshalled onto.
package executor

import (
	"errors"
	"runtime/debug"

	"github.com/zep-us/callbridge/pkg/callmetrics"
	"github.com/zep-us/callbridge/pkg/logger"
)

// ErrQueueFull is returned by TryExecute when the executor cannot take more work
var ErrQueueFull = errors.New("executor: queue full")

// Service is an executor with a managed lifecycle
// Implementations may use a single dispatch loop or a bounded worker pool
type Service interface {
	// Execute schedules task; it never drops the task
	Execute(task func())

	// Start launches the background goroutines; safe to call more than once
	Start()

	// Stop drains queued tasks and waits for them up to the shutdown timeout;
	// tasks submitted after Stop run on the caller goroutine
	Stop()

	// QueueDepth returns the number of tasks waiting to run
	QueueDepth() int
}

// Func adapts an ordinary function to an executor
type Func func(task func())

func (f Func) Execute(task func()) {
	f(task)
}

// Direct runs every task on the goroutine that submits it
type Direct struct{}

func (Direct) Execute(task func()) {
	runTask(task)
}

// runTask runs one task and recovers a panic so the executor keeps serving
func runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			callmetrics.ExecutorPanics.Inc()
			logger.Error("Executor task panicked: %v\n%s", r, debug.Stack())
		}
	}()
	task()
}
