package executor

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/zep-us/callbridge/pkg/callmetrics"
	"github.com/zep-us/callbridge/pkg/logger"
)

// Pool represents a bounded goroutine worker pool for callback tasks
// Tasks from different calls may run concurrently; ordering across calls is not kept
type Pool struct {
	workerCount     int
	tasks           chan func()
	quit            chan struct{} // closed by Stop to release blocked senders
	wg              sync.WaitGroup
	senders         sync.WaitGroup // Execute calls that may still send on tasks
	mu              sync.RWMutex   // guards stopped against new senders
	stopped         atomic.Bool
	stopOnce        sync.Once
	startOnce       sync.Once
	shutdownTimeout time.Duration
}

// NewPool creates a new worker pool
//
// Parameters:
//   - workerCount: number of worker goroutines (<= 0 uses NumCPU)
//   - queueSize: buffer capacity for queued tasks (<= 0 uses 10000)
//   - shutdownTimeout: maximum time Stop waits for workers to finish
func NewPool(workerCount int, queueSize int, shutdownTimeout time.Duration) *Pool {
	// Callback tasks are CPU-bound parse/dispatch work, no need for more workers than cores
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
		logger.Info("Executor pool size not configured, using default: %d (NumCPU)", workerCount)
	}
	if queueSize <= 0 {
		queueSize = 10000
		logger.Info("Executor queue size not configured, using default: %d", queueSize)
	}

	logger.Info("Creating executor pool: workers=%d, queueSize=%d, shutdownTimeout=%v", workerCount, queueSize, shutdownTimeout)

	return &Pool{
		workerCount:     workerCount,
		tasks:           make(chan func(), queueSize),
		quit:            make(chan struct{}),
		shutdownTimeout: shutdownTimeout,
	}
}

// Start spawns all worker goroutines; it is safe to call multiple times
func (p *Pool) Start() {
	p.startOnce.Do(func() {
		logger.Info("Starting executor pool with %d workers", p.workerCount)
		for i := 0; i < p.workerCount; i++ {
			p.wg.Add(1)
			go p.worker(i)
		}
	})
}

// Stop releases blocked senders, closes the task queue and waits for workers to drain it.
// If the timeout is exceeded, Stop returns but some workers may still be running.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.Start()

		p.mu.Lock()
		p.stopped.Store(true)
		close(p.quit)
		p.mu.Unlock()

		logger.Info("Stopping executor pool: closing task queue and waiting for workers to finish")

		done := make(chan struct{})
		go func() {
			defer close(done)
			// no sender can be mid-send once this returns
			p.senders.Wait()
			close(p.tasks)
			p.wg.Wait()
		}()

		select {
		case <-done:
			logger.Info("Executor pool stopped: all workers finished gracefully")
		case <-time.After(p.shutdownTimeout):
			logger.Warn("Executor pool stop timed out after %v: some workers may not have finished", p.shutdownTimeout)
		}
	})
}

// Execute queues task, blocking while the queue is full. No lock is held while
// blocked, so Stop can proceed; a sender still blocked when Stop begins runs its task inline.
//
// A task running on this pool that submits to the same pool blocks while the
// queue is full; if every worker does so at once the pool stalls until Stop.
// Callbacks that chain calls under load should use the Loop executor.
func (p *Pool) Execute(task func()) {
	if task == nil {
		return
	}
	p.mu.RLock()
	if p.stopped.Load() {
		p.mu.RUnlock()
		logger.Warn("Executor pool stopped: running task on caller goroutine")
		runTask(task)
		return
	}
	p.senders.Add(1)
	p.mu.RUnlock()
	defer p.senders.Done()

	select {
	case p.tasks <- task:
	case <-p.quit:
		logger.Warn("Executor pool stopping: running task on caller goroutine")
		runTask(task)
	}
}

// TryExecute queues task without blocking
// Returns ErrQueueFull when the queue is at capacity (backpressure)
func (p *Pool) TryExecute(task func()) error {
	if task == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped.Load() {
		return fmt.Errorf("executor pool stopped: %w", ErrQueueFull)
	}
	select {
	case p.tasks <- task:
		return nil
	default:
		logger.Warn("Executor queue full: rejecting task (queue size: %d)", cap(p.tasks))
		return fmt.Errorf("%w (capacity: %d)", ErrQueueFull, cap(p.tasks))
	}
}

// QueueDepth returns the current number of tasks in the queue
func (p *Pool) QueueDepth() int {
	return len(p.tasks)
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	logger.Debug("Executor worker %d started", id)
	for task := range p.tasks {
		callmetrics.ActiveWorkers.Inc()
		runTask(task)
		callmetrics.ActiveWorkers.Dec()
	}
	logger.Debug("Executor worker %d stopped", id)
}
