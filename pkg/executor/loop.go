package executor

import (
	"sync"
	"time"

	"github.com/eapache/queue"

	"github.com/zep-us/callbridge/pkg/callmetrics"
	"github.com/zep-us/callbridge/pkg/logger"
)

// Loop runs tasks one at a time, in submission order, on a single goroutine.
// It is the analogue of a UI thread: Execute never blocks and never rejects.
type Loop struct {
	mu              sync.Mutex
	cond            *sync.Cond
	tasks           *queue.Queue // unbounded FIFO of func()
	closed          bool
	done            chan struct{}
	startOnce       sync.Once
	stopOnce        sync.Once
	shutdownTimeout time.Duration
}

// NewLoop creates a dispatch loop; tasks queue up until Start is called
func NewLoop(shutdownTimeout time.Duration) *Loop {
	l := &Loop{
		tasks:           queue.New(),
		done:            make(chan struct{}),
		shutdownTimeout: shutdownTimeout,
	}
	l.cond = sync.NewCond(&l.mu)
	return l
}

func (l *Loop) Start() {
	l.startOnce.Do(func() {
		logger.Info("Starting dispatch loop")
		go l.run()
	})
}

// Stop closes the loop, lets it drain everything already queued, and waits
// up to the shutdown timeout. Safe to call multiple times.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		// A loop that was never started still has to drain its queue
		l.Start()

		l.mu.Lock()
		l.closed = true
		pending := l.tasks.Length()
		l.cond.Broadcast()
		l.mu.Unlock()

		logger.Info("Stopping dispatch loop: draining %d queued tasks", pending)

		select {
		case <-l.done:
			logger.Info("Dispatch loop stopped: queue drained")
		case <-time.After(l.shutdownTimeout):
			logger.Warn("Dispatch loop stop timed out after %v", l.shutdownTimeout)
		}
	})
}

func (l *Loop) Execute(task func()) {
	if task == nil {
		return
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		logger.Warn("Dispatch loop stopped: running task on caller goroutine")
		runTask(task)
		return
	}
	l.tasks.Add(task)
	callmetrics.QueueDepth.Set(float64(l.tasks.Length()))
	l.cond.Signal()
	l.mu.Unlock()
}

func (l *Loop) QueueDepth() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tasks.Length()
}

func (l *Loop) run() {
	defer close(l.done)
	for {
		l.mu.Lock()
		for l.tasks.Length() == 0 && !l.closed {
			l.cond.Wait()
		}
		if l.tasks.Length() == 0 {
			l.mu.Unlock()
			return
		}
		task := l.tasks.Remove().(func())
		callmetrics.QueueDepth.Set(float64(l.tasks.Length()))
		l.mu.Unlock()

		callmetrics.ActiveWorkers.Inc()
		runTask(task)
		callmetrics.ActiveWorkers.Dec()
	}
}
