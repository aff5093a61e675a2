package executor

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestPool_BoundedConcurrency verifies max workers respected
func TestPool_BoundedConcurrency(t *testing.T) {
	concurrent := int32(0)
	maxConcurrent := int32(0)
	var mu sync.Mutex
	var wg sync.WaitGroup

	pool := NewPool(2, 100, 5*time.Second)
	pool.Start()
	defer pool.Stop()

	for i := 0; i < 10; i++ {
		wg.Add(1)
		pool.Execute(func() {
			defer wg.Done()
			current := atomic.AddInt32(&concurrent, 1)
			mu.Lock()
			if current > maxConcurrent {
				maxConcurrent = current
			}
			mu.Unlock()
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&concurrent, -1)
		})
	}
	wg.Wait()

	if maxConcurrent > 2 {
		t.Errorf("expected max 2 concurrent workers, got %d", maxConcurrent)
	}
}

// TestPool_TryExecute_Backpressure verifies a full queue returns ErrQueueFull
func TestPool_TryExecute_Backpressure(t *testing.T) {
	pool := NewPool(1, 1, 5*time.Second)
	release := make(chan struct{})
	running := make(chan struct{})

	pool.Start()
	defer pool.Stop()
	defer close(release)

	// Occupy the only worker, then fill the one queue slot
	if err := pool.TryExecute(func() { close(running); <-release }); err != nil {
		t.Fatalf("first task rejected: %v", err)
	}
	<-running
	if err := pool.TryExecute(func() {}); err != nil {
		t.Fatalf("second task rejected: %v", err)
	}

	err := pool.TryExecute(func() {})
	if !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
}

// TestPool_GracefulShutdown verifies queued tasks complete before Stop returns
func TestPool_GracefulShutdown(t *testing.T) {
	completed := int32(0)

	pool := NewPool(2, 10, 5*time.Second)
	pool.Start()

	for i := 0; i < 5; i++ {
		pool.Execute(func() {
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt32(&completed, 1)
		})
	}

	pool.Stop()

	if got := atomic.LoadInt32(&completed); got != 5 {
		t.Errorf("expected 5 tasks completed, got %d", got)
	}
}

// TestPool_StopIdempotent verifies Stop can be called twice and a never-started pool drains
func TestPool_StopIdempotent(t *testing.T) {
	ran := int32(0)
	pool := NewPool(1, 10, 5*time.Second)
	pool.Execute(func() { atomic.AddInt32(&ran, 1) })

	pool.Stop()
	pool.Stop()

	if atomic.LoadInt32(&ran) != 1 {
		t.Error("task queued before Start was not drained by Stop")
	}
}

// TestPool_ExecuteAfterStop_RunsInline verifies late tasks are never dropped
func TestPool_ExecuteAfterStop_RunsInline(t *testing.T) {
	pool := NewPool(1, 1, time.Second)
	pool.Start()
	pool.Stop()

	ran := false
	pool.Execute(func() { ran = true })
	if !ran {
		t.Error("expected task to run on caller goroutine after Stop")
	}

	if err := pool.TryExecute(func() {}); err == nil {
		t.Error("expected TryExecute to fail after Stop")
	}
}

// TestPool_RecoversPanics verifies a panicking task does not kill its worker
func TestPool_RecoversPanics(t *testing.T) {
	pool := NewPool(1, 10, 5*time.Second)
	pool.Start()
	defer pool.Stop()

	done := make(chan struct{})
	pool.Execute(func() { panic("boom") })
	pool.Execute(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive a panicking task")
	}
}

// TestPool_ShutdownTimeout verifies Stop does not wait forever on a stuck task
func TestPool_ShutdownTimeout(t *testing.T) {
	pool := NewPool(1, 10, 200*time.Millisecond)
	pool.Start()

	release := make(chan struct{})
	defer close(release)
	pool.Execute(func() { <-release })

	start := time.Now()
	pool.Stop()
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Stop() took %v, expected ~200ms (timeout)", elapsed)
	}
}

// TestPool_StopReleasesBlockedSender verifies Stop is not held up by an Execute blocked on a full queue
func TestPool_StopReleasesBlockedSender(t *testing.T) {
	pool := NewPool(1, 1, 5*time.Second)
	pool.Start()

	release := make(chan struct{})
	running := make(chan struct{})
	pool.Execute(func() { close(running); <-release })
	<-running
	pool.Execute(func() {}) // fills the queue

	blockedRan := make(chan struct{})
	sent := make(chan struct{})
	go func() {
		defer close(sent)
		pool.Execute(func() { close(blockedRan) })
	}()

	// give the sender time to block on the full queue
	time.Sleep(50 * time.Millisecond)
	select {
	case <-sent:
		t.Fatal("expected Execute to block while the queue is full")
	default:
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		pool.Stop()
	}()

	select {
	case <-blockedRan:
	case <-time.After(2 * time.Second):
		t.Fatal("blocked sender was not released by Stop")
	}
	<-sent

	close(release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the running task finished")
	}
}
