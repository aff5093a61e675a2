package call

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/atomic"

	"github.com/zep-us/callbridge/pkg/engine"
	"github.com/zep-us/callbridge/pkg/registry"
)

// fakeDelegate completes only when the test says so
type fakeDelegate struct {
	mu         sync.Mutex
	cb         engine.Callback
	req        *http.Request
	enqueueErr error
	executed   atomic.Bool
	canceled   atomic.Bool
	execResp   *engine.Response
}

func newFakeDelegate() *fakeDelegate {
	req, _ := http.NewRequest(http.MethodGet, "http://upstream.local/items", nil)
	return &fakeDelegate{req: req}
}

func (f *fakeDelegate) Enqueue(cb engine.Callback) error {
	if f.enqueueErr != nil {
		return f.enqueueErr
	}
	if !f.executed.CompareAndSwap(false, true) {
		return engine.ErrAlreadyExecuted
	}
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
	return nil
}

func (f *fakeDelegate) Execute(context.Context) (*engine.Response, error) {
	if !f.executed.CompareAndSwap(false, true) {
		return nil, engine.ErrAlreadyExecuted
	}
	return f.execResp, nil
}

func (f *fakeDelegate) respond(resp *engine.Response) {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	cb.OnResponse(f, resp)
}

func (f *fakeDelegate) fail(err error) {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	cb.OnFailure(f, err)
}

func (f *fakeDelegate) Cancel()                { f.canceled.Store(true) }
func (f *fakeDelegate) IsCanceled() bool       { return f.canceled.Load() }
func (f *fakeDelegate) IsExecuted() bool       { return f.executed.Load() }
func (f *fakeDelegate) Request() *http.Request { return f.req }
func (f *fakeDelegate) Clone() engine.Delegate {
	return &fakeDelegate{req: f.req.Clone(context.Background())}
}

// manualExecutor holds tasks until the test runs them
type manualExecutor struct {
	mu    sync.Mutex
	tasks []func()
}

func (m *manualExecutor) Execute(task func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, task)
}

func (m *manualExecutor) pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

func (m *manualExecutor) take() []func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	tasks := m.tasks
	m.tasks = nil
	return tasks
}

func (m *manualExecutor) runAll() {
	for {
		tasks := m.take()
		if len(tasks) == 0 {
			return
		}
		for _, t := range tasks {
			t()
		}
	}
}

// runReversed runs queued tasks newest first, like a pool that picked them up out of order
func (m *manualExecutor) runReversed() {
	tasks := m.take()
	for i := len(tasks) - 1; i >= 0; i-- {
		tasks[i]()
	}
}

// countingRegistry wraps the real registry and counts traffic
type countingRegistry struct {
	*registry.Registry
	adds    atomic.Int64
	removes atomic.Int64
	mu      sync.Mutex
	lastTag any
}

func newCountingRegistry() *countingRegistry {
	return &countingRegistry{Registry: registry.New()}
}

func (r *countingRegistry) Add(c registry.Call, tag any) {
	r.adds.Inc()
	r.mu.Lock()
	r.lastTag = tag
	r.mu.Unlock()
	r.Registry.Add(c, tag)
}

func (r *countingRegistry) Remove(c registry.Call) {
	r.removes.Inc()
	r.Registry.Remove(c)
}

// recorder records every callback in order
type recorder struct {
	mu        sync.Mutex
	events    []string
	parse     func(resp *engine.Response) *Result[string]
	onSuccess func(body string)

	failure  error
	canceled bool
	lastErr  *HTTPError
	done     chan struct{}
}

func newRecorder() *recorder {
	return &recorder{
		parse: func(resp *engine.Response) *Result[string] {
			if !resp.IsSuccessful() {
				return Failure[string](&HTTPError{Code: resp.StatusCode, Msg: "bad status"})
			}
			return Success(string(resp.Body))
		},
		done: make(chan struct{}),
	}
}

func (r *recorder) add(ev string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) OnStart(*Call[string]) { r.add("start") }

func (r *recorder) ParseResponse(_ *Call[string], resp *engine.Response) *Result[string] {
	r.add("parseResponse")
	return r.parse(resp)
}

func (r *recorder) ParseFailure(_ *Call[string], err error) *HTTPError {
	r.add("parseFailure")
	return &HTTPError{Msg: "parsed", Cause: err}
}

func (r *recorder) OnSuccess(_ *Call[string], body string) {
	r.add("success:" + body)
	if r.onSuccess != nil {
		r.onSuccess(body)
	}
}

func (r *recorder) OnError(_ *Call[string], err *HTTPError) {
	r.mu.Lock()
	r.lastErr = err
	r.mu.Unlock()
	r.add(fmt.Sprintf("error:%d:%s", err.Code, err.Msg))
}

func (r *recorder) OnCompleted(_ *Call[string], failure error, canceled bool) {
	r.mu.Lock()
	r.failure = failure
	r.canceled = canceled
	r.mu.Unlock()
	r.add(fmt.Sprintf("completed:%v", canceled))
	close(r.done)
}
