// Package callmetrics holds the Prometheus collectors updated by the call,
// engine, executor and registry packages. They are created unregistered so
// importing a library package has no side effect on any registry; the
// embedding service exposes them with Register.
package callmetrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const Namespace = "callbridge"

// Outcome labels for CallsCompleted
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeCanceled = "canceled"
)

// factory builds collectors without registering them anywhere
var factory = promauto.With(nil)

var (
	// QueueDepth tracks the number of tasks waiting on the callback executor
	QueueDepth = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "executor_queue_depth",
		Help:      "Current number of tasks queued on the callback executor",
	})

	// ActiveWorkers tracks the number of executor workers currently running a task
	ActiveWorkers = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "executor_active_workers",
		Help:      "Current number of executor workers running a callback task",
	})

	// ExecutorPanics counts callback tasks that panicked and were recovered
	ExecutorPanics = factory.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "executor_panics_total",
		Help:      "Total number of callback tasks that panicked on the executor",
	})

	// CallsEnqueued counts tagged enqueues that were accepted
	CallsEnqueued = factory.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "calls_enqueued_total",
		Help:      "Total number of calls dispatched through the wrapper",
	})

	// CallsCompleted counts completed calls by terminal outcome
	CallsCompleted = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "calls_completed_total",
		Help:      "Total number of calls that ran the completion protocol, by outcome",
	}, []string{"outcome"})

	// InflightCalls tracks calls currently held by the call registry
	InflightCalls = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "registry_inflight_calls",
		Help:      "Current number of calls registered under a tag",
	})

	// EngineInflight tracks delegate HTTP requests currently on the wire
	EngineInflight = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "engine_inflight_requests",
		Help:      "Current number of upstream HTTP requests in flight",
	})
)

// Collectors returns every collector in this package
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		QueueDepth,
		ActiveWorkers,
		ExecutorPanics,
		CallsEnqueued,
		CallsCompleted,
		InflightCalls,
		EngineInflight,
	}
}

// Register adds every collector to reg. Collectors already registered with
// reg are skipped, so calling Register twice on the same registry is harmless.
func Register(reg prometheus.Registerer) error {
	for _, c := range Collectors() {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return err
		}
	}
	return nil
}
