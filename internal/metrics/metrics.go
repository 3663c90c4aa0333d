// Package metrics holds the Prometheus collectors exported by rpctail.
// All recorders are nil-safe so components can run without metrics.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rpctail"

var histogramBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}

// Event results.
const (
	ResultAccepted      = "accepted"
	ResultDroppedPaused = "dropped_paused"
	ResultMalformed     = "malformed"
)

// Engine tracks the tail engine.
type Engine struct {
	events       *prometheus.CounterVec
	snapshots    prometheus.Counter
	reconnects   prometheus.Counter
	connection   prometheus.Gauge
	throughput   prometheus.Gauge
	windowSize   prometheus.Gauge
	pullFailures *prometheus.CounterVec
}

// NewEngine creates the engine collectors and registers them on reg. A nil
// reg leaves them unregistered. Collectors already registered by an earlier
// engine are reused.
func NewEngine(reg prometheus.Registerer) *Engine {
	e := &Engine{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "events_total",
			Help:      "Push-channel events by result",
		}, []string{"result"}),
		snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "snapshots_total",
			Help:      "Snapshots that replaced the window",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "reconnects_scheduled_total",
			Help:      "Reconnect attempts scheduled after a close",
		}),
		connection: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "connection_state",
			Help:      "Push channel state: 0 connecting, 1 open, 2 closed",
		}),
		throughput: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "throughput_events_per_second",
			Help:      "Last sampled ingestion rate",
		}),
		windowSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "window_size",
			Help:      "Events currently held in the window",
		}),
		pullFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "pull_failures_total",
			Help:      "Failed collaborator pulls by source",
		}, []string{"source"}),
	}
	if reg != nil {
		e.events = register(reg, e.events)
		e.snapshots = register(reg, e.snapshots)
		e.reconnects = register(reg, e.reconnects)
		e.connection = register(reg, e.connection)
		e.throughput = register(reg, e.throughput)
		e.windowSize = register(reg, e.windowSize)
		e.pullFailures = register(reg, e.pullFailures)
	}
	return e
}

// Event counts one push-channel event with the given result.
func (e *Engine) Event(result string) {
	if e == nil {
		return
	}
	e.events.WithLabelValues(result).Inc()
}

func (e *Engine) Snapshot() {
	if e == nil {
		return
	}
	e.snapshots.Inc()
}

func (e *Engine) ReconnectScheduled() {
	if e == nil {
		return
	}
	e.reconnects.Inc()
}

// ConnectionState records the numeric connection state.
func (e *Engine) ConnectionState(v int) {
	if e == nil {
		return
	}
	e.connection.Set(float64(v))
}

func (e *Engine) Throughput(rate int) {
	if e == nil {
		return
	}
	e.throughput.Set(float64(rate))
}

func (e *Engine) WindowSize(n int) {
	if e == nil {
		return
	}
	e.windowSize.Set(float64(n))
}

func (e *Engine) PullFailure(source string) {
	if e == nil {
		return
	}
	e.pullFailures.WithLabelValues(source).Inc()
}

// register registers c, returning the existing collector on conflict.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}
