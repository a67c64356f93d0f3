// Package metrics exposes coordinator activity as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yaklabco/kiln/pkg/events"
)

const namespace = "kiln"

var stateValues = map[string]float64{ //nolint:gochecknoglobals // read-only lookup
	"no_process":  0,
	"running":     1,
	"terminating": 2,
}

// Recorder owns a private registry fed from the event bus.
type Recorder struct {
	registry *prometheus.Registry

	builds          *prometheus.CounterVec
	buildDuration   *prometheus.HistogramVec
	launches        prometheus.Counter
	launchFailures  prometheus.Counter
	terminations    *prometheus.CounterVec
	exits           *prometheus.CounterVec
	resourceSettles prometheus.Counter
	state           prometheus.Gauge

	unsubscribe []func()
}

// New registers the kiln metrics on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		builds: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "builds_total",
			Help:      "Completed builds by target and result",
		}, []string{"target", "result"}),
		buildDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Build wall time by target",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"target"}),
		launches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "launches_total",
			Help:      "Application launches",
		}),
		launchFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "launch_failures_total",
			Help:      "Application launches that failed to spawn",
		}),
		terminations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "terminations_total",
			Help:      "Terminations requested by kiln, by reason",
		}, []string{"reason"}),
		exits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exits_total",
			Help:      "Application exits by reason",
		}, []string{"reason"}),
		resourceSettles: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resource_settles_total",
			Help:      "Settled resource change windows",
		}),
		state: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "coordinator_state",
			Help:      "Coordinator state (0=no_process, 1=running, 2=terminating)",
		}),
	}
}

// Registry returns the private registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Subscribe feeds the recorder from bus until Close.
func (r *Recorder) Subscribe(bus *events.Bus) {
	r.unsubscribe = append(r.unsubscribe,
		bus.Subscribe(r.onBuildCompleted),
		bus.Subscribe(func(events.ResourcesSettledEvent) { r.resourceSettles.Inc() }),
		bus.Subscribe(func(events.ProcessLaunchedEvent) { r.launches.Inc() }),
		bus.Subscribe(func(events.LaunchFailedEvent) { r.launchFailures.Inc() }),
		bus.Subscribe(func(e events.TerminationRequestedEvent) { r.terminations.WithLabelValues(e.Reason).Inc() }),
		bus.Subscribe(func(e events.ProcessExitedEvent) { r.exits.WithLabelValues(e.Reason).Inc() }),
		bus.Subscribe(r.onStateChanged),
	)
}

// Close stops consuming events.
func (r *Recorder) Close() {
	for _, unsub := range r.unsubscribe {
		unsub()
	}
	r.unsubscribe = nil
}

func (r *Recorder) onBuildCompleted(e events.BuildCompletedEvent) {
	result := "success"
	if !e.Success {
		result = "failure"
	}
	r.builds.WithLabelValues(e.Target, result).Inc()
	r.buildDuration.WithLabelValues(e.Target).Observe(e.Duration.Seconds())
}

func (r *Recorder) onStateChanged(e events.StateChangedEvent) {
	if v, ok := stateValues[e.To]; ok {
		r.state.Set(v)
	}
}
