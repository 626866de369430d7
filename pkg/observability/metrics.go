package observability

import (
	"net/http"
	"time"

	"github.com/aretw0/switchlink/pkg/fsm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects transition and correlation metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry           *prometheus.Registry
	transitions        *prometheus.CounterVec
	transitionErrors   *prometheus.CounterVec
	transitionDuration *prometheus.HistogramVec
	correlations       *prometheus.HistogramVec
}

// NewMetrics registers the collectors on a fresh registry.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.NewRegistry())
}

// NewMetricsWithRegistry registers the collectors on reg.
func NewMetricsWithRegistry(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "switchlink_transitions_total",
				Help: "Completed state machine transitions.",
			},
			[]string{"model", "transition"},
		),
		transitionErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "switchlink_transition_errors_total",
				Help: "State machine transitions whose handler failed or was superseded.",
			},
			[]string{"model", "transition"},
		),
		transitionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "switchlink_transition_duration_seconds",
				Help:    "Time spent in transition handlers.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"model", "transition"},
		),
		correlations: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "switchlink_correlation_seconds",
				Help:    "Time between an outbound call and its notification.",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"step", "outcome"},
		),
	}
	reg.MustRegister(m.transitions, m.transitionErrors, m.transitionDuration, m.correlations)
	return m
}

// ObserveTransition implements fsm.Observer.
func (m *Metrics) ObserveTransition(machine string, lc fsm.Lifecycle, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.transitionErrors.WithLabelValues(machine, lc.Transition).Inc()
		return
	}
	m.transitions.WithLabelValues(machine, lc.Transition).Inc()
	m.transitionDuration.WithLabelValues(machine, lc.Transition).Observe(elapsed.Seconds())
}

// ObserveCorrelation implements correlation.Observer.
func (m *Metrics) ObserveCorrelation(step, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.correlations.WithLabelValues(step, outcome).Observe(elapsed.Seconds())
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
