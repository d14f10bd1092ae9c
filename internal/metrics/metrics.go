// Package metrics exposes the runner's opt-in Prometheus instrumentation:
// current status as a gauge, a transition counter vector, and log buffer
// sizes. All constructors are nil-safe — a Registry built with a nil
// registerer (the default when an embedder doesn't opt in) records
// nothing and never panics.
//
// Instruments are registered with a caller-supplied registerer (opt-in)
// rather than the global default registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds the runner's metric instruments. The zero value is valid
// and records nothing, matching BoardRunner's default of no embedder-
// supplied registerer.
type Registry struct {
	status      *prometheus.GaugeVec
	transitions *prometheus.CounterVec
	buildLog    prometheus.Gauge
	runtimeLog  prometheus.Gauge
}

// New builds a Registry and registers its instruments with reg. Passing a
// nil registerer yields a Registry whose methods are all no-ops.
func New(reg prometheus.Registerer) *Registry {
	if reg == nil {
		return &Registry{}
	}

	r := &Registry{
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "smce",
			Subsystem: "runner",
			Name:      "status",
			Help:      "Current RunnerStatus, one gauge per instance labelled by status name set to 1.",
		}, []string{"status"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smce",
			Subsystem: "runner",
			Name:      "transitions_total",
			Help:      "Count of successful state transitions by operation.",
		}, []string{"op", "to"}),
		buildLog: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "smce",
			Subsystem: "runner",
			Name:      "build_log_bytes",
			Help:      "Current size of the accumulated build log.",
		}),
		runtimeLog: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "smce",
			Subsystem: "runner",
			Name:      "runtime_log_bytes",
			Help:      "Current size of the accumulated child runtime log.",
		}),
	}

	reg.MustRegister(r.status, r.transitions, r.buildLog, r.runtimeLog)
	return r
}

// SetStatus records the current status, clearing any previously set label.
func (r *Registry) SetStatus(name string, all []string) {
	if r == nil || r.status == nil {
		return
	}
	for _, s := range all {
		r.status.WithLabelValues(s).Set(0)
	}
	r.status.WithLabelValues(name).Set(1)
}

// ObserveTransition increments the transition counter for op -> to.
func (r *Registry) ObserveTransition(op, to string) {
	if r == nil || r.transitions == nil {
		return
	}
	r.transitions.WithLabelValues(op, to).Inc()
}

// SetBuildLogBytes records the current build log size.
func (r *Registry) SetBuildLogBytes(n int) {
	if r == nil || r.buildLog == nil {
		return
	}
	r.buildLog.Set(float64(n))
}

// SetRuntimeLogBytes records the current runtime log size.
func (r *Registry) SetRuntimeLogBytes(n int) {
	if r == nil || r.runtimeLog == nil {
		return
	}
	r.runtimeLog.Set(float64(n))
}
