package opt

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "loom"
	subsystem = "opt"
)

// Metrics counts rule activity across optimizer runs. A nil *Metrics is
// valid and disables collection.
type Metrics struct {
	matches  *prometheus.CounterVec
	rewrites *prometheus.CounterVec
	passes   *prometheus.CounterVec
}

// NewMetrics creates unregistered collectors; register them with a registry
// via PrometheusCollectors.
func NewMetrics() *Metrics {
	return &Metrics{
		matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rule_matches_total",
			Help:      "Number of successful pattern matches per rule.",
		}, []string{"rule"}),
		rewrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rule_rewrites_total",
			Help:      "Number of node substitutions performed per rule.",
		}, []string{"rule"}),
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "passes_total",
			Help:      "Number of optimizer runs per strategy.",
		}, []string{"strategy"}),
	}
}

// PrometheusCollectors returns all collectors for registration.
func (m *Metrics) PrometheusCollectors() []prometheus.Collector {
	return []prometheus.Collector{m.matches, m.rewrites, m.passes}
}

func (m *Metrics) match(rule string) {
	if m == nil {
		return
	}
	m.matches.WithLabelValues(rule).Inc()
}

func (m *Metrics) rewrite(rule string) {
	if m == nil {
		return
	}
	m.rewrites.WithLabelValues(rule).Inc()
}

func (m *Metrics) pass(strategy string) {
	if m == nil {
		return
	}
	m.passes.WithLabelValues(strategy).Inc()
}
