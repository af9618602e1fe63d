// Package metrics exposes rollup counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result label values.
const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultNotFound = "not_found"
	ResultRange    = "range"
	ResultCanceled = "canceled"
)

// Metrics holds the process counters. A nil *Metrics is valid and records
// nothing, so components can take it as an optional dependency.
type Metrics struct {
	registry    *prometheus.Registry
	definitions *prometheus.CounterVec
	bucketLists *prometheus.CounterVec
	fillEmits   *prometheus.CounterVec
}

// New creates the counters on an independent registry, so repeated calls
// (tests, multiple servers) never collide.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		definitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rollup_definitions_total",
			Help: "Definitions issued to the engine, by role and result.",
		}, []string{"role", "result"}),
		bucketLists: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bucket_list_total",
			Help: "Bucket list reads, by result.",
		}, []string{"result"}),
		fillEmits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gapfill_emits_total",
			Help: "Gap-fill rows sent to heartbeat streams, by spec.",
		}, []string{"spec"}),
	}
	m.registry.MustRegister(m.definitions, m.bucketLists, m.fillEmits)
	return m
}

// Handler serves the /metrics scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) ObserveDefinition(role, result string) {
	if m == nil {
		return
	}
	m.definitions.WithLabelValues(role, result).Inc()
}

func (m *Metrics) ObserveList(result string) {
	if m == nil {
		return
	}
	m.bucketLists.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveFill(spec string) {
	if m == nil {
		return
	}
	m.fillEmits.WithLabelValues(spec).Inc()
}
