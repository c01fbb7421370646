// Package metrics provides Prometheus instrumentation for the query service.
//
// Metrics exposed:
//   - attendbench_query_seconds: Histogram of attendance query latency by source
//   - attendbench_cache_lookups_total: Counter of cache lookups by result (hit, miss)
//   - attendbench_errors_total: Counter of errors by component and reason
//
// Server-side latency is reported for diagnostics only; benchmark numbers come
// from the client-side sample log.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the query service.
type Metrics struct {
	QuerySeconds *prometheus.HistogramVec
	CacheLookups *prometheus.CounterVec
	ErrorsTotal  *prometheus.CounterVec
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		QuerySeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name: "attendbench_query_seconds",
			Help: "Time spent answering attendance queries",
			// Sub-millisecond cache hits need finer buckets than the defaults.
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
		}, []string{"source"}),

		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "attendbench_cache_lookups_total",
			Help: "Total number of result cache lookups by result",
		}, []string{"result"}),

		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "attendbench_errors_total",
			Help: "Total number of errors by component and reason",
		}, []string{"component", "reason"}),
	}
}

// RecordQuery records the latency of one answered query.
func (m *Metrics) RecordQuery(source string, seconds float64) {
	m.QuerySeconds.WithLabelValues(source).Observe(seconds)
}

// RecordCacheLookup counts a cache hit or miss.
func (m *Metrics) RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// RecordError increments the error counter.
func (m *Metrics) RecordError(component, reason string) {
	m.ErrorsTotal.WithLabelValues(component, reason).Inc()
}
