// Package metrics holds the Prometheus collectors of the risk engine.
// Every method is safe to call on a nil *Metrics, which disables recording.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups all collectors
type Metrics struct {
	cacheRequests       *prometheus.CounterVec
	coalesced           *prometheus.CounterVec
	invalidations       *prometheus.CounterVec
	upstreamErrors      *prometheus.CounterVec
	upstreamDuration    *prometheus.HistogramVec
	compositionDegraded prometheus.Counter
	riskAnalyses        *prometheus.CounterVec
	circuitState        prometheus.Gauge
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		cacheRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vaultrisk_cache_requests_total",
				Help: "Cache lookups by tool and result",
			},
			[]string{"tool", "result"},
		),
		coalesced: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vaultrisk_coalesced_requests_total",
				Help: "Requests that joined an in-flight computation instead of starting one",
			},
			[]string{"tool"},
		),
		invalidations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vaultrisk_invalidations_total",
				Help: "Cache keys invalidated by tag",
			},
			[]string{"tag"},
		),
		upstreamErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vaultrisk_upstream_errors_total",
				Help: "Failed upstream data source queries",
			},
			[]string{"operation"},
		),
		upstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vaultrisk_upstream_duration_seconds",
				Help:    "Upstream data source query duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		compositionDegraded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "vaultrisk_composition_degraded_total",
				Help: "Bundle address composition fetches that failed and were skipped",
			},
		),
		riskAnalyses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vaultrisk_risk_analyses_total",
				Help: "Computed risk analyses by resulting level",
			},
			[]string{"level"},
		),
		circuitState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "vaultrisk_circuit_state",
				Help: "Upstream circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
		),
	}

	reg.MustRegister(
		m.cacheRequests,
		m.coalesced,
		m.invalidations,
		m.upstreamErrors,
		m.upstreamDuration,
		m.compositionDegraded,
		m.riskAnalyses,
		m.circuitState,
	)

	return m
}

// CacheHit records a cache hit for tool
func (m *Metrics) CacheHit(tool string) {
	if m == nil {
		return
	}
	m.cacheRequests.WithLabelValues(tool, "hit").Inc()
}

// CacheMiss records a cache miss for tool
func (m *Metrics) CacheMiss(tool string) {
	if m == nil {
		return
	}
	m.cacheRequests.WithLabelValues(tool, "miss").Inc()
}

// Coalesced records a request that shared another caller's computation
func (m *Metrics) Coalesced(tool string) {
	if m == nil {
		return
	}
	m.coalesced.WithLabelValues(tool).Inc()
}

// Invalidated records n keys removed under tag
func (m *Metrics) Invalidated(tag string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.invalidations.WithLabelValues(tag).Add(float64(n))
}

// ObserveUpstream records the duration and outcome of an upstream query
func (m *Metrics) ObserveUpstream(operation string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.upstreamDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
	if err != nil {
		m.upstreamErrors.WithLabelValues(operation).Inc()
	}
}

// CompositionDegraded records a skipped bundle address
func (m *Metrics) CompositionDegraded() {
	if m == nil {
		return
	}
	m.compositionDegraded.Inc()
}

// RiskAnalysis records a computed analysis at level
func (m *Metrics) RiskAnalysis(level string) {
	if m == nil {
		return
	}
	m.riskAnalyses.WithLabelValues(level).Inc()
}

// CircuitState publishes the breaker state
func (m *Metrics) CircuitState(state int) {
	if m == nil {
		return
	}
	m.circuitState.Set(float64(state))
}
