package authz

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's Prometheus metrics.
type Metrics struct {
	DecisionsTotal          *prometheus.CounterVec
	VisibilityComputeTotal  *prometheus.CounterVec
	CacheHitsTotal          *prometheus.CounterVec
	CacheMissesTotal        *prometheus.CounterVec
	InvalidationsTotal      *prometheus.CounterVec
	InvalidationErrorsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers the engine metrics against the registry.
// A nil registry registers against the default registerer.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hearth_authz_decisions_total",
				Help: "Total page view decisions by result and granting step",
			},
			[]string{"result", "reason"},
		),
		VisibilityComputeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hearth_authz_visibility_computes_total",
				Help: "Total visibility set computations by kind",
			},
			[]string{"kind"},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hearth_authz_cache_hits_total",
				Help: "Total visibility cache hits by kind",
			},
			[]string{"kind"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hearth_authz_cache_misses_total",
				Help: "Total visibility cache misses by kind",
			},
			[]string{"kind"},
		),
		InvalidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hearth_authz_invalidations_total",
				Help: "Total invalidation events routed by event type",
			},
			[]string{"event"},
		),
		InvalidationErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hearth_authz_invalidation_errors_total",
				Help: "Total invalidation events that failed to apply",
			},
			[]string{"event"},
		),
	}

	registry.MustRegister(
		m.DecisionsTotal,
		m.VisibilityComputeTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.InvalidationsTotal,
		m.InvalidationErrorsTotal,
	)

	return m
}

// The record helpers are nil-safe so instrumented code does not have to
// guard every call site.

func (m *Metrics) recordDecision(allowed bool, reason string) {
	if m == nil {
		return
	}
	result := "deny"
	if allowed {
		result = "grant"
	}
	m.DecisionsTotal.WithLabelValues(result, reason).Inc()
}

func (m *Metrics) recordCompute(kind VisibilityKind) {
	if m == nil {
		return
	}
	m.VisibilityComputeTotal.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) recordCacheHit(kind VisibilityKind) {
	if m == nil {
		return
	}
	m.CacheHitsTotal.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) recordCacheMiss(kind VisibilityKind) {
	if m == nil {
		return
	}
	m.CacheMissesTotal.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) recordInvalidation(event string) {
	if m == nil {
		return
	}
	m.InvalidationsTotal.WithLabelValues(event).Inc()
}

func (m *Metrics) recordInvalidationError(event string) {
	if m == nil {
		return
	}
	m.InvalidationErrorsTotal.WithLabelValues(event).Inc()
}
