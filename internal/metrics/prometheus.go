package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// promMetrics mirrors the counter store into the Prometheus registry
// for scraping via /metrics.
type promMetrics struct {
	probesTotal      *prometheus.CounterVec
	probeDuration    *prometheus.HistogramVec
	cacheHitsTotal   *prometheus.CounterVec
	selectionsTotal  *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	upstreamHealthy  *prometheus.GaugeVec
}

func newPromMetrics(registerer prometheus.Registerer) *promMetrics {
	factory := promauto.With(registerer)

	return &promMetrics{
		probesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "selector_probes_total",
			Help: "Probes completed, by upstream and resulting status.",
		}, []string{"upstream", "status"}),

		probeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "selector_probe_duration_seconds",
			Help:    "Probe round-trip time.",
			Buckets: prometheus.DefBuckets,
		}, []string{"upstream"}),

		cacheHitsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "selector_cache_hits_total",
			Help: "Reads served from the health cache instead of probing.",
		}, []string{"upstream"}),

		selectionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "selector_selections_total",
			Help: "Times an upstream was chosen as best.",
		}, []string{"upstream"}),

		transitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "selector_health_transitions_total",
			Help: "Health status changes, by upstream and new status.",
		}, []string{"upstream", "status"}),

		upstreamHealthy: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "selector_upstream_healthy",
			Help: "1 when the most recent probe classified the upstream healthy.",
		}, []string{"upstream"}),
	}
}
