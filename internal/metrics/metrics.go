// Package metrics exposes Prometheus collectors for the price cache and its upstreams.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHitsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "goldmonitor_cache_hits_total",
		Help: "Total number of price cache hits",
	}, []string{"purpose"}) // purpose: current, historical, range, multi, news, fx

	cacheMissesCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "goldmonitor_cache_misses_total",
		Help: "Total number of price cache misses",
	}, []string{"purpose"})

	upstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "goldmonitor_upstream_request_duration_seconds",
		Help:    "Duration of upstream API requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"upstream", "result"}) // result: success, failure

	degradedCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "goldmonitor_degraded_results_total",
		Help: "Total number of best-effort fallbacks taken",
	}, []string{"reason"}) // reason: fx_fallback, fallback_date, current_price_substitute, zero_price
)

func RecordCacheHit(purpose string) {
	cacheHitsCounter.WithLabelValues(purpose).Inc()
}

func RecordCacheMiss(purpose string) {
	cacheMissesCounter.WithLabelValues(purpose).Inc()
}

// ObserveUpstream records how long an upstream call took and whether it failed.
func ObserveUpstream(upstream string, started time.Time, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	upstreamDuration.WithLabelValues(upstream, result).Observe(time.Since(started).Seconds())
}

func RecordDegraded(reason string) {
	degradedCounter.WithLabelValues(reason).Inc()
}
