// Package metrics holds the Prometheus collectors shared by the cube packages. They register with
// the default registry, which the API server exposes under /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cube_cache_lookups_total",
		Help: "Cache lookups by cache and result (hit or miss)",
	}, []string{"cache", "result"})

	cacheEvictions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cube_cache_evictions_total",
		Help: "Entries evicted from a bounded cache",
	}, []string{"cache"})

	fetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cube_backend_fetches_total",
		Help: "Requests sent to the aggregation backend by kind and outcome",
	}, []string{"kind", "outcome"})

	staleResponses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cube_stale_responses_total",
		Help: "Aggregation responses discarded because a newer selection superseded them",
	})

	historyPushes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cube_history_pushes_total",
		Help: "Selection states pushed to the history channel",
	})
)

func CacheHit(cache string) {
	cacheLookups.WithLabelValues(cache, "hit").Inc()
}

func CacheMiss(cache string) {
	cacheLookups.WithLabelValues(cache, "miss").Inc()
}

func CacheEvicted(cache string, count int) {
	cacheEvictions.WithLabelValues(cache).Add(float64(count))
}

// Fetched records one backend request of the given kind ("info", "drill", "dice", "export",
// "search").
func Fetched(kind string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	fetches.WithLabelValues(kind, outcome).Inc()
}

func StaleResponse() {
	staleResponses.Inc()
}

func HistoryPushed() {
	historyPushes.Inc()
}
