package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(cacheOps)
}

var cacheOps = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "gateway_cache_ops_total",
		Help: "Cache operations by cache name and result (hit/miss/error).",
	},
	[]string{"cache", "result"},
)

func CacheHit(name string) { cacheOps.WithLabelValues(norm(name), "hit").Inc() }
func CacheMiss(name string) { cacheOps.WithLabelValues(norm(name), "miss").Inc() }
func CacheError(name string) { cacheOps.WithLabelValues(norm(name), "error").Inc() }
