package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		queriesTotal,
		queryLatencyMs,
		queriesRejectedBusy,
	)
}

var (
	queriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_queries_total",
			Help: "Primary queries by route (agent/projection) and success.",
		},
		[]string{"route", "success"},
	)

	queryLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_query_latency_ms",
			Help:    "Primary query latency distribution in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000, 10000},
		},
		[]string{"route"},
	)

	queriesRejectedBusy = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_queries_rejected_busy_total",
			Help: "Submits rejected because a query was already in flight.",
		},
	)
)

func ObserveQuery(route string, latencyMs int, success bool) {
	queriesTotal.WithLabelValues(norm(route), strconv.FormatBool(success)).Inc()
	queryLatencyMs.WithLabelValues(norm(route)).Observe(float64(latencyMs))
}

func IncQueryRejectedBusy() {
	queriesRejectedBusy.Inc()
}
