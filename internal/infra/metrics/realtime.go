package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		activeSubscriptions,
		intradayPollsTotal,
		staleResultsDropped,
	)
}

var (
	activeSubscriptions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "gateway_realtime_active_subscriptions",
			Help: "Realtime subscriptions currently polling (at most one per session).",
		},
	)

	intradayPollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_intraday_polls_total",
			Help: "Intraday fetch attempts by success.",
		},
		[]string{"success"},
	)

	staleResultsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_intraday_stale_results_dropped_total",
			Help: "In-flight fetch results discarded because the subscription was deactivated.",
		},
	)
)

func IncActiveSubscriptions() { activeSubscriptions.Inc() }
func DecActiveSubscriptions() { activeSubscriptions.Dec() }
func IncStaleResultDropped() { staleResultsDropped.Inc() }
func IncIntradayPoll(ok bool) { intradayPollsTotal.WithLabelValues(strconv.FormatBool(ok)).Inc() }
