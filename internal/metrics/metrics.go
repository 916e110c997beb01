package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ordersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fxbot_orders_total",
			Help: "Market orders sent to the broker",
		},
		[]string{"instrument", "side", "result"},
	)

	closesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fxbot_closes_total",
			Help: "Close requests split by reason and result",
		},
		[]string{"instrument", "reason", "result"},
	)

	feedErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fxbot_feed_errors_total",
			Help: "Failed price/position/candle/prediction fetches",
		},
		[]string{"kind"},
	)

	connectivityState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fxbot_connectivity_state",
			Help: "1 when the broker is reachable, 0 otherwise",
		},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fxbot_job_duration_seconds",
			Help:    "Duration of scheduled job invocations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"job"},
	)

	jobSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fxbot_job_skipped_total",
			Help: "Job invocations skipped (disconnected, busy)",
		},
		[]string{"job", "reason"},
	)

	jobErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fxbot_job_errors_total",
			Help: "Job invocations that returned an error or panicked",
		},
		[]string{"job"},
	)

	// пик по сделке; серия удаляется при закрытии
	peakPips = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fxbot_peak_pips",
			Help: "Peak profit in pips of an open trade",
		},
		[]string{"trade_id"},
	)

	outcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fxbot_trade_outcomes_total",
			Help: "Closed trades recorded in the journal",
		},
		[]string{"instrument", "result"},
	)
)

func init() {
	prometheus.MustRegister(ordersTotal)
	prometheus.MustRegister(closesTotal)
	prometheus.MustRegister(feedErrorsTotal)
	prometheus.MustRegister(connectivityState)
	prometheus.MustRegister(jobDuration)
	prometheus.MustRegister(jobSkipped)
	prometheus.MustRegister(jobErrors)
	prometheus.MustRegister(peakPips)
	prometheus.MustRegister(outcomesTotal)

	connectivityState.Set(1)
}

// Handler: экспозиция для /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordOrder(instrument, side string, ok bool) {
	ordersTotal.WithLabelValues(instrument, side, result(ok)).Inc()
}

func RecordClose(instrument, reason string, ok bool) {
	closesTotal.WithLabelValues(instrument, reason, result(ok)).Inc()
}

// RecordFeedError: kind = price | positions | candles | prediction | ping.
func RecordFeedError(kind string) {
	feedErrorsTotal.WithLabelValues(kind).Inc()
}

func SetConnected(v bool) {
	if v {
		connectivityState.Set(1)
		return
	}
	connectivityState.Set(0)
}

func ObserveJob(job string, d time.Duration) {
	jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func RecordJobSkipped(job, reason string) {
	jobSkipped.WithLabelValues(job, reason).Inc()
}

func RecordJobError(job string) {
	jobErrors.WithLabelValues(job).Inc()
}

func SetPeak(tradeID string, pips float64) {
	peakPips.WithLabelValues(tradeID).Set(pips)
}

func DeletePeak(tradeID string) {
	peakPips.DeleteLabelValues(tradeID)
}

func RecordOutcome(instrument string, pips float64) {
	r := "loss"
	if pips > 0 {
		r = "win"
	}
	outcomesTotal.WithLabelValues(instrument, r).Inc()
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
