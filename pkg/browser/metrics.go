package browser

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricPageFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pagewatch",
		Name:      "page_fetches_total",
		Help:      "Page observations, by engine and result.",
	}, []string{"engine", "result"})
	metricFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "pagewatch",
		Name:      "page_fetch_duration_seconds",
		Help:      "Duration of one observation cycle.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	}, []string{"engine"})
	metricEngineRestarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pagewatch",
		Name:      "engine_restarts_total",
		Help:      "Engine restarts triggered by the failure threshold.",
	}, []string{"engine"})
)

func recordFetch(engine string, err error, found bool, elapsed time.Duration) {
	result := "found"
	switch {
	case err != nil:
		result = "error"
	case !found:
		result = "missing"
	}
	metricPageFetches.WithLabelValues(engine, result).Inc()
	metricFetchDuration.WithLabelValues(engine).Observe(elapsed.Seconds())
}

func recordRestart(engine string) {
	metricEngineRestarts.WithLabelValues(engine).Inc()
}
