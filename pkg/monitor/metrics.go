package monitor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pagewatch",
		Name:      "checks_total",
		Help:      "Check cycles run, by outcome.",
	}, []string{"outcome"})
	metricConsecutiveFailures = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pagewatch",
		Name:      "consecutive_failures",
		Help:      "Current consecutive failed checks.",
	})
	metricLastCheck = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "pagewatch",
		Name:      "last_check_timestamp_seconds",
		Help:      "Unix time of the most recent check.",
	})
)

func recordCheck(outcome string) {
	metricChecks.WithLabelValues(outcome).Inc()
}

func recordConsecutiveFailures(n int) {
	metricConsecutiveFailures.Set(float64(n))
}

func recordLastCheck(at time.Time) {
	metricLastCheck.Set(float64(at.Unix()))
}
