package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricNotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pagewatch",
		Name:      "notifications_sent_total",
		Help:      "Notifications delivered, by adapter.",
	}, []string{"adapter"})
	metricNotificationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pagewatch",
		Name:      "notifications_failed_total",
		Help:      "Notification deliveries that failed, by adapter.",
	}, []string{"adapter"})
)

func recordNotifySent(adapter string) {
	metricNotificationsSent.WithLabelValues(adapter).Inc()
}

func recordNotifyError(adapter string) {
	metricNotificationsFailed.WithLabelValues(adapter).Inc()
}
