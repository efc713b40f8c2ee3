package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CheckoutSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "festival_checkout_sessions_total",
		Help: "Checkout attempts by intent type and result.",
	}, []string{"intent_type", "result"})

	Settlements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "festival_settlements_total",
		Help: "Processed payment notifications by intent type and outcome.",
	}, []string{"intent_type", "outcome"})

	WebhookRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "festival_webhook_rejections_total",
		Help: "Payment notifications that were not acknowledged.",
	}, []string{"reason"})

	ExpiredIntents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "festival_expired_intents_total",
		Help: "Abandoned checkouts expired by the sweep job.",
	})

	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "festival_notifications_total",
		Help: "Outgoing notifications by channel and status.",
	}, []string{"channel", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "festival_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status class.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Handler отдает метрики в формате Prometheus
func Handler() http.Handler {
	return promhttp.Handler()
}
