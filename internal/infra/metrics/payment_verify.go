package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		okpayNotificationsTotal,
		okpayVerifyDuration,
		okpayWebhookDuration,
	)
}

var (
	// verdict: verified|invalid|test|unknown|none (verify call failed)
	// result: valid|invalid (structural check)|error
	okpayNotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "okpay_notifications_total",
			Help: "OKPAY webhook notifications by gateway verdict and field validation result.",
		},
		[]string{"verdict", "result"},
	)

	// Latency of the ipn-verify round trip grouped by result (ok|error).
	okpayVerifyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "okpay_verify_duration_seconds",
			Help:    "Duration of the OKPAY notification verify call in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"result"},
	)

	okpayWebhookDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "okpay_webhook_duration_seconds",
			Help:    "Duration of the OKPAY webhook handler in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30},
		},
		[]string{"status"},
	)
)

func IncNotification(verdict, result string) {
	okpayNotificationsTotal.WithLabelValues(norm(verdict), norm(result)).Inc()
}

func ObserveVerify(start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	okpayVerifyDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
}

func ObserveWebhook(status string, start time.Time) {
	okpayWebhookDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
}
