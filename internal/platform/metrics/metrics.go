package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	ApplicationsSubmitted prometheus.Counter
	NotificationsSent     *prometheus.CounterVec
	NotificationsFailed   *prometheus.CounterVec
	BirthdayScansRun      prometheus.Counter
	BirthdayAlertsSent    prometheus.Counter
	ReferencesCompleted   prometheus.Counter
	RequestLatency        *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		ApplicationsSubmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "minderdesk_applications_submitted_total",
			Help: "Total number of childminder applications submitted",
		}),
		NotificationsSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "minderdesk_notifications_sent_total",
			Help: "Total notification emails sent, by template",
		}, []string{"template"}),
		NotificationsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "minderdesk_notifications_failed_total",
			Help: "Total notification emails that failed to send, by template",
		}, []string{"template"}),
		BirthdayScansRun: promauto.NewCounter(prometheus.CounterOpts{
			Name: "minderdesk_birthday_scans_total",
			Help: "Total 16th-birthday scan runs",
		}),
		BirthdayAlertsSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "minderdesk_birthday_alerts_sent_total",
			Help: "Total 16th-birthday alerts dispatched",
		}),
		ReferencesCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "minderdesk_references_completed_total",
			Help: "Total reference requests completed by referees",
		}),
		RequestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "minderdesk_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}
