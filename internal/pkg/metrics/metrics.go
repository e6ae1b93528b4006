package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace for all CallBio metrics
const namespace = "callbio"

// Registry is the Prometheus registry served on /metrics/prometheus
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

var (
	// WebhookDeliveries counts vendor deliveries by event type and outcome
	// (processed, duplicate, failed, rejected, invalid).
	WebhookDeliveries = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Webhook deliveries by event type and result",
		},
		[]string{"event_type", "result"},
	)

	// WebhookDuration records how long a delivery took from verification to response.
	WebhookDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "webhook_processing_duration_seconds",
			Help:      "Webhook processing duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 20},
		},
		[]string{"event_type"},
	)

	// SignatureRejections counts deliveries rejected before processing.
	SignatureRejections = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_signature_rejections_total",
			Help:      "Webhook deliveries rejected by signature verification",
		},
		[]string{"reason"},
	)

	// BioShares counts bio sharing outcomes by status and delivery method.
	BioShares = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bio_shares_total",
			Help:      "Bio sharing outcomes",
		},
		[]string{"status", "method"},
	)

	// ChannelAttempts counts individual notification channel attempts.
	ChannelAttempts = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bio_share_channel_attempts_total",
			Help:      "Notification channel attempts by channel and result",
		},
		[]string{"channel", "result"},
	)
)

// Handler exposes Registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
