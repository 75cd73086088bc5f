package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	verificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guildgate_verifications_total",
			Help: "Verification attempts by outcome",
		},
		[]string{"outcome"},
	)
	feedNotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guildgate_feed_notifications_total",
			Help: "Feed notifications by result",
		},
		[]string{"result"},
	)
	feedSeenEvents = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "guildgate_feed_seen_events",
			Help: "Event ids currently held in the dedup window",
		},
	)
)

func init() {
	prometheus.MustRegister(verificationsTotal, feedNotificationsTotal, feedSeenEvents)
}

// ObserveVerification counts one verification attempt.
func ObserveVerification(outcome string) {
	verificationsTotal.WithLabelValues(outcome).Inc()
}

// ObserveNotification counts one feed notification ("sent" or "failed").
func ObserveNotification(result string) {
	feedNotificationsTotal.WithLabelValues(result).Inc()
}

// SetSeenEvents records the dedup window size.
func SetSeenEvents(n int) {
	feedSeenEvents.Set(float64(n))
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
