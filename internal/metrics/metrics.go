package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	bookingAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webinar_booking_attempts_total",
			Help: "Total number of seat booking attempts by outcome",
		},
		[]string{"outcome"},
	)

	bookingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webinar_booking_duration_seconds",
			Help:    "Seat booking duration in seconds, notification excluded",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"outcome"},
	)

	soldOutHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "webinar_soldout_cache_hits_total",
			Help: "Bookings rejected by the sold-out cache without touching storage",
		},
	)

	notificationsSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "webinar_notifications_sent_total",
			Help: "Organizer notifications handed to the notifier successfully",
		},
	)

	notificationsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webinar_notifications_failed_total",
			Help: "Organizer notifications that failed after the booking committed",
		},
		[]string{"error_type"},
	)

	notifyRetryAttemptsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "webinar_notify_retry_attempts_total",
			Help: "Total number of notification retry attempts",
		},
	)

	outboxPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webinar_outbox_published_total",
			Help: "Outbox publish results",
		},
		[]string{"result"},
	)

	snapshotsAppliedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webinar_snapshots_total",
			Help: "Webinar snapshot deliveries by result",
		},
		[]string{"result"},
	)
)

func RecordBooking(outcome string, d time.Duration) {
	bookingAttemptsTotal.WithLabelValues(outcome).Inc()
	bookingDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func RecordSoldOutHit() {
	soldOutHitsTotal.Inc()
}

func RecordNotificationSent() {
	notificationsSentTotal.Inc()
}

// RecordNotificationFailed: errorType is "temporary", "permanent" or "unknown".
func RecordNotificationFailed(errorType string) {
	notificationsFailedTotal.WithLabelValues(errorType).Inc()
}

func RecordNotifyRetry() {
	notifyRetryAttemptsTotal.Inc()
}

// RecordOutboxPublish: result is "sent", "retry" or "dead".
func RecordOutboxPublish(result string) {
	outboxPublishedTotal.WithLabelValues(result).Inc()
}

// RecordSnapshot: result is "applied", "duplicate", "dropped" or "error".
func RecordSnapshot(result string) {
	snapshotsAppliedTotal.WithLabelValues(result).Inc()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
