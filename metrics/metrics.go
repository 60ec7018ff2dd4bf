package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// httpRequestDuration tracks request latency.
	// Labels:
	// - method: HTTP method
	// - route:  gin route pattern, e.g. "/api/reservations/:id"
	// - status: response status code
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tablebook",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// schedulerTicks counts reminder scheduler ticks.
	// Labels:
	// - outcome: "run", "skipped_overlap", "skipped_disabled", "failed"
	schedulerTicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tablebook",
			Subsystem: "scheduler",
			Name:      "ticks_total",
			Help:      "Reminder scheduler ticks by outcome",
		},
		[]string{"outcome"},
	)

	schedulerTickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tablebook",
			Subsystem: "scheduler",
			Name:      "tick_duration_seconds",
			Help:      "Duration of reminder scheduler ticks that did work",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30, 60},
		},
	)

	// remindersTotal counts reminder send attempts.
	// Labels:
	// - type:   reminder type, e.g. "meal_reminder"
	// - result: "sent", "failed" or "log_failed"
	remindersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tablebook",
			Subsystem: "reminders",
			Name:      "total",
			Help:      "Reminder send attempts by result",
		},
		[]string{"type", "result"},
	)

	// emailsTotal counts outgoing transactional emails.
	// Labels:
	// - result: "sent", "not_configured", "send_failed"
	emailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tablebook",
			Subsystem: "email",
			Name:      "total",
			Help:      "Transactional emails by result",
		},
		[]string{"result"},
	)

	reservationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tablebook",
			Subsystem: "reservations",
			Name:      "created_total",
			Help:      "Reservation create attempts by result",
		},
		[]string{"result"},
	)
)

func ObserveHTTPRequest(method, route, status string, d time.Duration) {
	httpRequestDuration.WithLabelValues(method, route, status).Observe(d.Seconds())
}

func IncSchedulerTick(outcome string) {
	schedulerTicks.WithLabelValues(outcome).Inc()
}

func ObserveTickDuration(d time.Duration) {
	schedulerTickDuration.Observe(d.Seconds())
}

func IncReminder(reminderType, result string) {
	remindersTotal.WithLabelValues(reminderType, result).Inc()
}

func IncEmail(result string) {
	emailsTotal.WithLabelValues(result).Inc()
}

// IncReservationCreated records a create attempt: "created",
// "rolled_back" or "invalid".
func IncReservationCreated(result string) {
	reservationsCreated.WithLabelValues(result).Inc()
}
