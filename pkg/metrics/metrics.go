package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Reminder emails delivered, by reminder type.
	RemindersSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminders_sent_total",
			Help: "Total number of reminder emails sent",
		},
		[]string{"reminder_type"},
	)

	// Reminder rows left locked with last_error set, by reminder type.
	RemindersFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminders_failed_total",
			Help: "Total number of reminder deliveries that failed",
		},
		[]string{"reminder_type"},
	)

	// Rows skipped by the recipient eligibility filter.
	RemindersSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminders_skipped_total",
			Help: "Total number of reminders skipped by the recipient filter",
		},
		[]string{"reminder_type"},
	)

	// Invocations cut short by the hard deadline.
	DispatchDeadlineHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reminder_dispatch_deadline_hits_total",
			Help: "Total number of dispatch runs cut off by the hard deadline",
		},
	)

	// End-to-end dispatch invocation duration (milliseconds).
	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reminder_dispatch_duration_ms",
			Help:    "Reminder dispatch invocation duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
	)

	// Rows returned by the atomic claim, by reminder type.
	ClaimBatchSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reminder_claim_batch_size",
			Help:    "Number of rows claimed per invocation",
			Buckets: prometheus.LinearBuckets(0, 1, 11), // 0..10
		},
		[]string{"reminder_type"},
	)
)
