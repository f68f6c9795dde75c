package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AttendanceMarked counts attendance rows written, by status.
	AttendanceMarked = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Name:      "attendance_marked_total",
		Help:      "Attendance rows committed by bulk marking.",
	}, []string{"status"})

	HoursAwarded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ledger",
		Name:      "hours_awarded_total",
		Help:      "Hours added to volunteer totals by bulk marking.",
	})

	HoursModified = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ledger",
		Name:      "hours_modified_total",
		Help:      "Committed hours corrections.",
	})

	// Failures counts rejected or rolled back ledger operations.
	Failures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ledger",
		Name:      "failures_total",
		Help:      "Ledger operations that did not commit.",
	}, []string{"operation", "reason"})

	ReconcileDrift = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ledger",
		Name:      "reconcile_drift_volunteers",
		Help:      "Volunteers whose stored totals differ from their attendance rows at the last reconcile.",
	})

	QueuePublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ledger",
		Name:      "queue_publish_failures_total",
		Help:      "Ledger notifications that could not be published.",
	})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
