package notifier

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics used in monitoring service.
var (
	sessionsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Help:      "Number of active event sessions",
			Name:      "sessions",
			Subsystem: "notifier",
			Namespace: "eventbridge",
		},
	)
	waitsParked = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of suspended wait requests",
			Name:      "waits_parked_total",
			Subsystem: "notifier",
			Namespace: "eventbridge",
		},
	)
	eventsEnqueued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of events queued for delivery",
			Name:      "events_enqueued_total",
			Subsystem: "notifier",
			Namespace: "eventbridge",
		},
	)
	eventsDroppedOnRollback = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of events dropped because of storage transaction rollback",
			Name:      "events_rolled_back_total",
			Subsystem: "notifier",
			Namespace: "eventbridge",
		},
	)
	flushes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of waits completed with queued events",
			Name:      "flushes_total",
			Subsystem: "notifier",
			Namespace: "eventbridge",
		},
	)
	sessionsReaped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of sessions deactivated for being idle",
			Name:      "sessions_reaped_total",
			Subsystem: "notifier",
			Namespace: "eventbridge",
		},
	)
)

func init() {
	prometheus.MustRegister(
		sessionsGauge,
		waitsParked,
		eventsEnqueued,
		eventsDroppedOnRollback,
		flushes,
		sessionsReaped,
	)
}
