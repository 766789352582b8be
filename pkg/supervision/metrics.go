package supervision

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HeartbeatsTotal counts liveness reports by outcome.
	HeartbeatsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "steward",
			Subsystem: "supervision",
			Name:      "heartbeats_total",
			Help:      "Agent heartbeats sent, by result.",
		},
		[]string{"result"},
	)

	// RegistrationsTotal counts agent registration lifecycle events.
	RegistrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "steward",
			Subsystem: "supervision",
			Name:      "registrations_total",
			Help:      "Agent registration events, by event type.",
		},
		[]string{"event"},
	)
)
