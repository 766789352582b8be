package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransitionsTotal counts accepted state transitions.
	TransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "steward",
			Subsystem: "pipeline",
			Name:      "transitions_total",
			Help:      "Accepted pipeline state transitions.",
		},
		[]string{"from", "to", "event"},
	)

	// InvalidTransitionsTotal counts rejected transition attempts.
	InvalidTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "steward",
			Subsystem: "pipeline",
			Name:      "invalid_transitions_total",
			Help:      "Rejected pipeline transition attempts.",
		},
		[]string{"from", "to"},
	)

	// StageUpdatesTotal counts stage state updates by resulting state.
	StageUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "steward",
			Subsystem: "pipeline",
			Name:      "stage_updates_total",
			Help:      "Stage state updates by resulting stage state.",
		},
		[]string{"state"},
	)

	// IssuesTotal counts issue registrations and resolutions.
	IssuesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "steward",
			Subsystem: "pipeline",
			Name:      "issues_total",
			Help:      "Issue lifecycle events by issue type.",
		},
		[]string{"issue_type", "event"},
	)

	// RollbacksTotal counts stack rollback attempts by result.
	RollbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "steward",
			Subsystem: "pipeline",
			Name:      "rollbacks_total",
			Help:      "Stack rollback attempts by result.",
		},
		[]string{"result"},
	)
)
