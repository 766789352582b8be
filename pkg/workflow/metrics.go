package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExecutionsTotal counts workflow executions by result.
	// Labels: workflow, result (success, failure)
	ExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "steward",
			Subsystem: "workflow",
			Name:      "executions_total",
			Help:      "Total number of workflow executions",
		},
		[]string{"workflow", "result"},
	)

	// ExecutionDuration tracks how long workflow executions take.
	// Labels: workflow
	ExecutionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "steward",
			Subsystem: "workflow",
			Name:      "execution_duration_seconds",
			Help:      "Duration of workflow executions in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"workflow"},
	)

	// ActionAttemptsTotal counts action handler invocations by result.
	// Labels: action, result (success, failure)
	ActionAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "steward",
			Subsystem: "workflow",
			Name:      "action_attempts_total",
			Help:      "Total number of action handler attempts",
		},
		[]string{"action", "result"},
	)

	// RollbacksTotal counts rollback passes.
	// Labels: workflow
	RollbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "steward",
			Subsystem: "workflow",
			Name:      "rollbacks_total",
			Help:      "Total number of workflow rollback passes",
		},
		[]string{"workflow"},
	)
)
