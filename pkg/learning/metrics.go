package learning

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StrategyUsageTotal counts LearnSolution calls per strategy.
	StrategyUsageTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "steward",
			Subsystem: "learning",
			Name:      "strategy_usage_total",
			Help:      "LearnSolution invocations by strategy.",
		},
		[]string{"strategy"},
	)

	// SolutionsLearnedTotal counts solutions produced per strategy.
	SolutionsLearnedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "steward",
			Subsystem: "learning",
			Name:      "solutions_learned_total",
			Help:      "Solutions produced by strategy.",
		},
		[]string{"strategy"},
	)

	// ParseFallbacksTotal counts which parse layer produced the steps
	// of an LLM reply.
	ParseFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "steward",
			Subsystem: "learning",
			Name:      "parse_fallbacks_total",
			Help:      "LLM reply parses by the layer that extracted steps.",
		},
		[]string{"layer"},
	)
)
