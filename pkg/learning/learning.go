package learning

import "errors"

var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidSolution indicates a solution that cannot be stored.
	ErrInvalidSolution = errors.New("invalid solution")

	// ErrUnknownStrategy indicates a strategy with no registered
	// handler.
	ErrUnknownStrategy = errors.New("unknown learning strategy")

	// ErrManualIntervention is returned by generated workflow actions
	// whose step no handler could resolve. It fails the workflow so
	// the orchestrator escalates to a human.
	ErrManualIntervention = errors.New("manual intervention required")
)

// Severity classifies how badly an unexpected state deviates from the
// expected ones.
type Severity string

// Severities, lowest to highest.
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Strategy selects how the dispatcher learns a solution.
type Strategy string

// Learning strategies.
const (
	// StrategyLLMConsultation asks the configured LLM for a recovery
	// plan.
	StrategyLLMConsultation Strategy = "LLM_CONSULTATION"

	// StrategySimilarCaseAdaptation adapts the closest previously
	// learned solution, falling back to LLM consultation when none
	// exists.
	StrategySimilarCaseAdaptation Strategy = "SIMILAR_CASE_ADAPTATION"

	// StrategyHumanInLoop produces no solution; it signals the
	// orchestrator to pause for a human.
	StrategyHumanInLoop Strategy = "HUMAN_IN_LOOP"

	// StrategyExperimentalTrial synthesizes a conservative diagnostic
	// workflow without consulting anything.
	StrategyExperimentalTrial Strategy = "EXPERIMENTAL_TRIAL"
)

func (s Strategy) String() string { return string(s) }
