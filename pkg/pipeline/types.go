package pipeline

import "time"

// StateTransition is one accepted transition, recorded in the
// machine's append-only history.
type StateTransition struct {
	FromState State          `json:"from_state"`
	ToState   State          `json:"to_state"`
	Event     EventType      `json:"event"`
	Timestamp time.Time      `json:"timestamp"`
	Reason    string         `json:"reason,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// StageStateInfo tracks one named stage across a run. It is created on
// the stage's first update and mutated in place afterwards.
type StageStateInfo struct {
	StageName string     `json:"stage_name"`
	State     StageState `json:"state"`
	StartTime time.Time  `json:"start_time"`

	// EndTime and DurationSeconds are set when the stage reaches a
	// terminal state and cleared when it starts running again.
	EndTime         *time.Time `json:"end_time,omitempty"`
	DurationSeconds *float64   `json:"duration_seconds,omitempty"`

	// RetryCount is incremented every time the stage enters RETRYING.
	RetryCount int `json:"retry_count"`

	// ErrorMessage is lifted from the update metadata's error or
	// error_message keys.
	ErrorMessage string `json:"error_message,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`
}

// StackFrame is one pushed state with the context it was pushed under.
type StackFrame struct {
	State    State          `json:"state"`
	Context  map[string]any `json:"context,omitempty"`
	PushedAt time.Time      `json:"pushed_at"`
}

// HealthStatus summarizes the active issue load.
type HealthStatus string

// Health statuses, derived from the active issue count with the same
// thresholds the machine uses for its health transitions.
const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthCritical HealthStatus = "critical"
)

// Snapshot is a point-in-time projection of one machine, serialized to
// the per-card state file after every mutation.
type Snapshot struct {
	State        State        `json:"state"`
	Timestamp    time.Time    `json:"timestamp"`
	CardID       string       `json:"card_id"`
	ActiveStage  string       `json:"active_stage,omitempty"`
	HealthStatus HealthStatus `json:"health_status"`

	// CircuitBreakersOpen names the stages currently in CIRCUIT_OPEN,
	// sorted.
	CircuitBreakersOpen []string `json:"circuit_breakers_open"`

	// ActiveIssues lists the unresolved issue types, sorted.
	ActiveIssues []string `json:"active_issues"`

	Stages map[string]*StageStateInfo `json:"stages"`
}
