package pipeline

// State is the primary pipeline state.
type State string

// Pipeline states. COMPLETED and ABORTED are terminal: the transition
// table gives them no outgoing edges.
const (
	StateIdle           State = "IDLE"
	StateInitializing   State = "INITIALIZING"
	StateRunning        State = "RUNNING"
	StateStageRunning   State = "STAGE_RUNNING"
	StateStageCompleted State = "STAGE_COMPLETED"
	StateStageFailed    State = "STAGE_FAILED"
	StateStageRetrying  State = "STAGE_RETRYING"
	StateStageSkipped   State = "STAGE_SKIPPED"
	StateRecovering     State = "RECOVERING"
	StateDegraded       State = "DEGRADED"
	StateCritical       State = "CRITICAL"
	StateHealthy        State = "HEALTHY"
	StateDegradedHealth State = "DEGRADED_HEALTH"
	StatePaused         State = "PAUSED"
	StateRollingBack    State = "ROLLING_BACK"
	StateFailed         State = "FAILED"
	StateCompleted      State = "COMPLETED"
	StateAborted        State = "ABORTED"
)

var allStates = []State{
	StateIdle, StateInitializing, StateRunning,
	StateStageRunning, StateStageCompleted, StateStageFailed,
	StateStageRetrying, StateStageSkipped,
	StateRecovering, StateDegraded, StateCritical,
	StateHealthy, StateDegradedHealth,
	StatePaused, StateRollingBack,
	StateFailed, StateCompleted, StateAborted,
}

var stateSet = func() map[State]struct{} {
	set := make(map[State]struct{}, len(allStates))
	for _, s := range allStates {
		set[s] = struct{}{}
	}
	return set
}()

// AllStates returns every pipeline state, in declaration order.
func AllStates() []State {
	out := make([]State, len(allStates))
	copy(out, allStates)
	return out
}

// Valid reports whether s is a known pipeline state.
func (s State) Valid() bool {
	_, ok := stateSet[s]
	return ok
}

// IsTerminal reports whether the state has no outgoing transitions.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateAborted
}

func (s State) String() string { return string(s) }

// StageState is the state of one named stage inside a run.
type StageState string

// Stage states.
const (
	StagePending     StageState = "PENDING"
	StageRunning     StageState = "RUNNING"
	StageCompleted   StageState = "COMPLETED"
	StageFailed      StageState = "FAILED"
	StageRetrying    StageState = "RETRYING"
	StageSkipped     StageState = "SKIPPED"
	StageCircuitOpen StageState = "CIRCUIT_OPEN"
)

// Terminal reports whether the stage has finished for this run.
func (s StageState) Terminal() bool {
	return s == StageCompleted || s == StageFailed || s == StageSkipped
}

func (s StageState) String() string { return string(s) }

// EventType labels the cause of a transition in the audit history.
type EventType string

// Transition events.
const (
	EventPipelineStarted   EventType = "PIPELINE_STARTED"
	EventStageStarted      EventType = "STAGE_STARTED"
	EventStageCompleted    EventType = "STAGE_COMPLETED"
	EventStageFailed       EventType = "STAGE_FAILED"
	EventHealthDegraded    EventType = "HEALTH_DEGRADED"
	EventHealthCritical    EventType = "HEALTH_CRITICAL"
	EventHealthRestored    EventType = "HEALTH_RESTORED"
	EventRecoveryStarted   EventType = "RECOVERY_STARTED"
	EventRecoverySuccess   EventType = "RECOVERY_SUCCESS"
	EventRecoveryFail      EventType = "RECOVERY_FAIL"
	EventRollbackStarted   EventType = "ROLLBACK_STARTED"
	EventRollbackComplete  EventType = "ROLLBACK_COMPLETE"
	EventPipelinePaused    EventType = "PIPELINE_PAUSED"
	EventPipelineResumed   EventType = "PIPELINE_RESUMED"
	EventPipelineCompleted EventType = "PIPELINE_COMPLETED"
	EventPipelineAborted   EventType = "PIPELINE_ABORTED"
	EventManualOverride    EventType = "MANUAL_OVERRIDE"
)

// IssueType classifies a detected pipeline issue.
type IssueType string

// Issue types.
const (
	IssueBuildFailure      IssueType = "BUILD_FAILURE"
	IssueTestFailure       IssueType = "TEST_FAILURE"
	IssueLintFailure       IssueType = "LINT_FAILURE"
	IssueReviewRejected    IssueType = "REVIEW_REJECTED"
	IssueDependencyError   IssueType = "DEPENDENCY_ERROR"
	IssueTimeout           IssueType = "TIMEOUT"
	IssueResourceExhausted IssueType = "RESOURCE_EXHAUSTED"
	IssueLLMError          IssueType = "LLM_ERROR"
	IssueIntegrationError  IssueType = "INTEGRATION_ERROR"
	IssueUnknown           IssueType = "UNKNOWN"
)

func (i IssueType) String() string { return string(i) }
