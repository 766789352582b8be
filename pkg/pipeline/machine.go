package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/steward/pkg/workflow"
)

var machineTracer = otel.Tracer("steward.pipeline")

// Issue count thresholds for the health overlay.
const (
	degradedIssueThreshold = 1
	criticalIssueThreshold = 3
)

// WorkflowGenerator produces a recovery workflow for an issue type
// that has no registered workflow. The learning engine implements it.
type WorkflowGenerator interface {
	GenerateWorkflow(ctx context.Context, issue IssueType, wctx map[string]any) (*workflow.Workflow, error)
}

// Config configures a Machine. CardID is required; everything else is
// optional and degrades gracefully when absent.
type Config struct {
	// CardID identifies the pipeline run. It doubles as the snapshot
	// file name, so it must be a safe identifier.
	CardID string `koanf:"card_id"`

	// InitialState is the state the machine starts in. Defaults to
	// IDLE.
	InitialState State `koanf:"initial_state"`

	// StateDir enables snapshot persistence when non-empty. One JSON
	// file per card is written there after every mutation.
	StateDir string `koanf:"state_dir"`

	// Engine runs recovery workflows. ExecuteWorkflow fails fast when
	// it is nil.
	Engine *workflow.Engine

	// Workflows maps issue types to registered workflows.
	Workflows *workflow.Registry

	// Generator is consulted for issue types with no registered
	// workflow.
	Generator WorkflowGenerator
}

func (c *Config) applyDefaults() {
	if c.InitialState == "" {
		c.InitialState = StateIdle
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := ValidateCardID(c.CardID); err != nil {
		return err
	}
	if !c.InitialState.Valid() {
		return fmt.Errorf("invalid initial state %q", c.InitialState)
	}
	return nil
}

// Machine tracks one pipeline run. All methods are safe for concurrent
// use; writes are expected from a single owner, but snapshot reads may
// come from other goroutines.
type Machine struct {
	config Config
	logger *zap.Logger

	mu          sync.Mutex
	table       *TransitionTable
	fsm         *fsm.FSM
	stack       StateStack
	history     []StateTransition
	stages      map[string]*StageStateInfo
	activeStage string

	activeIssues   map[IssueType]map[string]any
	resolvedIssues []IssueType

	store *SnapshotStore
}

// NewMachine creates a machine for one card. When cfg.StateDir is set,
// the state directory is created and every mutation persists a
// snapshot there.
func NewMachine(cfg Config, logger *zap.Logger) (*Machine, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Machine{
		config:       cfg,
		logger:       logger.With(zap.String("card_id", cfg.CardID)),
		table:        NewTransitionTable(),
		stages:       make(map[string]*StageStateInfo),
		activeIssues: make(map[IssueType]map[string]any),
	}
	m.fsm = m.table.newFSM(cfg.InitialState)

	if cfg.StateDir != "" {
		store, err := NewSnapshotStore(cfg.StateDir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize snapshot store: %w", err)
		}
		m.store = store
	}

	return m, nil
}

// CardID returns the card this machine tracks.
func (m *Machine) CardID() string {
	return m.config.CardID
}

// Transition attempts to move the machine to a new state. It returns
// false, mutating nothing, when the edge is not in the transition
// table. Self-transitions record the event without moving.
func (m *Machine) Transition(to State, event EventType, reason string, metadata map[string]any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transitionLocked(to, event, reason, metadata)
}

func (m *Machine) transitionLocked(to State, event EventType, reason string, metadata map[string]any) bool {
	from := State(m.fsm.Current())

	if !m.table.CanTransition(from, to) {
		m.logger.Warn("invalid pipeline transition rejected",
			zap.String("from", string(from)),
			zap.String("to", string(to)),
			zap.String("event", string(event)),
		)
		InvalidTransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
		return false
	}

	if from != to {
		if err := m.fsm.Event(context.Background(), eventName(to)); err != nil {
			m.logger.Warn("invalid pipeline transition rejected",
				zap.String("from", string(from)),
				zap.String("to", string(to)),
				zap.String("event", string(event)),
				zap.Error(err),
			)
			InvalidTransitionsTotal.WithLabelValues(string(from), string(to)).Inc()
			return false
		}
	}

	m.history = append(m.history, StateTransition{
		FromState: from,
		ToState:   to,
		Event:     event,
		Timestamp: time.Now().UTC(),
		Reason:    reason,
		Metadata:  copyMap(metadata),
	})
	TransitionsTotal.WithLabelValues(string(from), string(to), string(event)).Inc()

	m.logger.Info("pipeline state transition",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("event", string(event)),
		zap.String("reason", reason),
	)

	m.persistLocked()
	return true
}

// UpdateStageState records a stage entering a new state, creating the
// stage record on first reference.
func (m *Machine) UpdateStageState(stageName string, state StageState, metadata map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	info, ok := m.stages[stageName]
	if !ok {
		info = &StageStateInfo{
			StageName: stageName,
			StartTime: now,
			Metadata:  make(map[string]any),
		}
		m.stages[stageName] = info
	}

	for k, v := range metadata {
		info.Metadata[k] = v
	}
	if msg := stringValue(metadata, "error", "error_message"); msg != "" {
		info.ErrorMessage = msg
	}

	info.State = state
	switch {
	case state == StageRetrying:
		info.RetryCount++
	case state == StageRunning:
		info.EndTime = nil
		info.DurationSeconds = nil
	case state.Terminal():
		end := now
		info.EndTime = &end
		duration := end.Sub(info.StartTime).Seconds()
		info.DurationSeconds = &duration
	}

	switch {
	case state == StageRunning || state == StageRetrying:
		m.activeStage = stageName
	case (state.Terminal() || state == StageCircuitOpen) && m.activeStage == stageName:
		m.activeStage = ""
	}

	StageUpdatesTotal.WithLabelValues(string(state)).Inc()
	m.logger.Debug("stage state updated",
		zap.String("stage", stageName),
		zap.String("state", string(state)),
		zap.Int("retry_count", info.RetryCount),
	)

	m.persistLocked()
}

// RegisterIssue adds an issue to the active set and degrades the
// machine's health when thresholds are crossed. Re-registering an
// active issue is a no-op.
func (m *Machine) RegisterIssue(issue IssueType, metadata map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.activeIssues[issue]; exists {
		m.logger.Debug("issue already registered", zap.String("issue_type", string(issue)))
		return
	}

	m.activeIssues[issue] = copyMap(metadata)
	IssuesTotal.WithLabelValues(string(issue), "registered").Inc()

	count := len(m.activeIssues)
	m.logger.Warn("issue registered",
		zap.String("issue_type", string(issue)),
		zap.Int("active_issues", count),
	)

	var moved bool
	switch {
	case count >= criticalIssueThreshold:
		moved = m.transitionLocked(StateCritical, EventHealthCritical,
			fmt.Sprintf("%d active issues", count), nil)
	case count >= degradedIssueThreshold:
		moved = m.transitionLocked(StateDegradedHealth, EventHealthDegraded,
			fmt.Sprintf("%d active issues", count), nil)
	}
	if !moved {
		m.persistLocked()
	}
}

// ResolveIssue removes an issue from the active set. When the last
// issue resolves, the machine returns to HEALTHY.
func (m *Machine) ResolveIssue(issue IssueType) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.activeIssues[issue]; !exists {
		m.logger.Debug("issue not active", zap.String("issue_type", string(issue)))
		return
	}

	delete(m.activeIssues, issue)
	m.resolvedIssues = append(m.resolvedIssues, issue)
	IssuesTotal.WithLabelValues(string(issue), "resolved").Inc()

	m.logger.Info("issue resolved",
		zap.String("issue_type", string(issue)),
		zap.Int("active_issues", len(m.activeIssues)),
	)

	var moved bool
	if len(m.activeIssues) == 0 {
		moved = m.transitionLocked(StateHealthy, EventHealthRestored, "all issues resolved", nil)
	}
	if !moved {
		m.persistLocked()
	}
}

// ExecuteWorkflow resolves a recovery workflow for an issue and runs
// it. Registered workflows take precedence; the generator is consulted
// for unknown issue types. Returns true when the workflow succeeded
// and the issue was resolved.
func (m *Machine) ExecuteWorkflow(ctx context.Context, issue IssueType, wctx map[string]any) bool {
	ctx, span := machineTracer.Start(ctx, "pipeline.execute_workflow")
	defer span.End()
	span.SetAttributes(
		attribute.String("card_id", m.config.CardID),
		attribute.String("issue_type", string(issue)),
	)

	if m.config.Engine == nil {
		m.logger.Error("no workflow engine configured", zap.String("issue_type", string(issue)))
		span.SetStatus(codes.Error, "no workflow engine configured")
		return false
	}

	wf := m.resolveWorkflow(ctx, issue, wctx)
	if wf == nil {
		m.logger.Error("no workflow available for issue", zap.String("issue_type", string(issue)))
		span.SetStatus(codes.Error, "no workflow available")
		return false
	}
	span.SetAttributes(attribute.String("workflow.name", wf.Name))

	// The engine serializes its own state; holding the machine lock
	// across action handlers would block snapshot readers for the
	// whole run.
	exec := m.config.Engine.Execute(ctx, wf, wctx)
	if exec != nil && exec.Success {
		m.ResolveIssue(issue)
		m.Transition(State(wf.SuccessState), EventRecoverySuccess,
			fmt.Sprintf("workflow %s succeeded", wf.Name), nil)
		span.SetStatus(codes.Ok, "")
		return true
	}

	failedAction := ""
	if exec != nil {
		failedAction = exec.FailedAction
	}
	m.Transition(State(wf.FailureState), EventRecoveryFail,
		fmt.Sprintf("workflow %s failed at action %s", wf.Name, failedAction), nil)
	span.SetStatus(codes.Error, "workflow failed")
	return false
}

func (m *Machine) resolveWorkflow(ctx context.Context, issue IssueType, wctx map[string]any) *workflow.Workflow {
	if m.config.Workflows != nil {
		if wf, ok := m.config.Workflows.Get(string(issue)); ok {
			return wf
		}
	}
	if m.config.Generator != nil {
		wf, err := m.config.Generator.GenerateWorkflow(ctx, issue, wctx)
		if err != nil {
			m.logger.Warn("workflow generation failed",
				zap.String("issue_type", string(issue)),
				zap.Error(err),
			)
			return nil
		}
		if wf != nil {
			m.logger.Info("using generated workflow",
				zap.String("issue_type", string(issue)),
				zap.String("workflow", wf.Name),
			)
			return wf
		}
	}
	return nil
}

// PushState saves a state and its context on the rollback stack.
func (m *Machine) PushState(state State, context map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stack.Push(state, context)
	m.logger.Debug("state pushed",
		zap.String("state", string(state)),
		zap.Int("stack_depth", m.stack.Depth()),
	)
}

// PopState removes and returns the most recent stack frame.
func (m *Machine) PopState() (*StackFrame, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	frame, ok := m.stack.Pop()
	if !ok {
		return nil, false
	}
	m.logger.Debug("state popped",
		zap.String("state", string(frame.State)),
		zap.Int("stack_depth", m.stack.Depth()),
	)
	return &frame, true
}

// RollbackToState unwinds the stack to the most recent frame holding
// the target state and transitions there. It mutates nothing and
// returns false when no frame holds the target or the current state
// has no edge to it.
func (m *Machine) RollbackToState(ctx context.Context, target State) bool {
	_, span := machineTracer.Start(ctx, "pipeline.rollback_to_state")
	defer span.End()
	span.SetAttributes(
		attribute.String("card_id", m.config.CardID),
		attribute.String("target", string(target)),
	)

	m.mu.Lock()
	defer m.mu.Unlock()

	depth := m.stack.framesTo(target)
	if depth == 0 {
		m.logger.Warn("rollback target not on stack", zap.String("target", string(target)))
		RollbacksTotal.WithLabelValues("no_frame").Inc()
		span.SetStatus(codes.Error, "target not on stack")
		return false
	}

	current := State(m.fsm.Current())
	if !m.table.CanTransition(current, target) {
		m.logger.Warn("rollback target unreachable",
			zap.String("from", string(current)),
			zap.String("target", string(target)),
		)
		RollbacksTotal.WithLabelValues("unreachable").Inc()
		span.SetStatus(codes.Error, "target unreachable")
		return false
	}

	for i := 0; i < depth; i++ {
		m.stack.Pop()
	}

	ok := m.transitionLocked(target, EventRollbackComplete,
		fmt.Sprintf("rolled back %d frames", depth),
		map[string]any{"frames_unwound": depth})
	if !ok {
		RollbacksTotal.WithLabelValues("failed").Inc()
		span.SetStatus(codes.Error, "transition failed")
		return false
	}

	RollbacksTotal.WithLabelValues("success").Inc()
	span.SetStatus(codes.Ok, "")
	return true
}

// CurrentState returns the machine's current state.
func (m *Machine) CurrentState() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State(m.fsm.Current())
}

// History returns a copy of the accepted transition history.
func (m *Machine) History() []StateTransition {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]StateTransition, len(m.history))
	copy(out, m.history)
	return out
}

// ActiveIssues returns the sorted active issue types.
func (m *Machine) ActiveIssues() []IssueType {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeIssuesLocked()
}

func (m *Machine) activeIssuesLocked() []IssueType {
	out := make([]IssueType, 0, len(m.activeIssues))
	for issue := range m.activeIssues {
		out = append(out, issue)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ResolvedIssues returns the issue types resolved so far, in
// resolution order.
func (m *Machine) ResolvedIssues() []IssueType {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]IssueType, len(m.resolvedIssues))
	copy(out, m.resolvedIssues)
	return out
}

// StackDepth returns the number of frames on the rollback stack.
func (m *Machine) StackDepth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stack.Depth()
}

// StageInfo returns a copy of one stage's record.
func (m *Machine) StageInfo(stageName string) (*StageStateInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, ok := m.stages[stageName]
	if !ok {
		return nil, false
	}
	return copyStageInfo(info), true
}

// Snapshot returns a deep-copied projection of the machine.
func (m *Machine) Snapshot() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Machine) snapshotLocked() *Snapshot {
	stages := make(map[string]*StageStateInfo, len(m.stages))
	breakers := make([]string, 0)
	for name, info := range m.stages {
		stages[name] = copyStageInfo(info)
		if info.State == StageCircuitOpen {
			breakers = append(breakers, name)
		}
	}
	sort.Strings(breakers)

	issues := make([]string, 0, len(m.activeIssues))
	for issue := range m.activeIssues {
		issues = append(issues, string(issue))
	}
	sort.Strings(issues)

	return &Snapshot{
		State:               State(m.fsm.Current()),
		Timestamp:           time.Now().UTC(),
		CardID:              m.config.CardID,
		ActiveStage:         m.activeStage,
		HealthStatus:        healthStatus(len(m.activeIssues)),
		CircuitBreakersOpen: breakers,
		ActiveIssues:        issues,
		Stages:              stages,
	}
}

// WorkflowHistory returns the engine's execution history, or nil when
// no engine is configured.
func (m *Machine) WorkflowHistory() []workflow.Execution {
	if m.config.Engine == nil {
		return nil
	}
	return m.config.Engine.History()
}

func (m *Machine) persistLocked() {
	if m.store == nil {
		return
	}
	if err := m.store.Save(m.snapshotLocked()); err != nil {
		m.logger.Warn("failed to persist snapshot", zap.Error(err))
	}
}

// healthStatus derives the snapshot health field from the active issue
// count, using the same thresholds as the health transitions.
func healthStatus(activeIssues int) HealthStatus {
	switch {
	case activeIssues >= criticalIssueThreshold:
		return HealthCritical
	case activeIssues >= degradedIssueThreshold:
		return HealthDegraded
	default:
		return HealthHealthy
	}
}

func copyMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyStageInfo(info *StageStateInfo) *StageStateInfo {
	out := *info
	if info.EndTime != nil {
		end := *info.EndTime
		out.EndTime = &end
	}
	if info.DurationSeconds != nil {
		duration := *info.DurationSeconds
		out.DurationSeconds = &duration
	}
	out.Metadata = copyMap(info.Metadata)
	return &out
}

func stringValue(m map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := m[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
