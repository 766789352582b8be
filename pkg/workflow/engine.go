package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var engineTracer = otel.Tracer("steward.workflow")

// Config configures an Engine.
type Config struct {
	// InitialBackoff is the sleep before the first retry.
	// Default: 1s.
	InitialBackoff time.Duration `koanf:"initial_backoff"`

	// BackoffFactor multiplies the sleep after every retry.
	// Default: 2.0.
	BackoffFactor float64 `koanf:"backoff_factor"`

	// MaxBackoff caps the sleep between retries.
	// Default: 30s.
	MaxBackoff time.Duration `koanf:"max_backoff"`

	// MaxHistory bounds the number of executions the engine keeps.
	// Default: 100.
	MaxHistory int `koanf:"max_history"`
}

func (c *Config) applyDefaults() {
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.BackoffFactor == 0 {
		c.BackoffFactor = 2.0
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
	if c.MaxHistory <= 0 {
		c.MaxHistory = 100
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.BackoffFactor < 1 {
		return fmt.Errorf("%w: backoff factor must be >= 1, got %v", ErrInvalidConfig, c.BackoffFactor)
	}
	if c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("%w: max backoff %v is below initial backoff %v", ErrInvalidConfig, c.MaxBackoff, c.InitialBackoff)
	}
	return nil
}

// Engine runs workflows. Safe for concurrent use; each Execute call
// owns its workflow context map.
type Engine struct {
	config Config
	logger *zap.Logger

	mu      sync.Mutex
	history []Execution
}

// NewEngine creates a workflow engine.
func NewEngine(config Config, logger *zap.Logger) (*Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Engine{
		config: config,
		logger: logger,
	}, nil
}

// Execute runs the workflow's actions in order. The returned Execution
// is always non-nil and is appended to the engine history. On the
// first action that exhausts its retries the execution stops: the
// failed action is recorded, the completed actions are rolled back
// when the workflow asks for it, and Success is false.
func (e *Engine) Execute(ctx context.Context, wf *Workflow, wctx map[string]any) *Execution {
	exec := &Execution{
		StartTime: time.Now(),
		Metadata:  map[string]any{},
	}

	if wf == nil {
		e.logger.Error("cannot execute nil workflow")
		e.finish(exec, false)
		return exec
	}

	ctx, span := engineTracer.Start(ctx, "workflow.execute")
	defer span.End()
	span.SetAttributes(
		attribute.String("workflow.name", wf.Name),
		attribute.String("workflow.issue_type", wf.IssueType),
		attribute.Int("workflow.actions", len(wf.Actions)),
	)

	exec.WorkflowName = wf.Name
	exec.IssueType = wf.IssueType

	if err := wf.Validate(); err != nil {
		e.logger.Error("refusing to execute invalid workflow",
			zap.String("workflow", wf.Name),
			zap.Error(err),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		exec.Metadata["validation_error"] = err.Error()
		e.finish(exec, false)
		return exec
	}

	if wctx == nil {
		wctx = map[string]any{}
	}

	e.logger.Info("executing workflow",
		zap.String("workflow", wf.Name),
		zap.String("issue_type", wf.IssueType),
		zap.Int("actions", len(wf.Actions)),
	)

	for _, action := range wf.Actions {
		if ok := e.ExecuteAction(ctx, action, wctx); !ok {
			exec.FailedAction = action.Name
			snapshotContext(exec, wctx)
			e.logger.Error("workflow action exhausted retries",
				zap.String("workflow", wf.Name),
				zap.String("action", action.Name),
				zap.Strings("actions_taken", exec.ActionsTaken),
			)
			span.SetAttributes(attribute.String("workflow.failed_action", action.Name))
			span.SetStatus(codes.Error, "action failed")

			if wf.RollbackOnFailure {
				e.Rollback(ctx, exec, wf)
			}
			e.finish(exec, false)
			return exec
		}
		exec.ActionsTaken = append(exec.ActionsTaken, action.Name)
	}
	snapshotContext(exec, wctx)

	e.logger.Info("workflow completed",
		zap.String("workflow", wf.Name),
		zap.Int("actions_taken", len(exec.ActionsTaken)),
	)
	span.SetStatus(codes.Ok, "")
	e.finish(exec, true)
	return exec
}

// ExecuteAction runs one action through its retry policy. It returns
// false when the handler's retry budget is exhausted. Handler panics
// count as failed attempts and never propagate.
func (e *Engine) ExecuteAction(ctx context.Context, action Action, wctx map[string]any) bool {
	ctx, span := engineTracer.Start(ctx, "workflow.execute_action")
	defer span.End()
	span.SetAttributes(attribute.String("action.name", action.Name))

	if action.Handler == nil {
		e.logger.Error("action has no handler", zap.String("action", action.Name))
		span.SetStatus(codes.Error, "nil handler")
		return false
	}

	attempt := 0
	operation := func() error {
		attempt++
		err := e.runHandler(ctx, action, wctx)
		if err != nil {
			ActionAttemptsTotal.WithLabelValues(action.Name, "failure").Inc()
			e.logger.Warn("action attempt failed",
				zap.String("action", action.Name),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return err
		}
		ActionAttemptsTotal.WithLabelValues(action.Name, "success").Inc()
		return nil
	}

	var err error
	if action.RetryOnFailure && action.MaxRetries > 1 {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = e.config.InitialBackoff
		b.Multiplier = e.config.BackoffFactor
		b.RandomizationFactor = 0
		b.MaxInterval = e.config.MaxBackoff
		b.MaxElapsedTime = 0

		err = backoff.Retry(operation, backoff.WithContext(
			backoff.WithMaxRetries(b, uint64(action.MaxRetries-1)), ctx))
	} else {
		err = operation()
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Int("action.attempts", attempt))
		return false
	}

	span.SetAttributes(attribute.Int("action.attempts", attempt))
	span.SetStatus(codes.Ok, "")
	return true
}

// snapshotContext copies the workflow context into the execution
// record so rollback handlers and history readers see the context as
// it stood when the run ended.
func snapshotContext(exec *Execution, wctx map[string]any) {
	for k, v := range wctx {
		exec.Metadata[k] = v
	}
}

// runHandler invokes the handler, converting panics into errors.
func (e *Engine) runHandler(ctx context.Context, action Action, wctx map[string]any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action %q panicked: %v", action.Name, r)
			e.logger.Error("recovered panic in action handler",
				zap.String("action", action.Name),
				zap.Any("panic", r),
			)
		}
	}()
	return action.Handler(ctx, wctx)
}

// Rollback compensates a partial execution. The completed actions are
// walked in reverse order and each one's rollback handler is invoked
// with the execution metadata as partial context. The failed action is
// never rolled back since it did not complete. Rollback failures are
// logged and swallowed.
func (e *Engine) Rollback(ctx context.Context, exec *Execution, wf *Workflow) {
	if exec == nil || wf == nil || len(exec.ActionsTaken) == 0 {
		return
	}

	ctx, span := engineTracer.Start(ctx, "workflow.rollback")
	defer span.End()
	span.SetAttributes(
		attribute.String("workflow.name", wf.Name),
		attribute.Int("rollback.actions", len(exec.ActionsTaken)),
	)

	byName := make(map[string]Action, len(wf.Actions))
	for _, action := range wf.Actions {
		byName[action.Name] = action
	}

	RollbacksTotal.WithLabelValues(wf.Name).Inc()
	e.logger.Warn("rolling back workflow",
		zap.String("workflow", wf.Name),
		zap.String("failed_action", exec.FailedAction),
		zap.Strings("actions_taken", exec.ActionsTaken),
	)

	for i := len(exec.ActionsTaken) - 1; i >= 0; i-- {
		name := exec.ActionsTaken[i]
		action, ok := byName[name]
		if !ok || action.RollbackHandler == nil {
			e.logger.Debug("no rollback handler for action", zap.String("action", name))
			continue
		}

		partial := make(map[string]any, len(exec.Metadata)+3)
		for k, v := range exec.Metadata {
			partial[k] = v
		}
		partial["workflow_name"] = exec.WorkflowName
		partial["failed_action"] = exec.FailedAction
		partial["rollback_of"] = name

		if err := e.runRollbackHandler(ctx, name, action.RollbackHandler, partial); err != nil {
			e.logger.Warn("rollback handler failed",
				zap.String("action", name),
				zap.Error(err),
			)
			span.RecordError(err)
		}
	}
}

// runRollbackHandler invokes a rollback handler, converting panics into
// errors so compensation for the remaining actions still runs.
func (e *Engine) runRollbackHandler(ctx context.Context, name string, handler Handler, wctx map[string]any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rollback of %q panicked: %v", name, r)
		}
	}()
	return handler(ctx, wctx)
}

// History returns a copy of the engine's executions, most recent last.
func (e *Engine) History() []Execution {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Execution, len(e.history))
	copy(out, e.history)
	return out
}

func (e *Engine) finish(exec *Execution, success bool) {
	now := time.Now()
	exec.EndTime = &now
	exec.Success = success

	result := "success"
	if !success {
		result = "failure"
	}
	name := exec.WorkflowName
	if name == "" {
		name = "unknown"
	}
	ExecutionsTotal.WithLabelValues(name, result).Inc()
	ExecutionDuration.WithLabelValues(name).Observe(exec.Duration().Seconds())

	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = append(e.history, *exec)
	if len(e.history) > e.config.MaxHistory {
		e.history = e.history[len(e.history)-e.config.MaxHistory:]
	}
}
