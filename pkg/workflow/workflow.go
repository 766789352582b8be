package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidConfig indicates a missing or invalid configuration value.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrInvalidWorkflow indicates a workflow that cannot be executed.
	ErrInvalidWorkflow = errors.New("invalid workflow")
)

// Handler is one unit of recovery work. It receives the workflow
// context map shared by all actions of one execution. A nil return
// means the action succeeded.
type Handler func(ctx context.Context, wctx map[string]any) error

// Action pairs a handler with its compensating handler and retry
// policy. Handlers are injected, never hardcoded.
type Action struct {
	// Name identifies the action inside its workflow. Unique per
	// workflow; rollback resolves handlers by name.
	Name string

	// Handler performs the action.
	Handler Handler

	// RollbackHandler compensates a completed action when a later
	// action fails. Optional.
	RollbackHandler Handler

	// RetryOnFailure enables retry with exponential backoff.
	RetryOnFailure bool

	// MaxRetries bounds the total number of handler invocations when
	// RetryOnFailure is set. MaxRetries of 3 means at most 3 attempts.
	MaxRetries int
}

// Workflow is an ordered recovery procedure for one issue type.
type Workflow struct {
	Name      string
	IssueType string
	Actions   []Action

	// SuccessState and FailureState name the pipeline states to enter
	// after the workflow succeeds or fails. Interpreted by the caller,
	// not by the engine.
	SuccessState string
	FailureState string

	// RollbackOnFailure runs the completed actions' rollback handlers,
	// in reverse order, when an action exhausts its retries.
	RollbackOnFailure bool
}

// Validate checks that the workflow is runnable. IssueType is not
// required here: ad-hoc workflows may run without being registered.
func (w *Workflow) Validate() error {
	if w.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidWorkflow)
	}
	if len(w.Actions) == 0 {
		return fmt.Errorf("%w: workflow %q has no actions", ErrInvalidWorkflow, w.Name)
	}

	seen := make(map[string]bool, len(w.Actions))
	for i, action := range w.Actions {
		if action.Name == "" {
			return fmt.Errorf("%w: workflow %q action %d has no name", ErrInvalidWorkflow, w.Name, i)
		}
		if action.Handler == nil {
			return fmt.Errorf("%w: workflow %q action %q has no handler", ErrInvalidWorkflow, w.Name, action.Name)
		}
		if action.MaxRetries < 0 {
			return fmt.Errorf("%w: workflow %q action %q has negative max retries", ErrInvalidWorkflow, w.Name, action.Name)
		}
		if seen[action.Name] {
			return fmt.Errorf("%w: workflow %q has duplicate action %q", ErrInvalidWorkflow, w.Name, action.Name)
		}
		seen[action.Name] = true
	}
	return nil
}

// Execution records one engine run of a workflow.
type Execution struct {
	WorkflowName string     `json:"workflow_name"`
	IssueType    string     `json:"issue_type"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	Success      bool       `json:"success"`

	// ActionsTaken lists the actions that completed, in execution
	// order. The failed action is never in this list.
	ActionsTaken []string `json:"actions_taken"`

	// FailedAction names the action that exhausted its retries, empty
	// on success.
	FailedAction string `json:"failed_action,omitempty"`

	// Metadata carries the workflow context as it stood when the run
	// ended, plus engine annotations such as validation errors.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Duration returns the wall time of the execution, zero while still
// running.
func (e *Execution) Duration() time.Duration {
	if e.EndTime == nil {
		return 0
	}
	return e.EndTime.Sub(e.StartTime)
}
