package workflow

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Registry holds one workflow per issue type. Registration happens at
// orchestrator startup, lookups at runtime.
type Registry struct {
	logger *zap.Logger

	mu        sync.RWMutex
	workflows map[string]*Workflow
}

// NewRegistry creates an empty workflow registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		logger:    logger,
		workflows: make(map[string]*Workflow),
	}
}

// Register validates and stores a workflow under its issue type.
// Registering a second workflow for the same issue type replaces the
// first, with a warning.
func (r *Registry) Register(wf *Workflow) error {
	if wf == nil {
		return fmt.Errorf("%w: workflow is required", ErrInvalidWorkflow)
	}
	if err := wf.Validate(); err != nil {
		return err
	}
	if wf.IssueType == "" {
		return fmt.Errorf("%w: workflow %q has no issue type", ErrInvalidWorkflow, wf.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.workflows[wf.IssueType]; ok {
		r.logger.Warn("replacing registered workflow",
			zap.String("issue_type", wf.IssueType),
			zap.String("previous", prev.Name),
			zap.String("replacement", wf.Name),
		)
	}
	r.workflows[wf.IssueType] = wf

	r.logger.Debug("registered workflow",
		zap.String("issue_type", wf.IssueType),
		zap.String("workflow", wf.Name),
		zap.Int("actions", len(wf.Actions)),
	)
	return nil
}

// Get returns the workflow registered for an issue type.
func (r *Registry) Get(issueType string) (*Workflow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wf, ok := r.workflows[issueType]
	return wf, ok
}

// Names returns the registered workflow names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.workflows))
	for _, wf := range r.workflows {
		names = append(names, wf.Name)
	}
	sort.Strings(names)
	return names
}
