package learning

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/steward/pkg/pipeline"
	"github.com/fyrsmithlabs/steward/pkg/workflow"
)

// StepResolver maps a learned step's text onto a handler and an
// optional rollback handler. Returning a nil handler declines the
// step.
type StepResolver func(step string) (workflow.Handler, workflow.Handler)

// WorkflowBuilder turns learned solutions into runnable workflows.
type WorkflowBuilder struct {
	resolver StepResolver
	logger   *zap.Logger
}

// NewWorkflowBuilder creates a builder. With a nil resolver every step
// becomes a manual-intervention action.
func NewWorkflowBuilder(resolver StepResolver, logger *zap.Logger) *WorkflowBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowBuilder{resolver: resolver, logger: logger}
}

// Build converts a solution into a workflow with one action per step.
// Steps the resolver declines resolve to a manual-intervention handler
// that fails the action, so unresolvable plans surface instead of
// silently succeeding. Generated workflows do not roll back.
func (b *WorkflowBuilder) Build(solution *LearnedSolution, issueType string) *workflow.Workflow {
	if solution == nil || len(solution.WorkflowSteps) == 0 {
		return nil
	}

	actions := make([]workflow.Action, 0, len(solution.WorkflowSteps))
	for i, step := range solution.WorkflowSteps {
		handler, rollback := b.resolve(step)
		actions = append(actions, workflow.Action{
			Name:            fmt.Sprintf("step_%02d_%s", i+1, actionSlug(step)),
			Handler:         handler,
			RollbackHandler: rollback,
		})
	}

	return &workflow.Workflow{
		Name:         "learned_" + shortID(solution.SolutionID),
		IssueType:    issueType,
		Actions:      actions,
		SuccessState: string(pipeline.StateHealthy),
		FailureState: string(pipeline.StateDegradedHealth),
	}
}

func (b *WorkflowBuilder) resolve(step string) (workflow.Handler, workflow.Handler) {
	if b.resolver != nil {
		if handler, rollback := b.resolver(step); handler != nil {
			return handler, rollback
		}
	}

	logger := b.logger
	return func(ctx context.Context, wctx map[string]any) error {
		logger.Warn("no handler for learned step, requiring manual intervention",
			zap.String("step", step))
		return fmt.Errorf("%w: %s", ErrManualIntervention, step)
	}, nil
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// actionSlug derives a workflow action name fragment from step text.
func actionSlug(step string) string {
	slug := strings.ToLower(step)
	slug = slugRe.ReplaceAllString(slug, "_")
	slug = strings.Trim(slug, "_")
	if len(slug) > 40 {
		slug = strings.TrimRight(slug[:40], "_")
	}
	if slug == "" {
		slug = "step"
	}
	return slug
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
