package learning_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/steward/pkg/learning"
	"github.com/fyrsmithlabs/steward/pkg/pipeline"
	"github.com/fyrsmithlabs/steward/pkg/workflow"
)

func TestWorkflowBuilder_Build(t *testing.T) {
	var restarted, rolledBack bool
	resolver := func(step string) (workflow.Handler, workflow.Handler) {
		if step != "restart service" {
			return nil, nil
		}
		return func(ctx context.Context, wctx map[string]any) error {
				restarted = true
				return nil
			}, func(ctx context.Context, wctx map[string]any) error {
				rolledBack = true
				return nil
			}
	}

	b := learning.NewWorkflowBuilder(resolver, zap.NewNop())
	solution := testSolution("s-1")
	solution.WorkflowSteps = []string{"restart service"}

	wf := b.Build(solution, "BUILD_FAILURE")
	require.NotNil(t, wf)
	require.NoError(t, wf.Validate())

	assert.Equal(t, "learned_s-1", wf.Name)
	assert.Equal(t, "BUILD_FAILURE", wf.IssueType)
	assert.Equal(t, string(pipeline.StateHealthy), wf.SuccessState)
	assert.Equal(t, string(pipeline.StateDegradedHealth), wf.FailureState)
	assert.False(t, wf.RollbackOnFailure)

	require.Len(t, wf.Actions, 1)
	assert.Equal(t, "step_01_restart_service", wf.Actions[0].Name)

	require.NoError(t, wf.Actions[0].Handler(context.Background(), nil))
	assert.True(t, restarted)

	require.NotNil(t, wf.Actions[0].RollbackHandler)
	require.NoError(t, wf.Actions[0].RollbackHandler(context.Background(), nil))
	assert.True(t, rolledBack)
}

func TestWorkflowBuilder_NilAndEmptySolutions(t *testing.T) {
	b := learning.NewWorkflowBuilder(nil, zap.NewNop())

	assert.Nil(t, b.Build(nil, "BUILD_FAILURE"))

	empty := testSolution("s-1")
	empty.WorkflowSteps = nil
	assert.Nil(t, b.Build(empty, "BUILD_FAILURE"))
}

func TestWorkflowBuilder_UnresolvedStepRequiresHuman(t *testing.T) {
	b := learning.NewWorkflowBuilder(nil, zap.NewNop())
	solution := testSolution("s-1")
	solution.WorkflowSteps = []string{"perform arcane ritual"}

	wf := b.Build(solution, "UNKNOWN")
	require.NotNil(t, wf)

	err := wf.Actions[0].Handler(context.Background(), nil)
	require.ErrorIs(t, err, learning.ErrManualIntervention)
	assert.Contains(t, err.Error(), "perform arcane ritual")
}

func TestWorkflowBuilder_ActionNamesUnique(t *testing.T) {
	b := learning.NewWorkflowBuilder(nil, zap.NewNop())
	solution := testSolution("s-1")
	solution.WorkflowSteps = []string{"retry build", "retry build", "Clear /tmp/cache!!"}

	wf := b.Build(solution, "BUILD_FAILURE")
	require.NotNil(t, wf)
	require.NoError(t, wf.Validate(), "duplicate steps must still yield unique action names")

	assert.Equal(t, "step_01_retry_build", wf.Actions[0].Name)
	assert.Equal(t, "step_02_retry_build", wf.Actions[1].Name)
	assert.Equal(t, "step_03_clear_tmp_cache", wf.Actions[2].Name)
}

func TestWorkflowBuilder_UnresolvedPlanFailsExecution(t *testing.T) {
	engine, err := workflow.NewEngine(workflow.Config{
		InitialBackoff: time.Millisecond,
		BackoffFactor:  2.0,
		MaxBackoff:     10 * time.Millisecond,
	}, zap.NewNop())
	require.NoError(t, err)

	b := learning.NewWorkflowBuilder(nil, zap.NewNop())
	solution := testSolution("s-1")

	wf := b.Build(solution, "BUILD_FAILURE")
	require.NotNil(t, wf)

	exec := engine.Execute(context.Background(), wf, nil)
	require.NotNil(t, exec)
	assert.False(t, exec.Success)
	assert.Equal(t, wf.Actions[0].Name, exec.FailedAction)
}
