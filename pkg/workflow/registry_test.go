package workflow_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/steward/pkg/workflow"
)

func testWorkflow(name, issueType string) *workflow.Workflow {
	return &workflow.Workflow{
		Name:      name,
		IssueType: issueType,
		Actions:   []workflow.Action{{Name: "noop", Handler: noopHandler}},
	}
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	registry := workflow.NewRegistry(nil)

	require.NoError(t, registry.Register(testWorkflow("restart_stage", "stage_timeout")))

	wf, ok := registry.Get("stage_timeout")
	require.True(t, ok)
	assert.Equal(t, "restart_stage", wf.Name)

	_, ok = registry.Get("unknown_issue")
	assert.False(t, ok)
}

func TestRegistry_LastWriteWins(t *testing.T) {
	registry := workflow.NewRegistry(nil)

	require.NoError(t, registry.Register(testWorkflow("first", "stage_timeout")))
	require.NoError(t, registry.Register(testWorkflow("second", "stage_timeout")))

	wf, ok := registry.Get("stage_timeout")
	require.True(t, ok)
	assert.Equal(t, "second", wf.Name)
}

func TestRegistry_RejectsInvalid(t *testing.T) {
	registry := workflow.NewRegistry(nil)

	err := registry.Register(nil)
	assert.ErrorIs(t, err, workflow.ErrInvalidWorkflow)

	err = registry.Register(&workflow.Workflow{Name: "no_actions", IssueType: "x"})
	assert.ErrorIs(t, err, workflow.ErrInvalidWorkflow)

	err = registry.Register(testWorkflow("no_issue_type", ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "issue type")
}

func TestRegistry_Names(t *testing.T) {
	registry := workflow.NewRegistry(nil)

	require.NoError(t, registry.Register(testWorkflow("zeta", "issue_z")))
	require.NoError(t, registry.Register(testWorkflow("alpha", "issue_a")))

	assert.Equal(t, []string{"alpha", "zeta"}, registry.Names())
}
