// Package pipeline tracks the execution state of one AI-agent pipeline
// run and drives its recovery.
//
// # Overview
//
// A Machine is created per card (one pipeline run) and owns that run's
// state for its lifetime: the current pipeline state, a per-stage state
// map, the active issue set and the append-only transition history.
// Transitions are validated against a static TransitionTable backed by
// a looplab/fsm automaton; an invalid edge is rejected with a false
// return, never an error.
//
// Two layers sit on top of the primary automaton. A health overlay
// moves the machine to DEGRADED_HEALTH or CRITICAL as issues accumulate
// (one active issue degrades, three are critical) and back to HEALTHY
// when the last issue resolves. A pushdown StateStack remembers states
// worth returning to: RollbackToState unwinds the stack to a prior
// frame and enters it with a single ROLLBACK_COMPLETE transition,
// mutating nothing when the target is absent or unreachable.
//
// Recovery is delegated: ExecuteWorkflow resolves a workflow for an
// issue type (registered first, generated second) and runs it through
// the workflow engine, entering the workflow's success or failure state
// with the outcome.
//
// When a state directory is configured, every mutation persists a JSON
// Snapshot of the machine, written atomically, one file per card.
//
// # Usage
//
//	machine, err := pipeline.NewMachine(pipeline.Config{
//		CardID:    "card-42",
//		StateDir:  "/var/lib/steward/state",
//		Engine:    engine,
//		Workflows: registry,
//	}, logger)
//	if err != nil {
//		return err
//	}
//
//	machine.Transition(pipeline.StateInitializing, pipeline.EventPipelineStarted, "run accepted", nil)
//	machine.Transition(pipeline.StateRunning, pipeline.EventPipelineStarted, "", nil)
//	machine.PushState(pipeline.StateRunning, map[string]any{"checkpoint": "before-build"})
//
//	machine.UpdateStageState("build", pipeline.StageRunning, nil)
//	machine.RegisterIssue(pipeline.IssueBuildFailure, map[string]any{"exit_code": 2})
//
//	if machine.ExecuteWorkflow(ctx, pipeline.IssueBuildFailure, nil) {
//		// issue resolved, machine is in the workflow's success state
//	}
package pipeline
