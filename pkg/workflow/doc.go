// Package workflow executes ordered recovery actions with retry,
// backoff and compensating rollback.
//
// # Overview
//
// A Workflow is an ordered list of Actions bound to an issue type.
// Each Action pairs an injected Handler with an optional
// RollbackHandler and a per-action retry policy. The Engine runs a
// workflow's actions in order: a failing action is retried with
// exponential backoff until its retry budget is exhausted, and an
// exhausted action triggers a reverse-order rollback of the actions
// that completed before it. Rollback is best-effort compensation, not
// a transaction: rollback failures are logged and swallowed.
//
// Workflows are registered per issue type in a Registry at startup, or
// synthesized at runtime by the learning subsystem.
//
// # Usage
//
//	engine, _ := workflow.NewEngine(workflow.Config{}, logger)
//
//	wf := &workflow.Workflow{
//		Name:      "restart_stage",
//		IssueType: "stage_timeout",
//		Actions: []workflow.Action{
//			{Name: "stop_stage", Handler: stopStage, RollbackHandler: startStage},
//			{Name: "clear_cache", Handler: clearCache, RetryOnFailure: true, MaxRetries: 3},
//			{Name: "start_stage", Handler: startStage},
//		},
//		SuccessState:      "RUNNING",
//		FailureState:      "FAILED",
//		RollbackOnFailure: true,
//	}
//
//	exec := engine.Execute(ctx, wf, map[string]any{"card_id": "card-42"})
//	if !exec.Success {
//		// exec.FailedAction names the action that exhausted its retries.
//	}
package workflow
