// Package learning turns unexpected pipeline states into reusable
// recovery solutions.
//
// # Overview
//
// The PatternRecognizer decides whether an observed state was expected
// and classifies the deviation's severity. A Dispatcher then learns a
// solution for the deviation using one of four strategies: consult an
// LLM for a fresh plan, adapt the closest previously learned solution,
// hand off to a human, or synthesize a conservative experimental trial.
// Strategies are entries in a dispatch map; adding one never grows an
// if/else chain.
//
// Learned solutions live in a Repository: an in-memory cache written
// through to a similarity store so future runs can find them by
// semantic similarity. Success rates are recomputed from application
// counters each time a solution is applied.
//
// The WorkflowBuilder converts a learned solution into a runnable
// workflow, one action per step. Steps the injected StepResolver does
// not recognize become manual-intervention actions that fail the
// workflow so the orchestrator escalates instead of guessing.
//
// # Usage
//
//	recognizer := learning.NewPatternRecognizer(logger)
//	us := recognizer.DetectUnexpectedState("card-42", "STAGE_FAILED",
//		[]string{"STAGE_COMPLETED"}, learning.Observation{
//			StageName:    "build",
//			ErrorMessage: "exit status 2",
//		})
//	if us == nil {
//		return nil // state was expected
//	}
//
//	solution, err := dispatcher.LearnSolution(ctx, us, learning.StrategySimilarCaseAdaptation)
//	if err != nil || solution == nil {
//		return err
//	}
//	wf := builder.Build(solution, "BUILD_FAILURE")
package learning
