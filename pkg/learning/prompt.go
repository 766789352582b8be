package learning

import (
	"fmt"
	"sort"
	"strings"
)

const consultationSystemPrompt = `You are a recovery planner for a multi-stage AI-agent pipeline. Given an unexpected pipeline state, propose a concrete recovery plan. Reply with a single JSON object and nothing else.`

// buildConsultationPrompt renders an unexpected state into the user
// prompt for an LLM consultation.
func buildConsultationPrompt(us *UnexpectedState) string {
	var b strings.Builder

	b.WriteString("An AI-agent pipeline entered an unexpected state.\n\n")
	fmt.Fprintf(&b, "Current state: %s\n", us.CurrentState)
	fmt.Fprintf(&b, "Expected states: %s\n", strings.Join(us.ExpectedStates, ", "))
	fmt.Fprintf(&b, "Severity: %s\n", us.Severity)
	if us.PreviousState != "" {
		fmt.Fprintf(&b, "Previous state: %s\n", us.PreviousState)
	}
	if us.StageName != "" {
		fmt.Fprintf(&b, "Stage: %s\n", us.StageName)
	}
	if us.ErrorMessage != "" {
		fmt.Fprintf(&b, "Error: %s\n", us.ErrorMessage)
	}

	if len(us.Context) > 0 {
		b.WriteString("\nContext:\n")
		keys := make([]string, 0, len(us.Context))
		for k := range us.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s: %v\n", k, us.Context[k])
		}
	}

	b.WriteString(`
Reply with JSON of this shape:
{
  "problem_analysis": "what went wrong and why",
  "solution_description": "the recovery approach",
  "workflow_steps": ["first step", "second step"],
  "confidence": 0.0
}
Each workflow step must be a single imperative action.`)

	return b.String()
}
