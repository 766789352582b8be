package learning

import "time"

// UnexpectedState captures one observed deviation from the expected
// pipeline states, with enough context to learn from it.
type UnexpectedState struct {
	// StateID is the unique identifier of this observation (UUID).
	StateID string `json:"state_id"`

	Timestamp time.Time `json:"timestamp"`

	// CardID identifies the pipeline run the deviation occurred in.
	CardID string `json:"card_id"`

	// StageName is the stage that was executing, when known.
	StageName string `json:"stage_name,omitempty"`

	ErrorMessage string `json:"error_message,omitempty"`

	// Context carries whatever the observer knew at detection time.
	Context map[string]any `json:"context,omitempty"`

	PreviousState  string   `json:"previous_state,omitempty"`
	CurrentState   string   `json:"current_state"`
	ExpectedStates []string `json:"expected_states"`

	Severity Severity `json:"severity"`
}

// LearnedSolution is a recovery plan learned for an unexpected state,
// with bookkeeping for how well it has worked since.
type LearnedSolution struct {
	// SolutionID is the unique solution identifier (UUID).
	SolutionID string `json:"solution_id"`

	// UnexpectedStateID links back to the deviation this solution was
	// learned for.
	UnexpectedStateID string `json:"unexpected_state_id"`

	ProblemDescription  string `json:"problem_description"`
	SolutionDescription string `json:"solution_description"`

	// WorkflowSteps are ordered, human-readable step descriptions. The
	// WorkflowBuilder maps them onto runnable actions.
	WorkflowSteps []string `json:"workflow_steps"`

	// SuccessRate is TimesSuccessful over TimesApplied, recomputed on
	// every application. Zero until first applied.
	SuccessRate     float64 `json:"success_rate"`
	TimesApplied    int     `json:"times_applied"`
	TimesSuccessful int     `json:"times_successful"`

	// Strategy records how this solution was learned.
	Strategy Strategy `json:"strategy"`

	// LLMModelUsed names the model that produced the plan, when one
	// was consulted.
	LLMModelUsed string `json:"llm_model_used,omitempty"`

	// HumanValidated marks solutions a human has reviewed. Generated
	// and experimental solutions start unvalidated.
	HumanValidated bool `json:"human_validated"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// RecordApplication updates the application counters after a run and
// recomputes the success rate from them.
func (s *LearnedSolution) RecordApplication(succeeded bool) {
	s.TimesApplied++
	if succeeded {
		s.TimesSuccessful++
	}
	s.SuccessRate = float64(s.TimesSuccessful) / float64(s.TimesApplied)
}

// Clone returns a deep copy.
func (s *LearnedSolution) Clone() *LearnedSolution {
	out := *s
	out.WorkflowSteps = append([]string(nil), s.WorkflowSteps...)
	if s.Metadata != nil {
		out.Metadata = make(map[string]string, len(s.Metadata))
		for k, v := range s.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}
