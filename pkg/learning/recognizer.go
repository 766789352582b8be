package learning

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Observation carries what the caller knew about the pipeline when the
// state was observed.
type Observation struct {
	StageName     string
	ErrorMessage  string
	PreviousState string
	Context       map[string]any
}

// PatternRecognizer decides whether an observed state was expected and
// classifies deviations.
type PatternRecognizer struct {
	logger *zap.Logger
}

// NewPatternRecognizer returns a recognizer.
func NewPatternRecognizer(logger *zap.Logger) *PatternRecognizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PatternRecognizer{logger: logger}
}

// DetectUnexpectedState returns nil when currentState is among the
// expected states. Otherwise it records the deviation with a severity
// classification.
func (r *PatternRecognizer) DetectUnexpectedState(cardID, currentState string, expectedStates []string, obs Observation) *UnexpectedState {
	for _, expected := range expectedStates {
		if currentState == expected {
			return nil
		}
	}

	us := &UnexpectedState{
		StateID:        uuid.New().String(),
		Timestamp:      time.Now().UTC(),
		CardID:         cardID,
		StageName:      obs.StageName,
		ErrorMessage:   obs.ErrorMessage,
		Context:        copyContext(obs.Context),
		PreviousState:  obs.PreviousState,
		CurrentState:   currentState,
		ExpectedStates: append([]string(nil), expectedStates...),
		Severity:       classifySeverity(currentState, obs.ErrorMessage),
	}

	r.logger.Warn("unexpected state detected",
		zap.String("card_id", cardID),
		zap.String("state_id", us.StateID),
		zap.String("current_state", currentState),
		zap.Strings("expected_states", expectedStates),
		zap.String("severity", string(us.Severity)),
	)

	return us
}

// classifySeverity applies a fixed precedence: a failed or critical
// state name outranks an error state name, which outranks the mere
// presence of an error message.
func classifySeverity(currentState, errorMessage string) Severity {
	name := strings.ToUpper(currentState)
	switch {
	case strings.Contains(name, "FAILED") || strings.Contains(name, "CRITICAL"):
		return SeverityCritical
	case strings.Contains(name, "ERROR"):
		return SeverityHigh
	case errorMessage != "":
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func copyContext(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
