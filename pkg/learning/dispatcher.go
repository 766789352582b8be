package learning

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/steward/pkg/llm"
	"github.com/fyrsmithlabs/steward/pkg/pipeline"
	"github.com/fyrsmithlabs/steward/pkg/workflow"
)

var learningTracer = otel.Tracer("steward.learning")

// strategyFunc learns a solution for one unexpected state. Returning
// (nil, nil) means the strategy legitimately produced nothing.
type strategyFunc func(ctx context.Context, us *UnexpectedState) (*LearnedSolution, error)

// Config configures the dispatcher's LLM consultations and similarity
// lookups.
type Config struct {
	// Temperature for consultation completions. Defaults to 0.2.
	Temperature float64 `koanf:"temperature"`

	// MaxTokens for consultation completions. Defaults to 1024.
	MaxTokens int `koanf:"max_tokens"`

	// SimilarTopK bounds similar-case lookups. Defaults to 3.
	SimilarTopK int `koanf:"similar_top_k"`
}

func (c *Config) applyDefaults() {
	if c.Temperature == 0 {
		c.Temperature = 0.2
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 1024
	}
	if c.SimilarTopK == 0 {
		c.SimilarTopK = 3
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: temperature must be between 0 and 2", ErrInvalidConfig)
	}
	if c.MaxTokens < 0 {
		return fmt.Errorf("%w: max_tokens cannot be negative", ErrInvalidConfig)
	}
	if c.SimilarTopK < 0 {
		return fmt.Errorf("%w: similar_top_k cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// Deps are the dispatcher's collaborators. All are optional; missing
// ones degrade the strategies that need them.
type Deps struct {
	// Completer serves LLM consultations.
	Completer llm.Completer

	// Repository stores learned solutions and serves similarity
	// lookups.
	Repository *Repository

	// Builder turns solutions into runnable workflows for
	// GenerateWorkflow. A default builder with no step resolver is
	// used when nil.
	Builder *WorkflowBuilder
}

// Dispatcher routes unexpected states to learning strategies. Each
// strategy is an entry in a dispatch map built at construction.
type Dispatcher struct {
	config     Config
	completer  llm.Completer
	repository *Repository
	builder    *WorkflowBuilder
	logger     *zap.Logger

	strategies map[Strategy]strategyFunc

	mu    sync.Mutex
	usage map[Strategy]int
}

// Dispatcher generates workflows for the pipeline machine.
var _ pipeline.WorkflowGenerator = (*Dispatcher)(nil)

// NewDispatcher creates a dispatcher.
func NewDispatcher(cfg Config, deps Deps, logger *zap.Logger) (*Dispatcher, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Dispatcher{
		config:     cfg,
		completer:  deps.Completer,
		repository: deps.Repository,
		builder:    deps.Builder,
		logger:     logger,
		usage:      make(map[Strategy]int),
	}
	if d.builder == nil {
		d.builder = NewWorkflowBuilder(nil, logger)
	}

	d.strategies = map[Strategy]strategyFunc{
		StrategyLLMConsultation:       d.consultLLM,
		StrategySimilarCaseAdaptation: d.adaptSimilarCase,
		StrategyHumanInLoop:           d.humanInLoop,
		StrategyExperimentalTrial:     d.experimentalTrial,
	}

	return d, nil
}

// LearnSolution learns a solution for an unexpected state using the
// given strategy. A (nil, nil) return means the strategy produced
// nothing, which is not an error.
func (d *Dispatcher) LearnSolution(ctx context.Context, us *UnexpectedState, strategy Strategy) (*LearnedSolution, error) {
	ctx, span := learningTracer.Start(ctx, "learning.learn_solution")
	defer span.End()

	if us == nil {
		span.SetStatus(codes.Error, "nil unexpected state")
		return nil, fmt.Errorf("unexpected state is required")
	}
	span.SetAttributes(
		attribute.String("card_id", us.CardID),
		attribute.String("strategy", string(strategy)),
		attribute.String("severity", string(us.Severity)),
	)

	handler, ok := d.strategies[strategy]
	if !ok {
		span.SetStatus(codes.Error, "unknown strategy")
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, strategy)
	}

	d.mu.Lock()
	d.usage[strategy]++
	d.mu.Unlock()
	StrategyUsageTotal.WithLabelValues(string(strategy)).Inc()

	solution, err := handler(ctx, us)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if solution != nil {
		SolutionsLearnedTotal.WithLabelValues(string(solution.Strategy)).Inc()
		d.logger.Info("solution learned",
			zap.String("card_id", us.CardID),
			zap.String("solution_id", solution.SolutionID),
			zap.String("strategy", string(solution.Strategy)),
			zap.Int("steps", len(solution.WorkflowSteps)),
		)
	}
	span.SetStatus(codes.Ok, "")
	return solution, nil
}

// Usage returns a snapshot of LearnSolution calls per requested
// strategy.
func (d *Dispatcher) Usage() map[Strategy]int {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make(map[Strategy]int, len(d.usage))
	for k, v := range d.usage {
		out[k] = v
	}
	return out
}

// GenerateWorkflow synthesizes an unexpected state for an issue type,
// learns a solution for it, and builds a runnable workflow. It
// implements pipeline.WorkflowGenerator.
func (d *Dispatcher) GenerateWorkflow(ctx context.Context, issue pipeline.IssueType, wctx map[string]any) (*workflow.Workflow, error) {
	us := &UnexpectedState{
		StateID:        uuid.New().String(),
		Timestamp:      time.Now().UTC(),
		CardID:         stringFromContext(wctx, "card_id"),
		StageName:      stringFromContext(wctx, "stage", "stage_name"),
		ErrorMessage:   stringFromContext(wctx, "error", "error_message"),
		Context:        copyContext(wctx),
		CurrentState:   string(issue),
		ExpectedStates: []string{string(pipeline.StateHealthy)},
	}
	us.Severity = classifySeverity(us.CurrentState, us.ErrorMessage)

	solution, err := d.LearnSolution(ctx, us, StrategySimilarCaseAdaptation)
	if err != nil {
		return nil, fmt.Errorf("failed to learn workflow for %s: %w", issue, err)
	}
	if solution == nil {
		return nil, nil
	}

	return d.builder.Build(solution, string(issue)), nil
}

// consultLLM asks the configured model for a recovery plan.
func (d *Dispatcher) consultLLM(ctx context.Context, us *UnexpectedState) (*LearnedSolution, error) {
	if d.completer == nil {
		d.logger.Debug("no completer configured, skipping llm consultation",
			zap.String("card_id", us.CardID))
		return nil, nil
	}

	resp, err := d.completer.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: consultationSystemPrompt},
			{Role: llm.RoleHuman, Content: buildConsultationPrompt(us)},
		},
		Temperature: d.config.Temperature,
		MaxTokens:   d.config.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to consult llm: %w", err)
	}

	steps, parsed := ParseWorkflowSteps(resp.Content)

	problem := describeProblem(us)
	solutionDesc := "recovery plan proposed by " + resp.Model
	metadata := map[string]string{"card_id": us.CardID}
	if cr, ok := parseConsultationReply(resp.Content); ok {
		if cr.ProblemAnalysis != "" {
			problem = cr.ProblemAnalysis
		}
		if cr.SolutionDescription != "" {
			solutionDesc = cr.SolutionDescription
		}
		metadata["confidence"] = fmt.Sprintf("%.2f", cr.Confidence)
	}
	if !parsed {
		metadata["parse_fallback"] = "true"
	}

	solution := &LearnedSolution{
		SolutionID:          uuid.New().String(),
		UnexpectedStateID:   us.StateID,
		ProblemDescription:  problem,
		SolutionDescription: solutionDesc,
		WorkflowSteps:       steps,
		Strategy:            StrategyLLMConsultation,
		LLMModelUsed:        resp.Model,
		Metadata:            metadata,
	}

	d.persistSolution(ctx, solution)
	return solution, nil
}

// adaptSimilarCase reuses the closest previously learned solution,
// falling back to LLM consultation when none exists.
func (d *Dispatcher) adaptSimilarCase(ctx context.Context, us *UnexpectedState) (*LearnedSolution, error) {
	if d.repository == nil {
		d.logger.Debug("no repository configured, falling back to llm consultation",
			zap.String("card_id", us.CardID))
		return d.consultLLM(ctx, us)
	}

	similars := d.repository.FindSimilarSolutions(ctx, us, d.config.SimilarTopK)
	if len(similars) == 0 {
		d.logger.Debug("no similar solutions, falling back to llm consultation",
			zap.String("card_id", us.CardID))
		return d.consultLLM(ctx, us)
	}

	best := similars[0]
	adapted := best.Clone()
	adapted.SolutionID = uuid.New().String()
	adapted.UnexpectedStateID = us.StateID
	adapted.ProblemDescription = describeProblem(us)
	adapted.Strategy = StrategySimilarCaseAdaptation
	adapted.HumanValidated = false

	// The adapted variant starts its own track record.
	adapted.SuccessRate = 0
	adapted.TimesApplied = 0
	adapted.TimesSuccessful = 0

	if adapted.Metadata == nil {
		adapted.Metadata = make(map[string]string)
	}
	adapted.Metadata["adapted_from"] = best.SolutionID
	adapted.Metadata["card_id"] = us.CardID

	d.logger.Info("adapting similar solution",
		zap.String("card_id", us.CardID),
		zap.String("adapted_from", best.SolutionID),
		zap.Float64("source_success_rate", best.SuccessRate),
	)

	d.persistSolution(ctx, adapted)
	return adapted, nil
}

// humanInLoop never produces a solution; it signals the orchestrator
// to pause for a human.
func (d *Dispatcher) humanInLoop(ctx context.Context, us *UnexpectedState) (*LearnedSolution, error) {
	d.logger.Info("human intervention requested",
		zap.String("card_id", us.CardID),
		zap.String("state_id", us.StateID),
		zap.String("current_state", us.CurrentState),
		zap.String("severity", string(us.Severity)),
	)
	return nil, nil
}

// experimentalTrial synthesizes a conservative diagnostic workflow
// without consulting anything.
func (d *Dispatcher) experimentalTrial(ctx context.Context, us *UnexpectedState) (*LearnedSolution, error) {
	solution := &LearnedSolution{
		SolutionID:          uuid.New().String(),
		UnexpectedStateID:   us.StateID,
		ProblemDescription:  describeProblem(us),
		SolutionDescription: "conservative diagnostic trial",
		WorkflowSteps: []string{
			"capture diagnostics",
			"retry smallest failing unit",
			"manual_intervention: escalate if retry fails",
		},
		Strategy: StrategyExperimentalTrial,
		Metadata: map[string]string{
			"experimental": "true",
			"card_id":      us.CardID,
		},
	}

	d.persistSolution(ctx, solution)
	return solution, nil
}

func (d *Dispatcher) persistSolution(ctx context.Context, s *LearnedSolution) {
	if d.repository == nil {
		return
	}
	if err := d.repository.StoreSolution(ctx, s); err != nil {
		d.logger.Warn("failed to store learned solution",
			zap.String("solution_id", s.SolutionID),
			zap.Error(err),
		)
	}
}

func describeProblem(us *UnexpectedState) string {
	desc := fmt.Sprintf("pipeline entered unexpected state %s, expected one of %s",
		us.CurrentState, strings.Join(us.ExpectedStates, ", "))
	if us.StageName != "" {
		desc += " in stage " + us.StageName
	}
	if us.ErrorMessage != "" {
		desc += ": " + us.ErrorMessage
	}
	return desc
}

func stringFromContext(wctx map[string]any, keys ...string) string {
	for _, key := range keys {
		if v, ok := wctx[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
