package learning

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/steward/pkg/rag"
)

// artifactTypeSolution is the artifact type solutions are stored under
// in the similarity store.
const artifactTypeSolution = "learned_solution"

// SimilarityStore is the slice of the artifact store the repository
// uses. *rag.Store satisfies it.
type SimilarityStore interface {
	StoreArtifact(ctx context.Context, artifactType, cardID, title, content string, metadata map[string]string) (string, error)
	QuerySimilar(ctx context.Context, queryText string, artifactTypes []string, topK int) ([]rag.SimilarArtifact, error)
}

// RepositoryConfig configures a Repository.
type RepositoryConfig struct {
	// DefaultTopK bounds FindSimilarSolutions when the caller passes a
	// non-positive topK. Defaults to 3.
	DefaultTopK int `koanf:"default_top_k"`
}

func (c *RepositoryConfig) applyDefaults() {
	if c.DefaultTopK == 0 {
		c.DefaultTopK = 3
	}
}

// Validate checks the configuration.
func (c *RepositoryConfig) Validate() error {
	if c.DefaultTopK < 0 {
		return fmt.Errorf("%w: default_top_k cannot be negative", ErrInvalidConfig)
	}
	return nil
}

// Repository keeps learned solutions in memory and writes them through
// to a similarity store so later runs can find them semantically. The
// store is optional; without one the repository is cache-only.
type Repository struct {
	config RepositoryConfig
	store  SimilarityStore
	logger *zap.Logger

	mu        sync.RWMutex
	solutions map[string]*LearnedSolution
}

// NewRepository creates a repository. A nil store disables similarity
// search and write-through.
func NewRepository(cfg RepositoryConfig, store SimilarityStore, logger *zap.Logger) (*Repository, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{
		config:    cfg,
		store:     store,
		logger:    logger,
		solutions: make(map[string]*LearnedSolution),
	}, nil
}

// StoreSolution caches a solution and writes it through to the
// similarity store. Write-through failures are logged and swallowed;
// the cache is authoritative for this process.
func (r *Repository) StoreSolution(ctx context.Context, s *LearnedSolution) error {
	if err := validateSolution(s); err != nil {
		return err
	}

	r.mu.Lock()
	r.solutions[s.SolutionID] = s.Clone()
	r.mu.Unlock()

	r.writeThrough(ctx, s)

	r.logger.Info("solution stored",
		zap.String("solution_id", s.SolutionID),
		zap.String("strategy", string(s.Strategy)),
		zap.Int("steps", len(s.WorkflowSteps)),
	)
	return nil
}

// UpdateSolution replaces a cached solution, typically after
// RecordApplication, and writes the new version through.
func (r *Repository) UpdateSolution(ctx context.Context, s *LearnedSolution) error {
	if err := validateSolution(s); err != nil {
		return err
	}

	r.mu.Lock()
	_, existed := r.solutions[s.SolutionID]
	r.solutions[s.SolutionID] = s.Clone()
	r.mu.Unlock()

	if !existed {
		r.logger.Debug("updating solution that was not cached",
			zap.String("solution_id", s.SolutionID))
	}

	r.writeThrough(ctx, s)
	return nil
}

// FindSimilarSolutions returns previously learned solutions similar to
// the unexpected state, best first. It never returns an error: without
// a store, or when the store fails, the result is empty.
func (r *Repository) FindSimilarSolutions(ctx context.Context, us *UnexpectedState, topK int) []*LearnedSolution {
	if us == nil || r.store == nil {
		return nil
	}
	if topK <= 0 {
		topK = r.config.DefaultTopK
	}

	hits, err := r.store.QuerySimilar(ctx, similarityQuery(us), []string{artifactTypeSolution}, topK)
	if err != nil {
		r.logger.Warn("similarity search failed", zap.Error(err))
		return nil
	}

	out := make([]*LearnedSolution, 0, len(hits))
	seen := make(map[string]bool, len(hits))
	for _, hit := range hits {
		raw, ok := hit.Metadata["solution_json"]
		if !ok {
			r.logger.Debug("skipping hit without solution payload",
				zap.String("artifact_id", hit.ArtifactID))
			continue
		}

		var solution LearnedSolution
		if err := json.Unmarshal([]byte(raw), &solution); err != nil {
			r.logger.Debug("skipping undecodable solution payload",
				zap.String("artifact_id", hit.ArtifactID),
				zap.Error(err),
			)
			continue
		}
		if seen[solution.SolutionID] {
			continue
		}
		seen[solution.SolutionID] = true

		// The cache has the freshest counters for solutions learned in
		// this process.
		if cached, ok := r.GetSolution(solution.SolutionID); ok {
			out = append(out, cached)
			continue
		}
		out = append(out, &solution)
	}
	return out
}

// GetSolution returns a copy of a cached solution.
func (r *Repository) GetSolution(solutionID string) (*LearnedSolution, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.solutions[solutionID]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// GetAllSolutions returns copies of all cached solutions, ordered by
// solution id.
func (r *Repository) GetAllSolutions() []*LearnedSolution {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*LearnedSolution, 0, len(r.solutions))
	for _, s := range r.solutions {
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SolutionID < out[j].SolutionID })
	return out
}

// Stats summarizes the cached solutions.
type Stats struct {
	TotalSolutions int
	HumanValidated int
	ByStrategy     map[Strategy]int
	AvgSuccessRate float64
}

// Statistics computes summary statistics over the cache.
func (r *Repository) Statistics() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{ByStrategy: make(map[Strategy]int)}
	var rateSum float64
	for _, s := range r.solutions {
		stats.TotalSolutions++
		if s.HumanValidated {
			stats.HumanValidated++
		}
		stats.ByStrategy[s.Strategy]++
		rateSum += s.SuccessRate
	}
	if stats.TotalSolutions > 0 {
		stats.AvgSuccessRate = rateSum / float64(stats.TotalSolutions)
	}
	return stats
}

func (r *Repository) writeThrough(ctx context.Context, s *LearnedSolution) {
	if r.store == nil {
		return
	}

	payload, err := json.Marshal(s)
	if err != nil {
		r.logger.Warn("failed to encode solution for similarity store",
			zap.String("solution_id", s.SolutionID),
			zap.Error(err),
		)
		return
	}

	metadata := map[string]string{
		"solution_id":   s.SolutionID,
		"strategy":      string(s.Strategy),
		"solution_json": string(payload),
	}

	cardID := s.Metadata["card_id"]
	if _, err := r.store.StoreArtifact(ctx, artifactTypeSolution, cardID,
		solutionTitle(s), solutionText(s), metadata); err != nil {
		r.logger.Warn("failed to write solution to similarity store",
			zap.String("solution_id", s.SolutionID),
			zap.Error(err),
		)
	}
}

func validateSolution(s *LearnedSolution) error {
	if s == nil {
		return fmt.Errorf("%w: solution is nil", ErrInvalidSolution)
	}
	if s.SolutionID == "" {
		return fmt.Errorf("%w: solution id is required", ErrInvalidSolution)
	}
	if len(s.WorkflowSteps) == 0 {
		return fmt.Errorf("%w: at least one workflow step is required", ErrInvalidSolution)
	}
	return nil
}

func solutionTitle(s *LearnedSolution) string {
	title := s.ProblemDescription
	if title == "" {
		title = "solution " + s.SolutionID
	}
	if len(title) > 80 {
		title = title[:80]
	}
	return title
}

// solutionText renders the searchable body the solution is embedded
// under.
func solutionText(s *LearnedSolution) string {
	var b strings.Builder
	b.WriteString(s.ProblemDescription)
	b.WriteString("\n\n")
	b.WriteString(s.SolutionDescription)
	b.WriteString("\n\nSteps:\n")
	for _, step := range s.WorkflowSteps {
		b.WriteString("- ")
		b.WriteString(step)
		b.WriteString("\n")
	}
	return b.String()
}

// similarityQuery renders the searchable essence of an unexpected
// state.
func similarityQuery(us *UnexpectedState) string {
	parts := []string{"pipeline state " + us.CurrentState}
	if us.StageName != "" {
		parts = append(parts, "stage "+us.StageName)
	}
	if us.PreviousState != "" {
		parts = append(parts, "after "+us.PreviousState)
	}
	if us.ErrorMessage != "" {
		parts = append(parts, us.ErrorMessage)
	}
	return strings.Join(parts, ": ")
}
