package rag

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/steward/pkg/vectorstore"
)

var ragTracer = otel.Tracer("steward.rag")

// Metadata keys StoreArtifact adds to every artifact.
const (
	MetaType     = "type"
	MetaCardID   = "card_id"
	MetaTitle    = "title"
	MetaStoredAt = "stored_at"
)

// Config configures a Store.
type Config struct {
	// Collection is the backend collection artifacts live in.
	// Default: artifacts.
	Collection string `koanf:"collection"`

	// DefaultTopK bounds QuerySimilar when the caller passes topK <= 0.
	// Default: 5.
	DefaultTopK int `koanf:"default_top_k"`
}

func (c *Config) applyDefaults() {
	if c.Collection == "" {
		c.Collection = "artifacts"
	}
	if c.DefaultTopK <= 0 {
		c.DefaultTopK = 5
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if err := vectorstore.ValidateCollectionName(c.Collection); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Store implements ArtifactStore over a vectorstore.Store.
type Store struct {
	config  Config
	backend vectorstore.Store
	logger  *zap.Logger

	storeCounter metric.Int64Counter
	queryCounter metric.Int64Counter
}

// NewStore creates an artifact store over the given backend.
func NewStore(config Config, backend vectorstore.Store, logger *zap.Logger) (*Store, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: backend store is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	s := &Store{
		config:  config,
		backend: backend,
		logger:  logger,
	}
	s.initMetrics()

	return s, nil
}

func (s *Store) initMetrics() {
	meter := otel.Meter("steward.rag")

	var err error
	s.storeCounter, err = meter.Int64Counter(
		"steward.rag.artifacts_stored_total",
		metric.WithDescription("Total number of artifacts stored"),
		metric.WithUnit("{artifact}"),
	)
	if err != nil {
		s.logger.Warn("failed to create store counter", zap.Error(err))
	}

	s.queryCounter, err = meter.Int64Counter(
		"steward.rag.queries_total",
		metric.WithDescription("Total number of similarity queries"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		s.logger.Warn("failed to create query counter", zap.Error(err))
	}
}

// StoreArtifact stores one artifact and returns its generated id. The
// caller's metadata map is copied, never mutated.
func (s *Store) StoreArtifact(ctx context.Context, artifactType, cardID, title, content string, metadata map[string]string) (string, error) {
	ctx, span := ragTracer.Start(ctx, "rag.store_artifact")
	defer span.End()

	span.SetAttributes(
		attribute.String("artifact.type", artifactType),
		attribute.String("card.id", cardID),
	)

	if artifactType == "" {
		return "", fmt.Errorf("%w: artifact type is required", ErrInvalidInput)
	}
	if content == "" {
		return "", fmt.Errorf("%w: content is required", ErrInvalidInput)
	}

	enriched := make(map[string]string, len(metadata)+4)
	for k, v := range metadata {
		enriched[k] = v
	}
	enriched[MetaType] = artifactType
	enriched[MetaCardID] = cardID
	enriched[MetaTitle] = title
	enriched[MetaStoredAt] = time.Now().UTC().Format(time.RFC3339)

	artifactID := uuid.New().String()
	doc := vectorstore.Document{
		ID:       artifactID,
		Content:  content,
		Metadata: enriched,
	}

	if err := s.backend.Add(ctx, s.config.Collection, []vectorstore.Document{doc}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("failed to store artifact: %w", err)
	}

	if s.storeCounter != nil {
		s.storeCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("artifact.type", artifactType),
		))
	}

	s.logger.Debug("stored artifact",
		zap.String("artifact_id", artifactID),
		zap.String("artifact_type", artifactType),
		zap.String("card_id", cardID),
	)

	span.SetStatus(codes.Ok, "")
	return artifactID, nil
}

// QuerySimilar returns up to topK artifacts closest to queryText. When
// more than one artifact type is named the per-type results are merged
// and re-ranked by score. A failing backend or a collection that does
// not exist yet yields an empty result so recovery can continue without
// historical context.
func (s *Store) QuerySimilar(ctx context.Context, queryText string, artifactTypes []string, topK int) ([]SimilarArtifact, error) {
	ctx, span := ragTracer.Start(ctx, "rag.query_similar")
	defer span.End()

	if queryText == "" {
		return nil, fmt.Errorf("%w: query text is required", ErrInvalidInput)
	}
	if topK <= 0 {
		topK = s.config.DefaultTopK
	}

	span.SetAttributes(
		attribute.Int("top_k", topK),
		attribute.StringSlice("artifact.types", artifactTypes),
	)

	filters := make([]map[string]string, 0, len(artifactTypes))
	if len(artifactTypes) == 0 {
		filters = append(filters, nil)
	} else {
		for _, t := range artifactTypes {
			filters = append(filters, map[string]string{MetaType: t})
		}
	}

	var merged []SimilarArtifact
	for _, filter := range filters {
		results, err := s.backend.Query(ctx, s.config.Collection, queryText, topK, filter)
		if err != nil {
			if errors.Is(err, vectorstore.ErrNotFound) {
				s.logger.Debug("artifact collection does not exist yet",
					zap.String("collection", s.config.Collection))
				continue
			}
			s.logger.Warn("similarity query failed, continuing without history",
				zap.String("collection", s.config.Collection),
				zap.Error(err),
			)
			continue
		}

		for _, r := range results {
			merged = append(merged, SimilarArtifact{
				ArtifactID: r.ID,
				Content:    r.Content,
				Metadata:   r.Metadata,
				Score:      r.Score,
			})
		}
	}

	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if len(merged) > topK {
		merged = merged[:topK]
	}

	if s.queryCounter != nil {
		s.queryCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.Int("result_count", len(merged)),
		))
	}

	span.SetAttributes(attribute.Int("result_count", len(merged)))
	span.SetStatus(codes.Ok, "")
	return merged, nil
}
