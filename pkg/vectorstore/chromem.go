package vectorstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// chromemTracer for OpenTelemetry instrumentation.
var chromemTracer = otel.Tracer("steward.vectorstore.chromem")

// ChromemConfig holds configuration for the chromem-go embedded vector database.
type ChromemConfig struct {
	// Path is the directory for persistent storage.
	// Default: "~/.config/steward/vectorstore"
	Path string

	// InMemory disables persistence entirely. Path is ignored.
	InMemory bool

	// Compress enables gzip compression for stored data.
	Compress bool
}

// applyDefaults sets default values for unset fields.
func (c *ChromemConfig) applyDefaults() {
	if !c.InMemory && c.Path == "" {
		c.Path = "~/.config/steward/vectorstore"
	}
}

// ChromemStore implements Store using chromem-go.
//
// chromem-go is an embeddable vector database with zero third-party
// dependencies. It provides in-memory storage with optional persistence to
// gob files, with no external database service needed and no CGO.
type ChromemStore struct {
	db       *chromem.DB
	embedder Embedder
	config   ChromemConfig
	logger   *zap.Logger
}

// NewChromemStore creates a ChromemStore with the given configuration.
func NewChromemStore(config ChromemConfig, embedder Embedder, logger *zap.Logger) (*ChromemStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	config.applyDefaults()

	var db *chromem.DB
	if config.InMemory {
		db = chromem.NewDB()
	} else {
		expandedPath, err := expandHomePath(config.Path)
		if err != nil {
			return nil, fmt.Errorf("expanding path: %w", err)
		}
		if err := os.MkdirAll(expandedPath, 0755); err != nil {
			return nil, fmt.Errorf("creating directory %s: %w", expandedPath, err)
		}
		db, err = chromem.NewPersistentDB(expandedPath, config.Compress)
		if err != nil {
			return nil, fmt.Errorf("creating chromem DB: %w", err)
		}
		config.Path = expandedPath
	}

	store := &ChromemStore{
		db:       db,
		embedder: embedder,
		config:   config,
		logger:   logger,
	}

	logger.Info("chromem store initialized",
		zap.Bool("in_memory", config.InMemory),
		zap.String("path", config.Path),
		zap.Bool("compress", config.Compress),
	)

	return store, nil
}

// expandHomePath expands ~ to the home directory.
func expandHomePath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// embeddingFunc adapts the Embedder interface to chromem.EmbeddingFunc.
func (s *ChromemStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	}
}

// Add embeds and stores documents in the named collection.
func (s *ChromemStore) Add(ctx context.Context, collection string, docs []Document) (err error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Add")
	defer span.End()
	start := time.Now()
	defer func() { observeOperation("chromem", "add", start, err) }()

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("document_count", len(docs)),
	)

	if err = ValidateCollectionName(collection); err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}

	col, err := s.db.GetOrCreateCollection(collection, nil, s.embeddingFunc())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("getting/creating collection %s: %w", collection, err)
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}

	// Generate embeddings in batch
	embeddings, embErr := s.embedder.EmbedDocuments(ctx, texts)
	if embErr != nil {
		span.RecordError(embErr)
		err = fmt.Errorf("%w: %v", ErrEmbeddingFailed, embErr)
		return err
	}

	chromemDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		id := doc.ID
		if id == "" {
			id = uuid.NewString()
		}
		chromemDocs[i] = chromem.Document{
			ID:        id,
			Content:   doc.Content,
			Metadata:  doc.Metadata,
			Embedding: embeddings[i],
		}
	}

	// Concurrency of 1 since embeddings are already computed
	if err = col.AddDocuments(ctx, chromemDocs, 1); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("adding documents to %s: %w", collection, err)
	}

	DocumentsStored.WithLabelValues("chromem").Add(float64(len(docs)))
	span.SetStatus(codes.Ok, "success")

	s.logger.Debug("added documents to chromem",
		zap.String("collection", collection),
		zap.Int("count", len(docs)),
	)

	return nil
}

// Query performs similarity search in the named collection.
func (s *ChromemStore) Query(ctx context.Context, collection, text string, topK int, filter map[string]string) (results []QueryResult, err error) {
	ctx, span := chromemTracer.Start(ctx, "ChromemStore.Query")
	defer span.End()
	start := time.Now()
	defer func() { observeOperation("chromem", "query", start, err) }()

	span.SetAttributes(
		attribute.String("collection", collection),
		attribute.Int("top_k", topK),
	)

	if err = ValidateCollectionName(collection); err != nil {
		return nil, err
	}
	if topK <= 0 {
		err = fmt.Errorf("topK must be positive, got %d", topK)
		return nil, err
	}
	if text == "" {
		err = fmt.Errorf("query text cannot be empty")
		return nil, err
	}

	col := s.db.GetCollection(collection, s.embeddingFunc())
	if col == nil {
		span.SetStatus(codes.Error, "collection not found")
		err = ErrNotFound
		return nil, err
	}

	// chromem requires nResults <= document count
	docCount := col.Count()
	if docCount == 0 {
		return []QueryResult{}, nil
	}
	if topK > docCount {
		topK = docCount
	}

	raw, qErr := col.Query(ctx, text, topK, filter, nil)
	if qErr != nil {
		span.RecordError(qErr)
		span.SetStatus(codes.Error, qErr.Error())
		err = fmt.Errorf("querying collection %s: %w", collection, qErr)
		return nil, err
	}

	results = make([]QueryResult, len(raw))
	for i, r := range raw {
		results[i] = QueryResult{
			Document: Document{
				ID:       r.ID,
				Content:  r.Content,
				Metadata: r.Metadata,
			},
			Score: r.Similarity,
		}
	}

	span.SetAttributes(attribute.Int("results_count", len(results)))
	span.SetStatus(codes.Ok, "success")

	return results, nil
}

// Count returns the number of documents in the named collection.
// A collection that was never written counts as zero.
func (s *ChromemStore) Count(ctx context.Context, collection string) (n int, err error) {
	_, span := chromemTracer.Start(ctx, "ChromemStore.Count")
	defer span.End()
	start := time.Now()
	defer func() { observeOperation("chromem", "count", start, err) }()

	span.SetAttributes(attribute.String("collection", collection))

	if err = ValidateCollectionName(collection); err != nil {
		return 0, err
	}

	col := s.db.GetCollection(collection, s.embeddingFunc())
	if col == nil {
		return 0, nil
	}

	n = col.Count()
	span.SetAttributes(attribute.Int("count", n))
	return n, nil
}

// Close releases store resources. chromem-go persists on write, so Close is
// a no-op for this backend.
func (s *ChromemStore) Close() error {
	return nil
}
