package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// qdrantTracer for OpenTelemetry instrumentation.
var qdrantTracer = otel.Tracer("steward.vectorstore.qdrant")

// QdrantConfig holds configuration for the Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	// Default: "localhost"
	Host string

	// Port is the Qdrant gRPC port (NOT the HTTP REST port).
	// Default: 6334 (gRPC), not 6333 (HTTP)
	Port int

	// VectorSize is the dimensionality of embeddings.
	// MUST match Embedder output dimensions.
	VectorSize uint64

	// Distance is the similarity metric for vector search.
	// Options: Cosine (default), Euclid, Dot
	Distance qdrant.Distance

	// UseTLS enables TLS encryption for the gRPC connection.
	UseTLS bool

	// MaxRetries is the maximum number of retry attempts for transient failures.
	// Default: 3
	MaxRetries int

	// RetryBackoff is the initial backoff duration for retries.
	// Doubles on each retry.
	// Default: 1 second
	RetryBackoff time.Duration

	// MaxMessageSize is the maximum gRPC message size in bytes.
	// Default: 50MB (to handle large artifact payloads)
	MaxMessageSize int

	// CircuitBreakerThreshold is the number of failures before opening circuit.
	// Default: 5
	CircuitBreakerThreshold int
}

// applyDefaults sets default values for unset fields.
func (c *QdrantConfig) applyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.Distance == 0 {
		c.Distance = qdrant.Distance_Cosine
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024 // 50MB
	}
	if c.CircuitBreakerThreshold == 0 {
		c.CircuitBreakerThreshold = 5
	}
}

// validate validates the configuration.
func (c QdrantConfig) validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.VectorSize == 0 {
		return fmt.Errorf("%w: vector size required", ErrInvalidConfig)
	}
	return nil
}

// IsTransientError checks if an error is transient (should retry).
// Returns true for network timeouts and temporary unavailability,
// false for invalid arguments, not found, permission denied.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}

	st, ok := status.FromError(err)
	if !ok {
		return false
	}

	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	default:
		return false
	}
}

// QdrantStore implements Store using Qdrant's native gRPC client.
//
// The gRPC transport (port 6334) bypasses Qdrant's HTTP layer and its 256kB
// payload limit, so large recovery artifacts index without 413 errors.
type QdrantStore struct {
	client   *qdrant.Client
	embedder Embedder
	config   QdrantConfig
	logger   *zap.Logger

	// collections caches which collections are known to exist
	collections sync.Map

	// circuitBreaker tracks failures across operations
	circuitBreaker struct {
		failures int
		lastFail time.Time
		mu       sync.Mutex
	}
}

// NewQdrantStore creates a QdrantStore with the given configuration.
//
// The constructor validates configuration, creates the gRPC client, and
// performs a health check before returning a ready-to-use store.
func NewQdrantStore(config QdrantConfig, embedder Embedder, logger *zap.Logger) (*QdrantStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	config.applyDefaults()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if !config.UseTLS {
		logger.Warn("qdrant gRPC using plaintext (TLS disabled), insecure for production")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		UseTLS: config.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	store := &QdrantStore{
		client:   client,
		embedder: embedder,
		config:   config,
		logger:   logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: health check failed: %v", ErrConnectionFailed, err)
	}

	logger.Info("qdrant store initialized",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.Uint64("vector_size", config.VectorSize),
	)

	return store, nil
}

// Close closes the Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// retryOperation retries an operation with exponential backoff.
func (s *QdrantStore) retryOperation(ctx context.Context, operationName string, operation func() error) error {
	backoff := s.config.RetryBackoff

	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		err := operation()
		if err == nil {
			s.resetCircuitBreaker()
			return nil
		}

		if s.isCircuitOpen() {
			return fmt.Errorf("%s: circuit breaker open", operationName)
		}

		if !IsTransientError(err) {
			return fmt.Errorf("%s failed (permanent): %w", operationName, err)
		}

		s.recordFailure()

		if attempt == s.config.MaxRetries {
			return fmt.Errorf("%s failed after %d retries: %w", operationName, s.config.MaxRetries, err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled: %w", operationName, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return nil
}

func (s *QdrantStore) recordFailure() {
	s.circuitBreaker.mu.Lock()
	defer s.circuitBreaker.mu.Unlock()
	s.circuitBreaker.failures++
	s.circuitBreaker.lastFail = time.Now()
}

func (s *QdrantStore) resetCircuitBreaker() {
	s.circuitBreaker.mu.Lock()
	defer s.circuitBreaker.mu.Unlock()
	s.circuitBreaker.failures = 0
}

func (s *QdrantStore) isCircuitOpen() bool {
	s.circuitBreaker.mu.Lock()
	defer s.circuitBreaker.mu.Unlock()

	if s.circuitBreaker.failures >= s.config.CircuitBreakerThreshold {
		// Allow retry after 30 seconds
		if time.Since(s.circuitBreaker.lastFail) > 30*time.Second {
			s.circuitBreaker.failures = 0
			return false
		}
		return true
	}
	return false
}

// ensureCollection creates the collection if it does not exist yet.
func (s *QdrantStore) ensureCollection(ctx context.Context, collection string) error {
	if _, ok := s.collections.Load(collection); ok {
		return nil
	}

	var exists bool
	err := s.retryOperation(ctx, "collection_exists", func() error {
		info, err := s.client.GetCollectionInfo(ctx, collection)
		if err != nil {
			if st, ok := status.FromError(err); ok && st.Code() == grpccodes.NotFound {
				exists = false
				return nil
			}
			return err
		}
		exists = info != nil
		return nil
	})
	if err != nil {
		return err
	}

	if !exists {
		err := s.retryOperation(ctx, "create_collection", func() error {
			return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
				CollectionName: collection,
				VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
					Size:     s.config.VectorSize,
					Distance: s.config.Distance,
				}),
			})
		})
		if err != nil {
			return fmt.Errorf("creating collection %s: %w", collection, err)
		}
		s.logger.Info("created qdrant collection",
			zap.String("collection", collection),
			zap.Uint64("vector_size", s.config.VectorSize),
		)
	}

	s.collections.Store(collection, true)
	return nil
}

// Add embeds and stores documents in the named collection.
func (s *QdrantStore) Add(ctx context.Context, collection string, docs []Document) (err error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Add")
	defer span.End()
	start := time.Now()
	defer func() { observeOperation("qdrant", "add", start, err) }()

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

	if err = s.ensureCollection(ctx, collection); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}

	embeddings, embErr := s.embedder.EmbedDocuments(ctx, texts)
	if embErr != nil {
		span.RecordError(embErr)
		err = fmt.Errorf("%w: %v", ErrEmbeddingFailed, embErr)
		return err
	}

	points := make([]*qdrant.PointStruct, len(docs))
	for i, doc := range docs {
		id := doc.ID
		if id == "" {
			id = uuid.NewString()
		}

		// Preserve the document ID in the payload; the Qdrant point ID must
		// be a UUID, which the document ID may not be.
		payload := map[string]*qdrant.Value{
			"content": {Kind: &qdrant.Value_StringValue{StringValue: doc.Content}},
			"id":      {Kind: &qdrant.Value_StringValue{StringValue: id}},
		}
		for k, v := range doc.Metadata {
			payload[k] = &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: v}}
		}

		var pointID *qdrant.PointId
		if _, parseErr := uuid.Parse(id); parseErr == nil {
			pointID = qdrant.NewIDUUID(id)
		} else {
			pointID = qdrant.NewIDUUID(uuid.NewString())
		}

		points[i] = &qdrant.PointStruct{
			Id:      pointID,
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: payload,
		}
	}

	err = s.retryOperation(ctx, "upsert", func() error {
		_, upsertErr := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Points:         points,
		})
		return upsertErr
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upserting points to collection %s: %w", collection, err)
	}

	DocumentsStored.WithLabelValues("qdrant").Add(float64(len(docs)))
	span.SetStatus(codes.Ok, "success")
	return nil
}

// Query performs similarity search in the named collection.
func (s *QdrantStore) Query(ctx context.Context, collection, text string, topK int, filter map[string]string) (results []QueryResult, err error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Query")
	defer span.End()
	start := time.Now()
	defer func() { observeOperation("qdrant", "query", start, err) }()

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

	queryVector, embErr := s.embedder.EmbedQuery(ctx, text)
	if embErr != nil {
		span.RecordError(embErr)
		err = fmt.Errorf("%w: %v", ErrEmbeddingFailed, embErr)
		return nil, err
	}

	var qdrantFilter *qdrant.Filter
	if len(filter) > 0 {
		conditions := make([]*qdrant.Condition, 0, len(filter))
		for key, value := range filter {
			conditions = append(conditions, &qdrant.Condition{
				ConditionOneOf: &qdrant.Condition_Field{
					Field: &qdrant.FieldCondition{
						Key: key,
						Match: &qdrant.Match{
							MatchValue: &qdrant.Match_Keyword{Keyword: value},
						},
					},
				},
			})
		}
		qdrantFilter = &qdrant.Filter{Must: conditions}
	}

	runQuery := func(name string, params *qdrant.SearchParams) ([]*qdrant.ScoredPoint, error) {
		var scored []*qdrant.ScoredPoint
		runErr := s.retryOperation(ctx, name, func() error {
			res, queryErr := s.client.Query(ctx, &qdrant.QueryPoints{
				CollectionName: collection,
				Query:          qdrant.NewQuery(queryVector...),
				Limit:          qdrant.PtrOf(uint64(topK)),
				WithPayload:    qdrant.NewWithPayload(true),
				Filter:         qdrantFilter,
				Params:         params,
			})
			if queryErr != nil {
				return queryErr
			}
			scored = res
			return nil
		})
		return scored, runErr
	}

	scored, err := runQuery("query", nil)
	if err == nil && len(scored) == 0 {
		// Collections below the HNSW build threshold (~10 vectors) can
		// report no hits even though points exist. Retry once with
		// brute-force scoring.
		span.SetAttributes(attribute.Bool("exact_retry", true))
		scored, err = runQuery("query_exact", &qdrant.SearchParams{Exact: qdrant.PtrOf(true)})
	}
	if err != nil {
		if st, ok := status.FromError(errors.Unwrap(err)); ok && st.Code() == grpccodes.NotFound {
			err = ErrNotFound
			return nil, err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		err = fmt.Errorf("querying collection %s: %w", collection, err)
		return nil, err
	}

	results = make([]QueryResult, len(scored))
	for i, point := range scored {
		result := QueryResult{Score: point.Score}
		result.Metadata = make(map[string]string)
		for k, v := range point.Payload {
			sv, ok := v.Kind.(*qdrant.Value_StringValue)
			if !ok {
				continue
			}
			switch k {
			case "content":
				result.Content = sv.StringValue
			case "id":
				result.ID = sv.StringValue
			default:
				result.Metadata[k] = sv.StringValue
			}
		}
		results[i] = result
	}

	span.SetAttributes(attribute.Int("results_count", len(results)))
	span.SetStatus(codes.Ok, "success")
	return results, nil
}

// Count returns the number of documents in the named collection.
func (s *QdrantStore) Count(ctx context.Context, collection string) (n int, err error) {
	ctx, span := qdrantTracer.Start(ctx, "QdrantStore.Count")
	defer span.End()
	start := time.Now()
	defer func() { observeOperation("qdrant", "count", start, err) }()

	span.SetAttributes(attribute.String("collection", collection))

	if err = ValidateCollectionName(collection); err != nil {
		return 0, err
	}

	err = s.retryOperation(ctx, "count", func() error {
		info, infoErr := s.client.GetCollectionInfo(ctx, collection)
		if infoErr != nil {
			if st, ok := status.FromError(infoErr); ok && st.Code() == grpccodes.NotFound {
				n = 0
				return nil
			}
			return infoErr
		}
		if info.PointsCount != nil {
			n = int(*info.PointsCount)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("counting collection %s: %w", collection, err)
	}

	span.SetAttributes(attribute.Int("count", n))
	return n, nil
}
