package rag_test

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/steward/pkg/rag"
	"github.com/fyrsmithlabs/steward/pkg/vectorstore"
)

// stubEmbedder returns hand-picked unit vectors for registered texts and
// a deterministic fallback for everything else, so ranking assertions
// are stable.
type stubEmbedder struct {
	vectors map[string][]float32
}

func newStubEmbedder() *stubEmbedder {
	return &stubEmbedder{vectors: make(map[string][]float32)}
}

func (e *stubEmbedder) register(text string, vec []float32) {
	e.vectors[text] = normalize(vec)
}

func (e *stubEmbedder) embed(text string) []float32 {
	if vec, ok := e.vectors[text]; ok {
		return vec
	}
	h := fnv.New32a()
	h.Write([]byte(text))
	sum := h.Sum32()
	return normalize([]float32{
		float32(sum%101) + 1,
		float32(sum%53) + 1,
		float32(sum%29) + 1,
	})
}

func (e *stubEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.embed(t)
	}
	return out, nil
}

func (e *stubEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.embed(text), nil
}

func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := float32(math.Sqrt(sum))
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = v / norm
	}
	return out
}

// failingStore simulates an unreachable backend.
type failingStore struct{}

func (f *failingStore) Add(context.Context, string, []vectorstore.Document) error {
	return errors.New("backend down")
}

func (f *failingStore) Query(context.Context, string, string, int, map[string]string) ([]vectorstore.QueryResult, error) {
	return nil, errors.New("backend down")
}

func (f *failingStore) Count(context.Context, string) (int, error) {
	return 0, errors.New("backend down")
}

func (f *failingStore) Close() error { return nil }

func newTestStore(t *testing.T, embedder *stubEmbedder, cfg rag.Config) *rag.Store {
	t.Helper()

	backend, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{InMemory: true}, embedder, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = backend.Close() })

	store, err := rag.NewStore(cfg, backend, zap.NewNop())
	require.NoError(t, err)
	return store
}

func TestNewStore_RequiresBackend(t *testing.T) {
	_, err := rag.NewStore(rag.Config{}, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, rag.ErrInvalidConfig)
}

func TestNewStore_InvalidCollection(t *testing.T) {
	_, err := rag.NewStore(rag.Config{Collection: "Not Valid"}, &failingStore{}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, rag.ErrInvalidConfig)
}

func TestStore_StoreArtifact(t *testing.T) {
	embedder := newStubEmbedder()
	embedder.register("restart the flaky runner", []float32{1, 0, 0})
	embedder.register("flaky runner", []float32{0.9, 0.1, 0})
	store := newTestStore(t, embedder, rag.Config{})

	callerMeta := map[string]string{"severity": "high"}
	id, err := store.StoreArtifact(context.Background(), "solution", "card-42", "runner fix",
		"restart the flaky runner", callerMeta)

	require.NoError(t, err)
	_, parseErr := uuid.Parse(id)
	assert.NoError(t, parseErr, "artifact id should be a uuid")

	// Caller map is copied, never mutated.
	assert.Equal(t, map[string]string{"severity": "high"}, callerMeta)

	results, err := store.QuerySimilar(context.Background(), "flaky runner", nil, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)

	got := results[0]
	assert.Equal(t, id, got.ArtifactID)
	assert.Equal(t, "restart the flaky runner", got.Content)
	assert.Equal(t, "solution", got.Metadata[rag.MetaType])
	assert.Equal(t, "card-42", got.Metadata[rag.MetaCardID])
	assert.Equal(t, "runner fix", got.Metadata[rag.MetaTitle])
	assert.NotEmpty(t, got.Metadata[rag.MetaStoredAt])
	assert.Equal(t, "high", got.Metadata["severity"])
}

func TestStore_StoreArtifact_Validation(t *testing.T) {
	store := newTestStore(t, newStubEmbedder(), rag.Config{})

	_, err := store.StoreArtifact(context.Background(), "", "card-1", "t", "content", nil)
	assert.ErrorIs(t, err, rag.ErrInvalidInput)

	_, err = store.StoreArtifact(context.Background(), "solution", "card-1", "t", "", nil)
	assert.ErrorIs(t, err, rag.ErrInvalidInput)
}

func TestStore_StoreArtifact_BackendFailure(t *testing.T) {
	store, err := rag.NewStore(rag.Config{}, &failingStore{}, zap.NewNop())
	require.NoError(t, err)

	_, err = store.StoreArtifact(context.Background(), "solution", "card-1", "t", "content", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to store artifact")
}

func TestStore_QuerySimilar_FiltersByType(t *testing.T) {
	embedder := newStubEmbedder()
	embedder.register("solution body", []float32{1, 0, 0})
	embedder.register("failure body", []float32{0.95, 0.05, 0})
	embedder.register("similar incident", []float32{0.9, 0.1, 0})
	store := newTestStore(t, embedder, rag.Config{})

	ctx := context.Background()
	solID, err := store.StoreArtifact(ctx, "solution", "card-1", "s", "solution body", nil)
	require.NoError(t, err)
	_, err = store.StoreArtifact(ctx, "failure", "card-1", "f", "failure body", nil)
	require.NoError(t, err)

	results, err := store.QuerySimilar(ctx, "similar incident", []string{"solution"}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, solID, results[0].ArtifactID)
}

func TestStore_QuerySimilar_MergesTypesRankedByScore(t *testing.T) {
	embedder := newStubEmbedder()
	embedder.register("solution body", []float32{0.7, 0.3, 0})
	embedder.register("failure body", []float32{0.99, 0.01, 0})
	embedder.register("similar incident", []float32{1, 0, 0})
	store := newTestStore(t, embedder, rag.Config{})

	ctx := context.Background()
	_, err := store.StoreArtifact(ctx, "solution", "card-1", "s", "solution body", nil)
	require.NoError(t, err)
	failID, err := store.StoreArtifact(ctx, "failure", "card-1", "f", "failure body", nil)
	require.NoError(t, err)

	results, err := store.QuerySimilar(ctx, "similar incident", []string{"solution", "failure"}, 5)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// The failure artifact is closer to the query and must rank first.
	assert.Equal(t, failID, results[0].ArtifactID)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestStore_QuerySimilar_TruncatesToTopK(t *testing.T) {
	embedder := newStubEmbedder()
	store := newTestStore(t, embedder, rag.Config{})

	ctx := context.Background()
	for _, content := range []string{"alpha", "beta", "gamma"} {
		_, err := store.StoreArtifact(ctx, "solution", "card-1", "t", content, nil)
		require.NoError(t, err)
	}

	results, err := store.QuerySimilar(ctx, "alpha", []string{"solution"}, 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestStore_QuerySimilar_DefaultTopK(t *testing.T) {
	embedder := newStubEmbedder()
	store := newTestStore(t, embedder, rag.Config{DefaultTopK: 2})

	ctx := context.Background()
	for _, content := range []string{"alpha", "beta", "gamma"} {
		_, err := store.StoreArtifact(ctx, "solution", "card-1", "t", content, nil)
		require.NoError(t, err)
	}

	results, err := store.QuerySimilar(ctx, "alpha", nil, 0)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestStore_QuerySimilar_EmptyCollection(t *testing.T) {
	store := newTestStore(t, newStubEmbedder(), rag.Config{})

	results, err := store.QuerySimilar(context.Background(), "anything", []string{"solution"}, 5)

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStore_QuerySimilar_BackendFailureDegrades(t *testing.T) {
	store, err := rag.NewStore(rag.Config{}, &failingStore{}, zap.NewNop())
	require.NoError(t, err)

	results, err := store.QuerySimilar(context.Background(), "anything", []string{"solution"}, 5)

	require.NoError(t, err, "backend failure must degrade, not surface")
	assert.Empty(t, results)
}

func TestStore_QuerySimilar_EmptyQueryText(t *testing.T) {
	store := newTestStore(t, newStubEmbedder(), rag.Config{})

	_, err := store.QuerySimilar(context.Background(), "", nil, 5)

	require.Error(t, err)
	assert.ErrorIs(t, err, rag.ErrInvalidInput)
}

func TestStore_ImplementsArtifactStore(t *testing.T) {
	var _ rag.ArtifactStore = (*rag.Store)(nil)
}
