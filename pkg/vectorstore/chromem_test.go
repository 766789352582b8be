package vectorstore_test

import (
	"context"
	"testing"

	"github.com/fyrsmithlabs/steward/pkg/vectorstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubEmbedder returns fixed unit vectors for registered texts and a
// deterministic fallback otherwise, so ranking in tests is hand-picked.
type stubEmbedder struct {
	vectors map[string][]float32
}

func newStubEmbedder() *stubEmbedder {
	return &stubEmbedder{vectors: make(map[string][]float32)}
}

func (e *stubEmbedder) register(text string, vec []float32) {
	e.vectors[text] = normalize(vec)
}

func (e *stubEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.embed(t)
	}
	return out, nil
}

func (e *stubEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embed(text), nil
}

func (e *stubEmbedder) embed(text string) []float32 {
	if v, ok := e.vectors[text]; ok {
		return v
	}
	// Deterministic fallback on text hash
	hash := 0
	for _, c := range text {
		hash = (hash*31 + int(c)) % 997
	}
	vec := []float32{float32(hash%13 + 1), float32(hash%7 + 1), float32(hash%3 + 1)}
	return normalize(vec)
}

func normalize(vec []float32) []float32 {
	var sumSq float32
	for _, v := range vec {
		sumSq += v * v
	}
	if sumSq == 0 {
		return vec
	}
	norm := sqrt32(sumSq)
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = v / norm
	}
	return out
}

func sqrt32(x float32) float32 {
	if x <= 0 {
		return 0
	}
	z := x / 2
	for i := 0; i < 12; i++ {
		z = (z + x/z) / 2
	}
	return z
}

func newInMemoryStore(t *testing.T) (*vectorstore.ChromemStore, *stubEmbedder) {
	t.Helper()

	embedder := newStubEmbedder()
	store, err := vectorstore.NewChromemStore(
		vectorstore.ChromemConfig{InMemory: true},
		embedder,
		zap.NewNop(),
	)
	require.NoError(t, err)
	return store, embedder
}

func TestValidateCollectionName(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantError bool
	}{
		{"valid simple", "solutions", false},
		{"valid with underscore", "recovery_artifacts", false},
		{"valid with digits", "cards_v2", false},
		{"empty name", "", true},
		{"uppercase", "Solutions", true},
		{"dash", "recovery-artifacts", true},
		{"space", "recovery artifacts", true},
		{"path traversal", "../etc", true},
		{"too long", "a123456789a123456789a123456789a123456789a123456789a123456789a1234", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := vectorstore.ValidateCollectionName(tt.input)
			if tt.wantError {
				require.Error(t, err)
				assert.ErrorIs(t, err, vectorstore.ErrInvalidCollectionName)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewChromemStore_RequiresEmbedder(t *testing.T) {
	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{InMemory: true}, nil, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, vectorstore.ErrInvalidConfig)
	assert.Nil(t, store)
}

func TestNewChromemStore_Persistent(t *testing.T) {
	embedder := newStubEmbedder()
	store, err := vectorstore.NewChromemStore(
		vectorstore.ChromemConfig{Path: t.TempDir()},
		embedder,
		zap.NewNop(),
	)
	require.NoError(t, err)
	defer store.Close()

	err = store.Add(context.Background(), "artifacts", []vectorstore.Document{
		{ID: "a1", Content: "persisted doc"},
	})
	require.NoError(t, err)

	n, err := store.Count(context.Background(), "artifacts")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestChromemStore_AddAndQuery(t *testing.T) {
	store, embedder := newInMemoryStore(t)
	ctx := context.Background()

	embedder.register("build failed with missing dependency", []float32{1, 0, 0})
	embedder.register("network timeout during fetch", []float32{0, 1, 0})
	embedder.register("dependency missing from build", []float32{0.95, 0.05, 0})

	err := store.Add(ctx, "solutions", []vectorstore.Document{
		{
			ID:       "sol-1",
			Content:  "build failed with missing dependency",
			Metadata: map[string]string{"issue_type": "BUILD_FAILURE"},
		},
		{
			ID:       "sol-2",
			Content:  "network timeout during fetch",
			Metadata: map[string]string{"issue_type": "TIMEOUT"},
		},
	})
	require.NoError(t, err)

	results, err := store.Query(ctx, "solutions", "dependency missing from build", 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Nearest first
	assert.Equal(t, "sol-1", results[0].ID)
	assert.Equal(t, "build failed with missing dependency", results[0].Content)
	assert.Equal(t, "BUILD_FAILURE", results[0].Metadata["issue_type"])
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestChromemStore_QueryMissingCollection(t *testing.T) {
	store, _ := newInMemoryStore(t)

	results, err := store.Query(context.Background(), "nope", "anything", 3, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, vectorstore.ErrNotFound)
	assert.Nil(t, results)
}

func TestChromemStore_QueryValidation(t *testing.T) {
	store, _ := newInMemoryStore(t)
	ctx := context.Background()

	_, err := store.Query(ctx, "Bad-Name", "q", 3, nil)
	assert.ErrorIs(t, err, vectorstore.ErrInvalidCollectionName)

	_, err = store.Query(ctx, "ok", "q", 0, nil)
	assert.Error(t, err)

	_, err = store.Query(ctx, "ok", "", 3, nil)
	assert.Error(t, err)
}

func TestChromemStore_QueryCapsTopK(t *testing.T) {
	store, _ := newInMemoryStore(t)
	ctx := context.Background()

	err := store.Add(ctx, "small", []vectorstore.Document{
		{ID: "only", Content: "single entry"},
	})
	require.NoError(t, err)

	// topK larger than the collection must not error
	results, err := store.Query(ctx, "small", "single entry", 10, nil)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestChromemStore_QueryWithFilter(t *testing.T) {
	store, embedder := newInMemoryStore(t)
	ctx := context.Background()

	embedder.register("restart the runner", []float32{1, 0, 0})
	embedder.register("restart the builder", []float32{0.99, 0.01, 0})

	err := store.Add(ctx, "actions", []vectorstore.Document{
		{ID: "a1", Content: "restart the runner", Metadata: map[string]string{"stage": "test"}},
		{ID: "a2", Content: "restart the builder", Metadata: map[string]string{"stage": "build"}},
	})
	require.NoError(t, err)

	results, err := store.Query(ctx, "actions", "restart the runner", 1, map[string]string{"stage": "build"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a2", results[0].ID)
}

func TestChromemStore_AddEmptyDocs(t *testing.T) {
	store, _ := newInMemoryStore(t)

	err := store.Add(context.Background(), "solutions", nil)

	assert.NoError(t, err)
}

func TestChromemStore_AddGeneratesIDs(t *testing.T) {
	store, _ := newInMemoryStore(t)
	ctx := context.Background()

	err := store.Add(ctx, "autoid", []vectorstore.Document{
		{Content: "no id supplied"},
	})
	require.NoError(t, err)

	results, err := store.Query(ctx, "autoid", "no id supplied", 1, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NotEmpty(t, results[0].ID)
}

func TestChromemStore_Count(t *testing.T) {
	store, _ := newInMemoryStore(t)
	ctx := context.Background()

	n, err := store.Count(ctx, "unwritten")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	err = store.Add(ctx, "counted", []vectorstore.Document{
		{ID: "c1", Content: "one"},
		{ID: "c2", Content: "two"},
	})
	require.NoError(t, err)

	n, err = store.Count(ctx, "counted")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestChromemStore_InvalidCollectionOnAdd(t *testing.T) {
	store, _ := newInMemoryStore(t)

	err := store.Add(context.Background(), "Not Valid", []vectorstore.Document{
		{ID: "x", Content: "y"},
	})

	assert.ErrorIs(t, err, vectorstore.ErrInvalidCollectionName)
}
