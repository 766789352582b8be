package vectorstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fyrsmithlabs/steward/pkg/vectorstore"
	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestIsTransientError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{
			name:      "nil error",
			err:       nil,
			transient: false,
		},
		{
			name:      "unavailable",
			err:       status.Error(codes.Unavailable, "server down"),
			transient: true,
		},
		{
			name:      "deadline exceeded",
			err:       status.Error(codes.DeadlineExceeded, "too slow"),
			transient: true,
		},
		{
			name:      "aborted",
			err:       status.Error(codes.Aborted, "conflict"),
			transient: true,
		},
		{
			name:      "resource exhausted",
			err:       status.Error(codes.ResourceExhausted, "rate limited"),
			transient: true,
		},
		{
			name:      "not found",
			err:       status.Error(codes.NotFound, "missing collection"),
			transient: false,
		},
		{
			name:      "invalid argument",
			err:       status.Error(codes.InvalidArgument, "bad vector size"),
			transient: false,
		},
		{
			name:      "permission denied",
			err:       status.Error(codes.PermissionDenied, "no access"),
			transient: false,
		},
		{
			name:      "plain error",
			err:       errors.New("not a grpc error"),
			transient: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.transient, vectorstore.IsTransientError(tt.err))
		})
	}
}

func TestNewQdrantStore_RequiresEmbedder(t *testing.T) {
	store, err := vectorstore.NewQdrantStore(vectorstore.QdrantConfig{VectorSize: 3}, nil, nil)

	assert.Error(t, err)
	assert.ErrorIs(t, err, vectorstore.ErrInvalidConfig)
	assert.Nil(t, store)
}

func TestNewQdrantStore_InvalidConfig(t *testing.T) {
	embedder := newStubEmbedder()

	tests := []struct {
		name   string
		config vectorstore.QdrantConfig
	}{
		{
			name:   "missing vector size",
			config: vectorstore.QdrantConfig{Host: "localhost", Port: 6334},
		},
		{
			name:   "port out of range",
			config: vectorstore.QdrantConfig{Host: "localhost", Port: 70000, VectorSize: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := vectorstore.NewQdrantStore(tt.config, embedder, nil)
			assert.Error(t, err)
			assert.Nil(t, store)
		})
	}
}

// TestQdrantStore_Integration exercises a real Qdrant server.
// Skipped unless a server is reachable on localhost:6334; start one with:
//
//	docker run -p 6334:6334 qdrant/qdrant
func TestQdrantStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	embedder := newStubEmbedder()
	store, err := vectorstore.NewQdrantStore(vectorstore.QdrantConfig{
		Host:         "localhost",
		Port:         6334,
		VectorSize:   3,
		RetryBackoff: 100 * time.Millisecond,
	}, embedder, nil)
	if err != nil {
		t.Skipf("qdrant not reachable: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	collection := "steward_it_artifacts"

	err = store.Add(ctx, collection, []vectorstore.Document{
		{ID: "11111111-1111-1111-1111-111111111111", Content: "integration doc", Metadata: map[string]string{"kind": "test"}},
	})
	assert.NoError(t, err)

	results, err := store.Query(ctx, collection, "integration doc", 1, nil)
	assert.NoError(t, err)
	assert.NotEmpty(t, results)
}
