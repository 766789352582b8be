package rag

import (
	"context"
	"errors"
)

var (
	// ErrInvalidConfig indicates a missing or invalid configuration value.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrInvalidInput indicates a malformed artifact or query.
	ErrInvalidInput = errors.New("invalid input")
)

// SimilarArtifact is one similarity-search hit.
type SimilarArtifact struct {
	// ArtifactID is the id returned by StoreArtifact.
	ArtifactID string

	// Content is the stored artifact body.
	Content string

	// Metadata carries the caller-supplied entries plus the enrichment
	// keys type, card_id, title and stored_at.
	Metadata map[string]string

	// Score is the similarity to the query text, higher is closer.
	Score float32
}

// ArtifactStore persists pipeline artifacts and retrieves them by
// semantic similarity.
type ArtifactStore interface {
	// StoreArtifact stores one artifact and returns its generated id.
	StoreArtifact(ctx context.Context, artifactType, cardID, title, content string, metadata map[string]string) (string, error)

	// QuerySimilar returns up to topK artifacts closest to queryText,
	// restricted to the given artifact types when any are named. Backend
	// failures degrade to an empty result, not an error.
	QuerySimilar(ctx context.Context, queryText string, artifactTypes []string, topK int) ([]SimilarArtifact, error)
}
