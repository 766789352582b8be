package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNotFound is returned when a collection does not exist.
	ErrNotFound = errors.New("collection not found")

	// ErrConnectionFailed indicates transport-level connection issues.
	ErrConnectionFailed = errors.New("failed to connect to vector store")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("failed to generate embeddings")
)

// collectionNamePattern validates collection names.
// Pattern: lowercase letters, numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName validates a collection name against security rules.
// Rejects uppercase, special chars, path traversal, spaces.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match pattern ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// Document is a text record to be stored with its metadata.
type Document struct {
	// ID is the unique identifier for the document. Auto-generated when empty.
	ID string

	// Content is the text content of the document.
	Content string

	// Metadata contains additional key-value pairs for filtering.
	Metadata map[string]string
}

// QueryResult is a document returned from a similarity query.
type QueryResult struct {
	Document

	// Score is the similarity score (higher = more similar).
	Score float32
}

// Embedder generates vector embeddings from text.
//
// Embeddings are dense numerical representations that capture semantic
// meaning, enabling similarity search. Implementations can use local models
// or OpenAI-compatible APIs.
type Embedder interface {
	// EmbedDocuments generates embeddings for multiple texts.
	// Returns one embedding per input text.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	// Some models optimize differently for queries vs documents.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Store is the interface for vector storage operations.
//
// The interface is transport-agnostic. Collections are namespaces created on
// first write; a query against a collection that was never written returns
// ErrNotFound.
type Store interface {
	// Add embeds and stores documents in the named collection.
	// The collection is created if it does not exist.
	Add(ctx context.Context, collection string, docs []Document) error

	// Query performs similarity search in the named collection and returns up
	// to topK results ordered by similarity score (highest first). A non-nil
	// filter restricts results to documents whose metadata matches every
	// filter entry.
	Query(ctx context.Context, collection, text string, topK int, filter map[string]string) ([]QueryResult, error)

	// Count returns the number of documents in the named collection.
	// A collection that was never written counts as zero.
	Count(ctx context.Context, collection string) (int, error)

	// Close releases store resources.
	Close() error
}
