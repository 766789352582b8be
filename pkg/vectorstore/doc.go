// Package vectorstore provides vector storage for similarity search.
//
// Two Store implementations are provided:
//
//   - ChromemStore: embedded chromem-go database (pure Go, optional
//     persistence to disk). The default for single-process deployments.
//   - QdrantStore: external Qdrant over native gRPC, with transient-error
//     retry and a circuit breaker.
//
// Both embed text through the Embedder interface at write and query time, so
// callers work in plain text and metadata. Collections are created on first
// use and validated against ^[a-z0-9_]{1,64}$.
//
// Usage:
//
//	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{InMemory: true}, embedder, logger)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	err = store.Add(ctx, "solutions", []vectorstore.Document{{
//	    ID:      uuid.NewString(),
//	    Content: "build failed: missing dependency",
//	    Metadata: map[string]string{"issue_type": "BUILD_FAILURE"},
//	}})
//
//	results, err := store.Query(ctx, "solutions", "dependency error during build", 5, nil)
package vectorstore
