// Package rag stores and retrieves pipeline artifacts by semantic
// similarity.
//
// # Overview
//
// An ArtifactStore keeps free-form artifacts (learned solutions, failure
// reports, workflow outcomes) in a vector similarity store and retrieves
// the closest matches for a query text. It is the persistence collaborator
// behind the learning package: solutions written through StoreArtifact
// become retrievable precedent for SIMILAR_CASE_ADAPTATION.
//
// The store degrades instead of failing. A query against a backend that
// is unreachable, or a collection that does not exist yet, yields an
// empty result and a warning log so recovery can continue without
// historical context.
//
// # Usage
//
//	backend, _ := vectorstore.NewChromemStore(vectorstore.ChromemConfig{InMemory: true}, embedder, logger)
//	store, _ := rag.NewStore(rag.Config{}, backend, logger)
//
//	id, _ := store.StoreArtifact(ctx, "solution", "card-42", "flaky test fix",
//		"re-run with isolated network namespace", nil)
//
//	similar, _ := store.QuerySimilar(ctx, "tests fail intermittently", []string{"solution"}, 5)
package rag
