// Package embeddings defines the Provider interface for text-embedding
// backends.
//
// QuestWeaver embeds narrative event summaries into dense float32 vectors so
// the store can retrieve thematically related past events by cosine
// similarity (semantic recall for the narrator and the planner perspectives).
// A Provider wraps one embedding model behind a uniform surface.
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Provider is the abstraction over any text-embedding backend.
//
// Every vector returned by one Provider instance has the same length,
// reported by Dimensions. Vectors from different instances live in different
// spaces and must not be compared unless the models match.
type Provider interface {
	// Embed computes the embedding vector for a single text. The returned
	// slice has length Dimensions(). Text is passed through verbatim; any
	// model-specific prefix ("query: ", "passage: ") is the caller's job.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds a slice of texts in one backend call. The result is
	// ordered like the input. On error the whole result is nil; partial
	// results are never returned.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed vector length produced by this provider.
	Dimensions() int

	// ModelID returns the backend model identifier, for logging and for
	// checking that stored vectors were produced by the same model.
	ModelID() string
}
