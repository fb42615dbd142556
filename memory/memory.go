package memory

import (
	"context"
	"time"
)

// Embedder converts text to vector embeddings.
// Implementations: mock.Embedder (testing/offline), onnx.Embedder (local
// all-MiniLM-L6-v2), cache.Embedder (read-through wrapper over either).
//
// Embed must be deterministic for a fixed configuration: the same text always
// yields the same vector. Empty input fails with ErrEmptyText; input longer
// than the implementation's configured maximum fails with ErrTextTooLong.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size D, fixed for the
	// lifetime of the embedder.
	Dimensions() int
}

// Store is the durable collection of memory records.
// Implementations must commit an Append before returning: a crash immediately
// afterwards loses nothing and leaves no partially written entry.
type Store interface {
	// Append persists a new record and assigns it a unique id. The record
	// is visible to All as soon as Append returns.
	Append(ctx context.Context, text, response string, embedding []float32, ts time.Time) (*Record, error)

	// All returns every record in insertion order.
	All(ctx context.Context) ([]*Record, error)

	// AnnotateThemes replaces the theme tags of an existing record, the
	// only field that may change after creation. Unknown id: ErrNotFound.
	AnnotateThemes(ctx context.Context, id string, themes []string) error
}

// GoalStore is the durable collection of user goals. Goals are created and
// edited by the user directly, never by the conversational flow, and are
// deactivated rather than deleted.
type GoalStore interface {
	Append(ctx context.Context, text string, horizon Horizon, embedding []float32, ts time.Time) (*Goal, error)

	// All returns every goal, active or not, in insertion order.
	All(ctx context.Context) ([]*Goal, error)

	// ActiveGoals returns the goals still eligible for retrieval.
	ActiveGoals(ctx context.Context) ([]*Goal, error)

	// Deactivate clears the active flag. Idempotent; unknown id: ErrNotFound.
	Deactivate(ctx context.Context, id string) error
}

// Source identifies where a retrieval hit came from.
type Source string

const (
	SourceMemory Source = "memory"
	SourceGoal   Source = "goal"
)

// Hit is one ephemeral retrieval result: an id, its score, and the metadata
// the ranker needs. Never persisted.
type Hit struct {
	ID        string
	Score     float64
	Timestamp time.Time
	Source    Source
}

// Index answers nearest-neighbor queries over stored vectors.
// Implementations may serve concurrent readers but must serialize their own
// mutation; a vector added before a Query begins is observed by that Query.
type Index interface {
	// Add registers a vector under id. The timestamp rides along for the
	// index's tie-break and for the ranker downstream.
	Add(ctx context.Context, id string, embedding []float32, ts time.Time) error

	// Remove drops a vector from the index (used when a goal is
	// deactivated). Removing an unknown id is not an error.
	Remove(ctx context.Context, id string) error

	// Query returns up to k hits ordered by descending cosine similarity.
	// Scores equal within 1e-6 are tied and break by more-recent timestamp.
	// An empty index yields an empty result. A query vector whose dimension
	// differs from the index's fails with *DimensionError.
	Query(ctx context.Context, embedding []float32, k int) ([]Hit, error)

	// Len reports how many vectors the index currently holds.
	Len() int
}
