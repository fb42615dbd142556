// Package chromem implements memory.Index on top of chromem-go, a pure Go
// embedded vector database.
package chromem

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	"github.com/stillpoint/mira-go-sdk/memory"
)

// scoreEpsilon matches the ranker's tie tolerance: similarities equal within
// it break by more-recent timestamp.
const scoreEpsilon = 1e-6

// Index is a chromem-backed nearest-neighbor index over vectors of a fixed
// dimension. Mutations are serialized through a single writer lock; queries
// run concurrently against chromem's own read path.
type Index struct {
	col    *chromem.Collection
	source memory.Source
	dims   int

	mu sync.Mutex // guards Add/Remove
}

// New creates an empty index named after the source it serves. The dimension
// is fixed for the life of the index; vectors and queries of any other
// dimension are rejected.
func New(source memory.Source, dims int) (*Index, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("chromem index: dimensions must be positive, got %d", dims)
	}

	db := chromem.NewDB()
	col, err := db.CreateCollection(
		string(source),
		nil, // no custom embedding func (we provide embeddings)
		nil, // no custom distance func (use default cosine)
	)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	return &Index{
		col:    col,
		source: source,
		dims:   dims,
	}, nil
}

// Add registers a vector under id.
func (ix *Index) Add(ctx context.Context, id string, embedding []float32, ts time.Time) error {
	if len(embedding) != ix.dims {
		return &memory.DimensionError{Want: ix.dims, Got: len(embedding)}
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	doc := chromem.Document{
		ID:        id,
		Embedding: embedding,
		Metadata: map[string]string{
			"created_at": ts.UTC().Format(time.RFC3339Nano),
		},
	}
	if err := ix.col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

// Remove drops a vector from the index. Unknown ids are a no-op.
func (ix *Index) Remove(ctx context.Context, id string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// Query returns up to k hits by descending cosine similarity, ties within
// 1e-6 broken by more-recent timestamp.
func (ix *Index) Query(ctx context.Context, embedding []float32, k int) ([]memory.Hit, error) {
	if len(embedding) != ix.dims {
		return nil, &memory.DimensionError{Want: ix.dims, Got: len(embedding)}
	}
	if k <= 0 {
		return nil, nil
	}

	// chromem requires nResults <= collection size.
	count := ix.col.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := ix.col.QueryEmbedding(ctx, embedding, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	hits := make([]memory.Hit, 0, len(results))
	for _, res := range results {
		ts, err := time.Parse(time.RFC3339Nano, res.Metadata["created_at"])
		if err != nil {
			log.Printf("[CHROMEM] Skipping %s: bad created_at %q", res.ID, res.Metadata["created_at"])
			continue
		}
		hits = append(hits, memory.Hit{
			ID:        res.ID,
			Score:     float64(res.Similarity),
			Timestamp: ts,
			Source:    ix.source,
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		diff := hits[i].Score - hits[j].Score
		if diff > scoreEpsilon || diff < -scoreEpsilon {
			return diff > 0
		}
		return hits[i].Timestamp.After(hits[j].Timestamp)
	})

	return hits, nil
}

// Len reports the number of indexed vectors.
func (ix *Index) Len() int {
	return ix.col.Count()
}
