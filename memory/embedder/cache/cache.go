package cache

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/stillpoint/mira-go-sdk/memory"
)

// Embedder is a read-through cache over another embedder. Embedding is
// deterministic for a fixed configuration, so repeated reflections on the
// same text (and index rebuilds) can skip the model entirely.
type Embedder struct {
	inner memory.Embedder
	cache *ristretto.Cache
}

// New wraps inner with a ristretto cache holding up to maxBytes of vectors.
func New(inner memory.Embedder, maxBytes int64) (*Embedder, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100_000,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}

	return &Embedder{
		inner: inner,
		cache: c,
	}, nil
}

// Embed returns the cached vector for text, or embeds and caches it.
// Validation errors from the inner embedder pass through uncached.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		if vec, ok := v.([]float32); ok {
			out := make([]float32, len(vec))
			copy(out, vec)
			return out, nil
		}
	}

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	stored := make([]float32, len(vec))
	copy(stored, vec)
	e.cache.Set(text, stored, int64(len(stored)*4))
	// Set is buffered; flush so a rebuild pass sees its own entries.
	e.cache.Wait()

	return vec, nil
}

// Dimensions returns the inner embedder's vector size.
func (e *Embedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Close releases the cache.
func (e *Embedder) Close() {
	e.cache.Close()
}
