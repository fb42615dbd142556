package mock

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"github.com/stillpoint/mira-go-sdk/memory"
)

// DefaultMaxTextLen bounds the input accepted by the mock embedder, matching
// the validation contract of the real embedders.
const DefaultMaxTextLen = 8192

// MockEmbedder is a deterministic embedder for tests and offline use.
// It generates unit vectors from a hash of the text: no semantics, but
// identical text always yields identical embeddings.
type MockEmbedder struct {
	dimensions int
	maxTextLen int
}

// New creates a mock embedder with 384 dimensions, matching
// all-MiniLM-L6-v2 so it can stand in for the ONNX embedder.
func New() *MockEmbedder {
	return NewWithDimensions(384)
}

// NewWithDimensions creates a mock embedder with a custom vector size.
func NewWithDimensions(dims int) *MockEmbedder {
	return &MockEmbedder{
		dimensions: dims,
		maxTextLen: DefaultMaxTextLen,
	}
}

// Embed creates a deterministic embedding from text.
func (m *MockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, memory.ErrEmptyText
	}
	if len(text) > m.maxTextLen {
		return nil, memory.ErrTextTooLong
	}

	// Hash the text
	h := fnv.New64a()
	h.Write([]byte(text))
	hash := h.Sum64()

	// Use hash as seed for pseudo-random generation
	embedding := make([]float32, m.dimensions)
	seed := hash
	for i := 0; i < m.dimensions; i++ {
		// Simple LCG (Linear Congruential Generator)
		seed = seed*6364136223846793005 + 1442695040888963407
		// Convert to [-1, 1] range
		embedding[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}

	return normalize(embedding), nil
}

// Dimensions returns the embedding size.
func (m *MockEmbedder) Dimensions() int {
	return m.dimensions
}

// normalize converts embedding to unit vector.
func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}

	if norm == 0 {
		return vec
	}

	norm = float32(math.Sqrt(float64(norm)))
	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = v / norm
	}

	return normalized
}
