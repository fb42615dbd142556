package memory

import (
	"errors"
	"fmt"
)

// Sentinel errors for the memory subsystem. Storage I/O failures are wrapped
// with %w by the store implementations rather than flattened into sentinels,
// so callers keep the underlying os/json error.
var (
	// ErrEmptyText rejects an embedding request with no content.
	ErrEmptyText = errors.New("memory: text is empty")

	// ErrTextTooLong rejects input beyond the embedder's configured maximum.
	ErrTextTooLong = errors.New("memory: text exceeds maximum length")

	// ErrNotFound reports an operation on an unknown record or goal id.
	ErrNotFound = errors.New("memory: id not found")
)

// DimensionError reports a vector whose dimension does not match the fixed
// process-wide embedding dimension D. It is a fatal configuration error:
// comparisons are never silently truncated or padded.
type DimensionError struct {
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("memory: embedding dimension mismatch: got %d, want %d", e.Got, e.Want)
}
