package memory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Record is one persisted reflection: what the user wrote, what the
// assistant answered, and the embedding of the user's text. Immutable once
// created except for Themes, which an asynchronous extraction process may
// fill in later via Store.AnnotateThemes.
type Record struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Response  string    `json:"response"` // empty when generation failed
	Embedding []float32 `json:"embedding"`
	Timestamp time.Time `json:"timestamp"`
	Themes    []string  `json:"themes"`
}

// NewRecord builds a record with a fresh id. Themes start empty; they are
// the placeholder for the not-yet-designed clustering feature.
func NewRecord(text, response string, embedding []float32, ts time.Time) *Record {
	return &Record{
		ID:        uuid.New().String(),
		Text:      text,
		Response:  response,
		Embedding: embedding,
		Timestamp: ts,
		Themes:    []string{},
	}
}

// Fragment formats the record for prompt injection: a single dated line
// carrying the user's original reflection.
func (r *Record) Fragment() string {
	return fmt.Sprintf("Past reflection (%s): %s", r.Timestamp.Format("2006-01-02"), r.Text)
}

// EmbeddingText returns the text that the record's embedding was (or should
// be) computed from.
func (r *Record) EmbeddingText() string {
	return r.Text
}
