package memory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Horizon classifies a goal as short-, medium-, or long-term.
type Horizon string

const (
	HorizonShort  Horizon = "short"
	HorizonMedium Horizon = "medium"
	HorizonLong   Horizon = "long"
)

// Valid reports whether h is one of the three defined horizons.
func (h Horizon) Valid() bool {
	switch h {
	case HorizonShort, HorizonMedium, HorizonLong:
		return true
	}
	return false
}

// ParseHorizon converts user input to a Horizon.
func ParseHorizon(s string) (Horizon, error) {
	h := Horizon(s)
	if !h.Valid() {
		return "", fmt.Errorf("invalid horizon %q (want short, medium, or long)", s)
	}
	return h, nil
}

// Goal is a user goal, embeddable and retrievable like a memory record.
// Goals are deactivated rather than deleted so history stays traceable;
// only active goals participate in ranking.
type Goal struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Horizon   Horizon   `json:"horizon"`
	Embedding []float32 `json:"embedding"`
	CreatedAt time.Time `json:"created_at"`
	Active    bool      `json:"active"`
}

// NewGoal builds an active goal with a fresh id.
func NewGoal(text string, horizon Horizon, embedding []float32, ts time.Time) *Goal {
	return &Goal{
		ID:        uuid.New().String(),
		Text:      text,
		Horizon:   horizon,
		Embedding: embedding,
		CreatedAt: ts,
		Active:    true,
	}
}

// Fragment formats the goal for prompt injection.
func (g *Goal) Fragment() string {
	return fmt.Sprintf("Goal (%s-term): %s", g.Horizon, g.Text)
}
