package jsonfile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/stillpoint/mira-go-sdk/memory"
)

// GoalStore is the jsonfile-backed memory.GoalStore. Goals share the memory
// records' persistence discipline: every mutation commits atomically before
// returning.
type GoalStore struct {
	path string

	mu    sync.RWMutex
	goals []*memory.Goal
}

// OpenGoalStore loads the goal store at path. A missing file is an empty
// store, not an error.
func OpenGoalStore(path string) (*GoalStore, error) {
	s := &GoalStore{path: path}

	if err := loadLines(path, func(line []byte) error {
		var g memory.Goal
		if err := json.Unmarshal(line, &g); err != nil {
			return fmt.Errorf("decode goal: %w", err)
		}
		s.goals = append(s.goals, &g)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("open goal store %s: %w", path, err)
	}

	return s, nil
}

// Append persists a new active goal and returns it.
func (s *GoalStore) Append(ctx context.Context, text string, horizon memory.Horizon, embedding []float32, ts time.Time) (*memory.Goal, error) {
	if text == "" {
		return nil, memory.ErrEmptyText
	}
	if !horizon.Valid() {
		return nil, fmt.Errorf("append goal: invalid horizon %q", horizon)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.goals) > 0 {
		if want := len(s.goals[0].Embedding); len(embedding) != want {
			return nil, &memory.DimensionError{Want: want, Got: len(embedding)}
		}
	}

	g := memory.NewGoal(text, horizon, embedding, ts)
	s.goals = append(s.goals, g)

	if err := s.saveLocked(); err != nil {
		s.goals = s.goals[:len(s.goals)-1]
		return nil, fmt.Errorf("append goal: %w", err)
	}

	return cloneGoal(g), nil
}

// All returns every goal, active or not, in insertion order.
func (s *GoalStore) All(ctx context.Context) ([]*memory.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*memory.Goal, len(s.goals))
	for i, g := range s.goals {
		out[i] = cloneGoal(g)
	}
	return out, nil
}

// ActiveGoals returns only the goals still eligible for retrieval.
func (s *GoalStore) ActiveGoals(ctx context.Context) ([]*memory.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*memory.Goal
	for _, g := range s.goals {
		if g.Active {
			out = append(out, cloneGoal(g))
		}
	}
	return out, nil
}

// Deactivate clears the active flag. Deactivating an already-inactive goal
// is a no-op; an unknown id fails with ErrNotFound.
func (s *GoalStore) Deactivate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, g := range s.goals {
		if g.ID != id {
			continue
		}
		if !g.Active {
			return nil
		}

		g.Active = false
		if err := s.saveLocked(); err != nil {
			g.Active = true
			return fmt.Errorf("deactivate goal: %w", err)
		}
		return nil
	}

	return fmt.Errorf("deactivate goal %s: %w", id, memory.ErrNotFound)
}

// Len reports the number of stored goals, active or not.
func (s *GoalStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.goals)
}

func (s *GoalStore) saveLocked() error {
	var buf bytes.Buffer
	for _, g := range s.goals {
		line, err := json.Marshal(g)
		if err != nil {
			return fmt.Errorf("encode goal %s: %w", g.ID, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return writeAtomic(s.path, buf.Bytes())
}

func cloneGoal(g *memory.Goal) *memory.Goal {
	out := *g
	out.Embedding = append([]float32{}, g.Embedding...)
	return &out
}
