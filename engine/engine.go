// Package engine orchestrates one reflective turn: embed the user's thought,
// retrieve and rank relevant memories and goals, assemble a bounded context,
// call the language model, and persist the exchange as a new memory.
package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/stillpoint/mira-go-sdk/memory"
	"github.com/stillpoint/mira-go-sdk/profile"
	"github.com/stillpoint/mira-go-sdk/prompt"
)

// candidateMultiplier widens the index query beyond K so recency can
// promote entries the raw similarity cut would have missed.
const candidateMultiplier = 4

// Config wires the engine's collaborators and retrieval limits.
type Config struct {
	Embedder    memory.Embedder
	Memories    memory.Store
	Goals       memory.GoalStore
	MemoryIndex memory.Index
	GoalIndex   memory.Index
	Completer   Completer
	Profile     *profile.Profile

	// KMemories caps how many past reflections enter the context.
	// Default: 8.
	KMemories int

	// KGoals caps how many active goals enter the context. Goals are few,
	// so the cap is small. Default: 5.
	KGoals int
}

// Option configures the engine.
type Option func(*Engine)

// WithMemoryRanker overrides the ranker used for past reflections.
func WithMemoryRanker(r *memory.Ranker) Option {
	return func(e *Engine) {
		e.memRanker = r
	}
}

// WithGoalRanker overrides the ranker used for goals. The default ranks
// goals on similarity alone: a goal's age says nothing about its relevance.
func WithGoalRanker(r *memory.Ranker) Option {
	return func(e *Engine) {
		e.goalRanker = r
	}
}

// WithAssembler overrides the context assembler (budget, minimum fragment
// length).
func WithAssembler(a *prompt.Assembler) Option {
	return func(e *Engine) {
		e.assembler = a
	}
}

// Engine is the turn processor. One turn runs to completion before the next
// begins; the stores and indexes it holds tolerate concurrent readers.
type Engine struct {
	embedder   memory.Embedder
	memories   memory.Store
	goals      memory.GoalStore
	memIndex   memory.Index
	goalIndex  memory.Index
	completer  Completer
	prof       *profile.Profile
	memRanker  *memory.Ranker
	goalRanker *memory.Ranker
	assembler  *prompt.Assembler
	kMemories  int
	kGoals     int
}

// New builds an engine and rebuilds both vector indexes from the stores.
// It refuses to start when any persisted embedding disagrees with the
// embedder's dimension: garbage similarity scores are worse than no engine.
func New(cfg Config, opts ...Option) (*Engine, error) {
	switch {
	case cfg.Embedder == nil:
		return nil, fmt.Errorf("engine: embedder is required")
	case cfg.Memories == nil:
		return nil, fmt.Errorf("engine: memory store is required")
	case cfg.Goals == nil:
		return nil, fmt.Errorf("engine: goal store is required")
	case cfg.MemoryIndex == nil || cfg.GoalIndex == nil:
		return nil, fmt.Errorf("engine: both vector indexes are required")
	case cfg.Completer == nil:
		return nil, fmt.Errorf("engine: completer is required")
	}
	if cfg.Profile == nil {
		cfg.Profile = profile.Default()
	}
	if cfg.KMemories <= 0 {
		cfg.KMemories = 8
	}
	if cfg.KGoals <= 0 {
		cfg.KGoals = 5
	}

	e := &Engine{
		embedder:   cfg.Embedder,
		memories:   cfg.Memories,
		goals:      cfg.Goals,
		memIndex:   cfg.MemoryIndex,
		goalIndex:  cfg.GoalIndex,
		completer:  cfg.Completer,
		prof:       cfg.Profile,
		memRanker:  memory.NewRanker(nil),
		goalRanker: memory.NewRanker(&memory.RankConfig{RecencyWeight: 0, HalfLife: memory.DefaultRankConfig.HalfLife}),
		assembler:  prompt.NewAssembler(nil),
		kMemories:  cfg.KMemories,
		kGoals:     cfg.KGoals,
	}
	for _, opt := range opts {
		opt(e)
	}

	if err := e.rebuildIndexes(context.Background()); err != nil {
		return nil, err
	}
	return e, nil
}

// rebuildIndexes loads every stored embedding into the vector indexes,
// verifying the process-wide dimension D along the way.
func (e *Engine) rebuildIndexes(ctx context.Context) error {
	dims := e.embedder.Dimensions()

	records, err := e.memories.All(ctx)
	if err != nil {
		return fmt.Errorf("engine: load memories: %w", err)
	}
	for _, rec := range records {
		if len(rec.Embedding) != dims {
			return fmt.Errorf("engine: record %s: %w", rec.ID, &memory.DimensionError{Want: dims, Got: len(rec.Embedding)})
		}
		if err := e.memIndex.Add(ctx, rec.ID, rec.Embedding, rec.Timestamp); err != nil {
			return fmt.Errorf("engine: index record %s: %w", rec.ID, err)
		}
	}

	goals, err := e.goals.ActiveGoals(ctx)
	if err != nil {
		return fmt.Errorf("engine: load goals: %w", err)
	}
	for _, g := range goals {
		if len(g.Embedding) != dims {
			return fmt.Errorf("engine: goal %s: %w", g.ID, &memory.DimensionError{Want: dims, Got: len(g.Embedding)})
		}
		if err := e.goalIndex.Add(ctx, g.ID, g.Embedding, g.CreatedAt); err != nil {
			return fmt.Errorf("engine: index goal %s: %w", g.ID, err)
		}
	}

	log.Printf("[ENGINE] Indexed %d memories, %d active goals (D=%d)", len(records), len(goals), dims)
	return nil
}

// Turn is the outcome of one processed reflection.
type Turn struct {
	ID       string
	Response string

	// Context is the assembled prompt context, returned for observability
	// (the UI may surface what the companion "remembered").
	Context *prompt.Context

	// Record is the persisted memory of this exchange.
	Record *memory.Record
}

// Reflect processes one conversational turn. Embedding and storage failures
// abort the turn. A completion failure does not: the reflection is persisted
// with an empty response and the error is returned alongside the turn, so a
// lost reply never loses the memory.
func (e *Engine) Reflect(ctx context.Context, text string) (*Turn, error) {
	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed reflection: %w", err)
	}

	assembled, err := e.buildContext(ctx, vec)
	if err != nil {
		return nil, err
	}

	fullPrompt := renderPrompt(assembled, text)

	response, completeErr := e.completer.Complete(ctx, fullPrompt)
	if completeErr != nil {
		log.Printf("[ENGINE] Completion failed, persisting reflection without a reply: %v", completeErr)
		response = ""
	}

	now := time.Now().UTC()
	rec, err := e.memories.Append(ctx, text, response, vec, now)
	if err != nil {
		return nil, fmt.Errorf("persist reflection: %w", err)
	}
	if err := e.memIndex.Add(ctx, rec.ID, rec.Embedding, rec.Timestamp); err != nil {
		return nil, fmt.Errorf("index reflection %s: %w", rec.ID, err)
	}

	turn := &Turn{
		ID:       uuid.New().String(),
		Response: response,
		Context:  assembled,
		Record:   rec,
	}
	if completeErr != nil {
		return turn, fmt.Errorf("complete reflection: %w", completeErr)
	}
	return turn, nil
}

// buildContext retrieves, ranks, and assembles the context for a query
// vector. Zero retrieval results are not an error; the context degrades to
// persona and constitution alone.
func (e *Engine) buildContext(ctx context.Context, vec []float32) (*prompt.Context, error) {
	memHits, err := e.memIndex.Query(ctx, vec, e.kMemories*candidateMultiplier)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	goalHits, err := e.goalIndex.Query(ctx, vec, e.kGoals*candidateMultiplier)
	if err != nil {
		return nil, fmt.Errorf("query goals: %w", err)
	}

	rankedMems := e.memRanker.Rank(memHits, e.kMemories)
	rankedGoals := e.goalRanker.Rank(goalHits, e.kGoals)
	log.Printf("[ENGINE] Retrieved %d memories, %d goals", len(rankedMems), len(rankedGoals))

	memFrags, err := e.memoryFragments(ctx, rankedMems)
	if err != nil {
		return nil, err
	}
	goalFrags, err := e.goalFragments(ctx, rankedGoals)
	if err != nil {
		return nil, err
	}

	return e.assembler.Assemble(e.prof.PersonaText(), e.prof.ConstitutionText(), goalFrags, memFrags), nil
}

func (e *Engine) memoryFragments(ctx context.Context, hits []memory.Hit) ([]string, error) {
	if len(hits) == 0 {
		return nil, nil
	}

	records, err := e.memories.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("load memories: %w", err)
	}
	byID := make(map[string]*memory.Record, len(records))
	for _, rec := range records {
		byID[rec.ID] = rec
	}

	frags := make([]string, 0, len(hits))
	for _, h := range hits {
		rec, ok := byID[h.ID]
		if !ok {
			log.Printf("[ENGINE] Index returned unknown record %s, skipping", h.ID)
			continue
		}
		frags = append(frags, rec.Fragment())
	}
	return frags, nil
}

func (e *Engine) goalFragments(ctx context.Context, hits []memory.Hit) ([]string, error) {
	if len(hits) == 0 {
		return nil, nil
	}

	goals, err := e.goals.ActiveGoals(ctx)
	if err != nil {
		return nil, fmt.Errorf("load goals: %w", err)
	}
	byID := make(map[string]*memory.Goal, len(goals))
	for _, g := range goals {
		byID[g.ID] = g
	}

	frags := make([]string, 0, len(hits))
	for _, h := range hits {
		g, ok := byID[h.ID]
		if !ok {
			// Deactivated between index query and store read.
			continue
		}
		frags = append(frags, g.Fragment())
	}
	return frags, nil
}

// AddGoal embeds and persists a new goal and registers it for retrieval.
// Goals are created by the user directly, never by the conversational flow.
func (e *Engine) AddGoal(ctx context.Context, text string, horizon memory.Horizon) (*memory.Goal, error) {
	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed goal: %w", err)
	}

	g, err := e.goals.Append(ctx, text, horizon, vec, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("persist goal: %w", err)
	}
	if err := e.goalIndex.Add(ctx, g.ID, g.Embedding, g.CreatedAt); err != nil {
		return nil, fmt.Errorf("index goal %s: %w", g.ID, err)
	}
	return g, nil
}

// ActiveGoals lists the goals currently eligible for retrieval.
func (e *Engine) ActiveGoals(ctx context.Context) ([]*memory.Goal, error) {
	return e.goals.ActiveGoals(ctx)
}

// DeactivateGoal retires a goal from retrieval while keeping its history.
func (e *Engine) DeactivateGoal(ctx context.Context, id string) error {
	if err := e.goals.Deactivate(ctx, id); err != nil {
		return err
	}
	if err := e.goalIndex.Remove(ctx, id); err != nil {
		return fmt.Errorf("unindex goal %s: %w", id, err)
	}
	return nil
}

// AnnotateThemes tags a past reflection. This is the extension point the
// future theme-extraction process will call; the engine itself never
// invents themes.
func (e *Engine) AnnotateThemes(ctx context.Context, id string, themes []string) error {
	return e.memories.AnnotateThemes(ctx, id, themes)
}

// renderPrompt lays out the full prompt: assembled context first, the
// user's current thought last.
func renderPrompt(assembled *prompt.Context, text string) string {
	contextBlock := assembled.String()
	if contextBlock == "" {
		return fmt.Sprintf("User's current thought: %s\n\nMira's reflection:", text)
	}
	return fmt.Sprintf("%s\n\nUser's current thought: %s\n\nMira's reflection:", contextBlock, text)
}
