package memory

import (
	"math"
	"sort"
	"time"
)

// scoreEpsilon is the tolerance within which two floating-point scores are
// considered tied for ordering purposes.
const scoreEpsilon = 1e-6

// RankConfig tunes how similarity and recency blend into a combined score.
type RankConfig struct {
	// RecencyWeight is the share of the combined score taken by recency,
	// in [0,1]. Kept small so semantic relevance dominates.
	RecencyWeight float64

	// HalfLife is the age at which a memory's recency score halves.
	HalfLife time.Duration
}

// DefaultRankConfig keeps relevance in charge: with a ten-day half-life a
// memory older than ~30 days scores below 0.13 on recency, strongly
// down-weighted but never excluded.
var DefaultRankConfig = RankConfig{
	RecencyWeight: 0.25,
	HalfLife:      240 * time.Hour,
}

// Ranker orders retrieval hits by a combined relevance score:
//
//	combined = similarity*(1-w) + recency*w
//
// where recency decays exponentially with age. The exact constants are a
// design choice, configurable rather than contractual.
type Ranker struct {
	cfg RankConfig
}

// NewRanker creates a ranker. A nil config selects DefaultRankConfig.
func NewRanker(cfg *RankConfig) *Ranker {
	if cfg == nil {
		c := DefaultRankConfig
		cfg = &c
	}
	return &Ranker{cfg: *cfg}
}

// Rank returns the top k hits by combined score, evaluated against the
// current time. See RankAt.
func (r *Ranker) Rank(hits []Hit, k int) []Hit {
	return r.RankAt(hits, k, time.Now())
}

// RankAt ranks hits as of the given instant. The input is not modified; the
// returned hits carry the combined score. Ordering is strictly descending,
// and scores equal within 1e-6 keep their original input order.
func (r *Ranker) RankAt(hits []Hit, k int, now time.Time) []Hit {
	if len(hits) == 0 || k <= 0 {
		return nil
	}

	ranked := make([]Hit, len(hits))
	for i, h := range hits {
		h.Score = h.Score*(1-r.cfg.RecencyWeight) + r.recency(h.Timestamp, now)*r.cfg.RecencyWeight
		ranked[i] = h
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score-ranked[j].Score > scoreEpsilon
	})

	if k < len(ranked) {
		ranked = ranked[:k]
	}
	return ranked
}

// recency maps age onto (0,1] with exponential half-life decay. Timestamps
// in the future clamp to a score of 1.
func (r *Ranker) recency(ts, now time.Time) float64 {
	age := now.Sub(ts)
	if age <= 0 {
		return 1
	}
	halfLives := float64(age) / float64(r.cfg.HalfLife)
	return math.Exp2(-halfLives)
}
