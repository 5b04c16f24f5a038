// Package retrieval implements hybrid memory recall: concurrent vector and
// keyword queries fused with weighted min-max normalisation, then scaled by a
// recency/importance/access decay model.
package retrieval

import (
	"math"
	"time"
)

// Decay model constants. Half-life grows with access count up to a hard cap;
// importance scales the result between 50% and 100% of the raw curve.
const (
	BaseHalfLifeDays = 90
	AccessBonusDays  = 30
	MaxHalfLifeDays  = 730
	MinDecay         = 0.05
)

// Decay returns the retrieval score multiplier for a memory in [MinDecay, 1].
// The clock runs from last_accessed when set, otherwise created_at, so a
// recent access revives an old memory.
func Decay(createdAt time.Time, importance float64, accessCount int, lastAccessed *time.Time, now time.Time) float64 {
	anchor := createdAt
	if lastAccessed != nil && lastAccessed.After(anchor) {
		anchor = *lastAccessed
	}

	ageDays := now.Sub(anchor).Hours() / 24
	if ageDays < 0 {
		ageDays = 0
	}

	halfLife := float64(BaseHalfLifeDays + accessCount*AccessBonusDays)
	if halfLife > MaxHalfLifeDays {
		halfLife = MaxHalfLifeDays
	}

	raw := math.Pow(2, -ageDays/halfLife)
	score := raw * (0.5 + importance/2)

	if score < MinDecay {
		return MinDecay
	}
	if score > 1 {
		return 1
	}
	return score
}
