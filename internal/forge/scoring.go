// Package forge implements the spaced-repetition engine: review scoring,
// interval scheduling, error classification, study queues, and readiness /
// calibration reporting. Scoring and scheduling are pure functions over store
// rows; Engine wires them to persistence.
package forge

import (
	"time"

	"jaybrain/internal/store"
)

// v1 mastery deltas, used when the reviewer reports only an outcome.
const (
	DeltaUnderstoodConfident = 0.15
	DeltaUnderstoodUnsure    = 0.10
	DeltaReviewed            = 0.05
	DeltaStruggled           = -0.10
	DeltaSkipped             = 0.0
)

// v2 mastery deltas, used when correctness is explicit. Ordering invariant:
// CorrectConfident > CorrectUnsure > 0 > IncorrectUnsure > IncorrectConfident.
const (
	CorrectConfident   = 0.20
	CorrectUnsure      = 0.08
	IncorrectUnsure    = -0.10
	IncorrectConfident = -0.20
)

// ConfidentAt is the confidence level at or above which an answer counts as
// confident (scale 1..5).
const ConfidentAt = 4

// IntervalBands maps post-review mastery to the next review delay. Bands are
// checked in order; the first whose Below bound exceeds the mastery wins.
var IntervalBands = []struct {
	Below float64
	Delay time.Duration
}{
	{0.25, 24 * time.Hour},
	{0.40, 3 * 24 * time.Hour},
	{0.60, 7 * 24 * time.Hour},
	{0.80, 14 * 24 * time.Hour},
	{1.01, 30 * 24 * time.Hour},
}

// ReviewInput is one review event as reported by the user.
type ReviewInput struct {
	Outcome    string // understood | reviewed | struggled | skipped
	Confidence int    // 1..5
	WasCorrect *bool  // nil = v1 scoring
	Notes      string
	ReviewedAt time.Time
}

// ReviewApplied is the post-review state ApplyReview computes.
type ReviewApplied struct {
	Mastery      float64
	Delta        float64
	ReviewCount  int
	CorrectCount int
	NextReview   time.Time
	ErrorType    string // non-empty only for an explicit wrong answer
}

// ApplyReview computes the concept's post-review state. Pure: no store access,
// no mutation of c.
func ApplyReview(c *store.Concept, r ReviewInput) ReviewApplied {
	when := r.ReviewedAt
	if when.IsZero() {
		when = time.Now().UTC()
	}

	delta := masteryDelta(r)
	mastery := clamp01(c.MasteryLevel + delta)

	out := ReviewApplied{
		Mastery:      mastery,
		Delta:        delta,
		ReviewCount:  c.ReviewCount + 1,
		CorrectCount: c.CorrectCount,
		NextReview:   when.Add(NextReviewInterval(mastery)),
	}
	if r.WasCorrect != nil {
		if *r.WasCorrect {
			out.CorrectCount++
		} else {
			out.ErrorType = ClassifyError(r.Confidence, c.MasteryLevel, c.CorrectCount, c.ReviewCount)
		}
	}
	return out
}

func masteryDelta(r ReviewInput) float64 {
	if r.WasCorrect != nil {
		confident := r.Confidence >= ConfidentAt
		switch {
		case *r.WasCorrect && confident:
			return CorrectConfident
		case *r.WasCorrect:
			return CorrectUnsure
		case confident:
			return IncorrectConfident
		default:
			return IncorrectUnsure
		}
	}

	switch r.Outcome {
	case "understood":
		if r.Confidence >= ConfidentAt {
			return DeltaUnderstoodConfident
		}
		return DeltaUnderstoodUnsure
	case "reviewed":
		return DeltaReviewed
	case "struggled":
		return DeltaStruggled
	default: // skipped or unrecognised
		return DeltaSkipped
	}
}

// NextReviewInterval schedules the next review from the post-review mastery
// band. Interval depends on where the learner landed, not how they got there.
func NextReviewInterval(mastery float64) time.Duration {
	for _, band := range IntervalBands {
		if mastery < band.Below {
			return band.Delay
		}
	}
	return IntervalBands[len(IntervalBands)-1].Delay
}

// ClassifyError names why a wrong answer happened, from the learner's state
// at review time (pre-review mastery and history).
//
//	misconception — believed a wrong model, confidently, despite mastery
//	lapse         — knew it but couldn't retrieve it (low confidence, high mastery)
//	slip          — high mastery with no review history; likely a one-off
//	mistake       — everything else: the concept simply isn't learned yet
func ClassifyError(confidence int, mastery float64, correctCount, reviewCount int) string {
	highMastery := mastery >= 0.6
	if !highMastery {
		return "mistake"
	}
	if reviewCount == 0 {
		return "slip"
	}
	if confidence >= ConfidentAt {
		return "misconception"
	}
	return "lapse"
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
