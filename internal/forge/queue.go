package forge

import (
	"context"
	"fmt"
	"sort"
	"time"

	"jaybrain/internal/logging"
	"jaybrain/internal/store"
)

// Queue thresholds.
const (
	StrugglingBelow      = 0.3
	StrugglingMinReviews = 2
	UpNextWindow         = 3 * 24 * time.Hour
	DefaultQueueLimit    = 20
)

// Engine wires the pure scoring functions to the store.
type Engine struct {
	Store *store.Store
}

// NewEngine builds a forge engine over an open store.
func NewEngine(s *store.Store) *Engine {
	return &Engine{Store: s}
}

// RecordReview applies one review to a concept and persists the result:
// mastery, counts, next_review, the review row, the streak bump, and (for an
// explicit wrong answer) a classified error pattern.
func (e *Engine) RecordReview(ctx context.Context, conceptID string, in ReviewInput) (*ReviewApplied, error) {
	timer := logging.StartTimer(logging.CategoryForge, "RecordReview")
	defer timer.Stop()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c, err := e.Store.GetConcept(conceptID)
	if err != nil {
		return nil, fmt.Errorf("failed to load concept: %w", err)
	}

	when := in.ReviewedAt
	if when.IsZero() {
		when = time.Now().UTC()
		in.ReviewedAt = when
	}

	applied := ApplyReview(c, in)
	c.MasteryLevel = applied.Mastery
	c.ReviewCount = applied.ReviewCount
	c.CorrectCount = applied.CorrectCount
	c.LastReviewed = &when
	next := applied.NextReview
	c.NextReview = &next

	review := &store.Review{
		ConceptID:  c.ID,
		Outcome:    in.Outcome,
		Confidence: in.Confidence,
		WasCorrect: in.WasCorrect,
		Notes:      in.Notes,
		SubjectID:  c.SubjectID,
		ReviewedAt: when,
	}
	if err := e.Store.ApplyConceptReview(c, review, applied.ErrorType); err != nil {
		return nil, err
	}

	logging.Forge("Reviewed %q: mastery %.2f (%+.2f), next in %s",
		c.Term, applied.Mastery, applied.Delta, NextReviewInterval(applied.Mastery))
	return &applied, nil
}

// StudyQueue is the bucketed (v1) queue: four disjoint groups returned
// together, each concept in at most one bucket.
type StudyQueue struct {
	DueNow     []*store.Concept `json:"due_now"`
	Struggling []*store.Concept `json:"struggling"`
	New        []*store.Concept `json:"new"`
	UpNext     []*store.Concept `json:"up_next"`
}

// Total counts concepts across all buckets.
func (q *StudyQueue) Total() int {
	return len(q.DueNow) + len(q.Struggling) + len(q.New) + len(q.UpNext)
}

// BuildQueue assembles the bucketed study queue. Bucket priority for
// deduplication: due_now > struggling > new > up_next.
func (e *Engine) BuildQueue(ctx context.Context, subjectID string, limit int) (*StudyQueue, error) {
	timer := logging.StartTimer(logging.CategoryForge, "BuildQueue")
	defer timer.Stop()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultQueueLimit
	}
	now := time.Now().UTC()

	due, err := e.Store.DueConcepts(subjectID, now, limit)
	if err != nil {
		return nil, err
	}
	struggling, err := e.Store.StrugglingConcepts(subjectID, StrugglingBelow, StrugglingMinReviews, limit)
	if err != nil {
		return nil, err
	}
	fresh, err := e.Store.NewConcepts(subjectID, limit)
	if err != nil {
		return nil, err
	}
	upcoming, err := e.Store.UpcomingConcepts(subjectID, now, UpNextWindow, limit)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	take := func(in []*store.Concept) []*store.Concept {
		var out []*store.Concept
		for _, c := range in {
			if !seen[c.ID] {
				seen[c.ID] = true
				out = append(out, c)
			}
		}
		return out
	}

	q := &StudyQueue{
		DueNow:     take(due),
		Struggling: take(struggling),
		New:        take(fresh),
		UpNext:     take(upcoming),
	}
	logging.ForgeDebug("Queue: %d due, %d struggling, %d new, %d up next",
		len(q.DueNow), len(q.Struggling), len(q.New), len(q.UpNext))
	return q, nil
}

// InterleavedItem is one entry in the exam-weighted (v2) queue.
type InterleavedItem struct {
	Concept       *store.Concept `json:"concept"`
	ObjectiveCode string         `json:"objective_code"`
	ExamWeight    float64        `json:"exam_weight"`
	priority      float64
}

// BuildInterleaved produces a single ordered queue for a subject: concepts
// from heavily-weighted, poorly-mastered objectives surface first, with due
// items boosted within each objective.
func (e *Engine) BuildInterleaved(ctx context.Context, subjectID string, limit int) ([]*InterleavedItem, error) {
	timer := logging.StartTimer(logging.CategoryForge, "BuildInterleaved")
	defer timer.Stop()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultQueueLimit
	}
	now := time.Now().UTC()

	objectives, err := e.Store.ListObjectives(subjectID)
	if err != nil {
		return nil, err
	}

	var items []*InterleavedItem
	for _, obj := range objectives {
		concepts, err := e.Store.ConceptsForObjective(obj.ID)
		if err != nil {
			return nil, err
		}
		for _, c := range concepts {
			urgency := 1.0 - c.MasteryLevel
			if c.NextReview != nil && !c.NextReview.After(now) {
				urgency += 1.0
			}
			items = append(items, &InterleavedItem{
				Concept:       c,
				ObjectiveCode: obj.Code,
				ExamWeight:    obj.ExamWeight,
				priority:      obj.ExamWeight * urgency,
			})
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].priority > items[j].priority
	})

	// A concept linked to several objectives keeps only its highest-priority slot.
	seen := make(map[string]bool)
	var out []*InterleavedItem
	for _, it := range items {
		if seen[it.Concept.ID] {
			continue
		}
		seen[it.Concept.ID] = true
		out = append(out, it)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}
