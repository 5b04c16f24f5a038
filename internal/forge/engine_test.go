package forge

import (
	"context"
	"testing"
	"time"

	"jaybrain/internal/store"
)

func newTestForge(t *testing.T) *Engine {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return NewEngine(s)
}

func addConcept(t *testing.T, e *Engine, term string, mastery float64) *store.Concept {
	t.Helper()
	c := &store.Concept{Term: term, Definition: term + " definition", MasteryLevel: mastery}
	if err := e.Store.CreateConcept(c); err != nil {
		t.Fatalf("CreateConcept failed: %v", err)
	}
	return c
}

func TestRecordReviewPersists(t *testing.T) {
	e := newTestForge(t)
	ctx := context.Background()
	c := addConcept(t, e, "OSPF", 0.4)

	applied, err := e.RecordReview(ctx, c.ID, ReviewInput{Outcome: "understood", Confidence: 5})
	if err != nil {
		t.Fatalf("RecordReview failed: %v", err)
	}
	if diff := applied.Mastery - 0.55; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Mastery = %v, want 0.55", applied.Mastery)
	}

	got, err := e.Store.GetConcept(c.ID)
	if err != nil {
		t.Fatalf("GetConcept failed: %v", err)
	}
	if diff := got.MasteryLevel - 0.55; diff > 1e-9 || diff < -1e-9 || got.ReviewCount != 1 {
		t.Errorf("Persisted state wrong: mastery=%v reviews=%d", got.MasteryLevel, got.ReviewCount)
	}
	if got.NextReview == nil || got.LastReviewed == nil {
		t.Fatal("Review timestamps not persisted")
	}
	// 0.55 is in the 7-day band.
	if d := got.NextReview.Sub(*got.LastReviewed); d != 7*24*time.Hour {
		t.Errorf("Next review gap = %v, want 7 days", d)
	}

	reviews, err := e.Store.ListReviews("", 10)
	if err != nil || len(reviews) != 1 {
		t.Fatalf("Expected 1 review row, got %d (err=%v)", len(reviews), err)
	}
}

func TestRecordReviewWrongAnswerClassified(t *testing.T) {
	e := newTestForge(t)
	ctx := context.Background()
	c := addConcept(t, e, "BGP", 0.8)
	// Give it history so a confident wrong answer reads as a misconception.
	if _, err := e.RecordReview(ctx, c.ID, ReviewInput{WasCorrect: boolPtr(true), Confidence: 5}); err != nil {
		t.Fatalf("Setup review failed: %v", err)
	}

	applied, err := e.RecordReview(ctx, c.ID, ReviewInput{WasCorrect: boolPtr(false), Confidence: 5})
	if err != nil {
		t.Fatalf("RecordReview failed: %v", err)
	}
	if applied.ErrorType != "misconception" {
		t.Errorf("ErrorType = %q, want misconception", applied.ErrorType)
	}

	patterns, err := e.Store.ListErrorPatterns("misconception", 10)
	if err != nil || len(patterns) != 1 {
		t.Errorf("Expected 1 misconception pattern, got %d (err=%v)", len(patterns), err)
	}
}

func TestRecordReviewMissingConcept(t *testing.T) {
	e := newTestForge(t)
	if _, err := e.RecordReview(context.Background(), "nope", ReviewInput{Outcome: "reviewed"}); err == nil {
		t.Error("Expected error for unknown concept")
	}
}

func TestBuildQueueBuckets(t *testing.T) {
	e := newTestForge(t)
	ctx := context.Background()
	now := time.Now().UTC()

	due := addConcept(t, e, "due-item", 0.5)
	past := now.Add(-time.Hour)
	due.NextReview = &past
	due.ReviewCount = 3
	mustApplyState(t, e, due)

	struggling := addConcept(t, e, "struggling-item", 0.1)
	future := now.Add(10 * 24 * time.Hour)
	struggling.NextReview = &future
	struggling.ReviewCount = 3
	mustApplyState(t, e, struggling)

	fresh := addConcept(t, e, "fresh-item", 0.5)
	_ = fresh

	upNext := addConcept(t, e, "upnext-item", 0.5)
	soon := now.Add(24 * time.Hour)
	upNext.NextReview = &soon
	upNext.ReviewCount = 2
	mustApplyState(t, e, upNext)

	q, err := e.BuildQueue(ctx, "", 10)
	if err != nil {
		t.Fatalf("BuildQueue failed: %v", err)
	}
	assertBucket(t, "due_now", q.DueNow, "due-item")
	assertBucket(t, "struggling", q.Struggling, "struggling-item")
	assertBucket(t, "new", q.New, "fresh-item")
	assertBucket(t, "up_next", q.UpNext, "upnext-item")
}

func TestBuildQueueDeduplicates(t *testing.T) {
	e := newTestForge(t)
	ctx := context.Background()
	now := time.Now().UTC()

	// Due AND struggling: must land in due_now only.
	c := addConcept(t, e, "both", 0.1)
	past := now.Add(-time.Hour)
	c.NextReview = &past
	c.ReviewCount = 3
	mustApplyState(t, e, c)

	q, err := e.BuildQueue(ctx, "", 10)
	if err != nil {
		t.Fatalf("BuildQueue failed: %v", err)
	}
	if len(q.DueNow) != 1 || len(q.Struggling) != 0 {
		t.Errorf("Dedupe wrong: due=%d struggling=%d", len(q.DueNow), len(q.Struggling))
	}
	if q.Total() != 1 {
		t.Errorf("Total = %d, want 1", q.Total())
	}
}

func TestBuildInterleavedOrdering(t *testing.T) {
	e := newTestForge(t)
	ctx := context.Background()

	sub := &store.Subject{Name: "CCNA", ExamDate: "2026-11-03"}
	if err := e.Store.CreateSubject(sub); err != nil {
		t.Fatalf("CreateSubject failed: %v", err)
	}
	heavy := &store.Objective{SubjectID: sub.ID, Code: "1.1", Title: "Routing", Domain: "routing", ExamWeight: 0.4}
	light := &store.Objective{SubjectID: sub.ID, Code: "2.1", Title: "Wireless", Domain: "wireless", ExamWeight: 0.1}
	for _, o := range []*store.Objective{heavy, light} {
		if err := e.Store.CreateObjective(o); err != nil {
			t.Fatalf("CreateObjective failed: %v", err)
		}
	}

	weakHeavy := addConcept(t, e, "ospf-areas", 0.1)
	strongHeavy := addConcept(t, e, "static-routes", 0.9)
	weakLight := addConcept(t, e, "wpa3", 0.1)
	for _, link := range []struct {
		conceptID, objectiveID string
	}{
		{weakHeavy.ID, heavy.ID}, {strongHeavy.ID, heavy.ID}, {weakLight.ID, light.ID},
	} {
		if err := e.Store.LinkConceptObjective(link.conceptID, link.objectiveID); err != nil {
			t.Fatalf("Link failed: %v", err)
		}
	}

	items, err := e.BuildInterleaved(ctx, sub.ID, 10)
	if err != nil {
		t.Fatalf("BuildInterleaved failed: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("Expected 3 items, got %d", len(items))
	}
	if items[0].Concept.Term != "ospf-areas" {
		t.Errorf("Weak concept in heavy domain should rank first, got %q", items[0].Concept.Term)
	}
	if items[0].ObjectiveCode != "1.1" || items[0].ExamWeight != 0.4 {
		t.Errorf("Item metadata wrong: %+v", items[0])
	}
	if items[len(items)-1].Concept.Term != "static-routes" {
		t.Errorf("Mastered concept should rank last, got %q", items[len(items)-1].Concept.Term)
	}
}

func TestReadinessWeighting(t *testing.T) {
	e := newTestForge(t)
	ctx := context.Background()

	sub := &store.Subject{Name: "Sec+"}
	if err := e.Store.CreateSubject(sub); err != nil {
		t.Fatalf("CreateSubject failed: %v", err)
	}
	objA := &store.Objective{SubjectID: sub.ID, Code: "1.0", Domain: "threats", ExamWeight: 0.6}
	objB := &store.Objective{SubjectID: sub.ID, Code: "2.0", Domain: "crypto", ExamWeight: 0.4}
	for _, o := range []*store.Objective{objA, objB} {
		if err := e.Store.CreateObjective(o); err != nil {
			t.Fatalf("CreateObjective failed: %v", err)
		}
	}

	reviewed := addConcept(t, e, "phishing", 0.8)
	reviewed.ReviewCount = 2
	mustApplyState(t, e, reviewed)
	unreviewed := addConcept(t, e, "aes", 0.0)

	if err := e.Store.LinkConceptObjective(reviewed.ID, objA.ID); err != nil {
		t.Fatalf("Link failed: %v", err)
	}
	if err := e.Store.LinkConceptObjective(unreviewed.ID, objB.ID); err != nil {
		t.Fatalf("Link failed: %v", err)
	}

	rep, err := e.Readiness(ctx, sub.ID)
	if err != nil {
		t.Fatalf("Readiness failed: %v", err)
	}
	if rep.TotalConcepts != 2 || rep.ReviewedConcepts != 1 {
		t.Errorf("Counts wrong: %+v", rep)
	}
	if rep.Coverage != 0.5 {
		t.Errorf("Coverage = %v, want 0.5", rep.Coverage)
	}
	if len(rep.PerDomain) != 2 {
		t.Fatalf("Expected 2 domains, got %d", len(rep.PerDomain))
	}
	// Weighted mastery: (0.6*0.8 + 0.4*0.0) / 1.0 = 0.48.
	if diff := rep.WeightedMastery - 0.48; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("WeightedMastery = %v, want 0.48", rep.WeightedMastery)
	}
}

func TestCalibrationCounts(t *testing.T) {
	e := newTestForge(t)
	ctx := context.Background()
	c := addConcept(t, e, "vlan", 0.5)

	reviews := []ReviewInput{
		{WasCorrect: boolPtr(true), Confidence: 5},
		{WasCorrect: boolPtr(true), Confidence: 5},
		{WasCorrect: boolPtr(false), Confidence: 5},
		{WasCorrect: boolPtr(true), Confidence: 2},
		{WasCorrect: boolPtr(false), Confidence: 1},
		{Outcome: "reviewed", Confidence: 3}, // v1 review: excluded
	}
	for _, r := range reviews {
		if _, err := e.RecordReview(ctx, c.ID, r); err != nil {
			t.Fatalf("RecordReview failed: %v", err)
		}
	}

	rep, err := e.Calibration(ctx, "")
	if err != nil {
		t.Fatalf("Calibration failed: %v", err)
	}
	if rep.ConfidentCorrect != 2 || rep.ConfidentIncorrect != 1 ||
		rep.UnsureCorrect != 1 || rep.UnsureIncorrect != 1 {
		t.Errorf("Counts wrong: %+v", rep)
	}
	want := 1.0 / 3.0
	if diff := rep.OverconfidenceRate - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("OverconfidenceRate = %v, want %v", rep.OverconfidenceRate, want)
	}
}

// mustApplyState writes pre-arranged concept state directly, bypassing review
// scoring, so queue tests can stage exact conditions.
func mustApplyState(t *testing.T, e *Engine, c *store.Concept) {
	t.Helper()
	review := &store.Review{ConceptID: c.ID, Outcome: "reviewed", Confidence: 3}
	if err := e.Store.ApplyConceptReview(c, review, ""); err != nil {
		t.Fatalf("Failed to stage concept state: %v", err)
	}
}

func assertBucket(t *testing.T, name string, bucket []*store.Concept, wantTerm string) {
	t.Helper()
	if len(bucket) != 1 || bucket[0].Term != wantTerm {
		terms := make([]string, len(bucket))
		for i, c := range bucket {
			terms[i] = c.Term
		}
		t.Errorf("Bucket %s = %v, want [%s]", name, terms, wantTerm)
	}
}
