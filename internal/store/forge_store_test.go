package store

import (
	"testing"
	"time"
)

func TestCreateConceptBumpsStreak(t *testing.T) {
	s := newTestStore(t)

	c := &Concept{Term: "CIDR", Definition: "classless inter-domain routing"}
	if err := s.CreateConcept(c); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if c.Difficulty != "intermediate" || c.BloomLevel != "understand" {
		t.Errorf("Defaults not applied: %+v", c)
	}

	// Concept is keyword searchable by term and definition.
	hits, err := s.SearchKeyword(ConceptFTSTable, "routing", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != c.ID {
		t.Errorf("Expected concept in keyword index, got %v", hits)
	}

	if err := s.CreateConcept(&Concept{Term: "x", Definition: "y", Difficulty: "impossible"}); err == nil {
		t.Error("Expected error for unknown difficulty")
	}
}

func TestCreateConceptPreservesSeededProgress(t *testing.T) {
	s := newTestStore(t)

	// Imports carry prior progress; create must not zero it.
	c := &Concept{
		Term:         "BGP",
		Definition:   "path-vector routing protocol",
		MasteryLevel: 0.4,
		ReviewCount:  3,
		CorrectCount: 2,
	}
	if err := s.CreateConcept(c); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := s.GetConcept(c.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.MasteryLevel != 0.4 || got.ReviewCount != 3 || got.CorrectCount != 2 {
		t.Errorf("Seeded progress lost: %+v", got)
	}
}

func TestApplyConceptReview(t *testing.T) {
	s := newTestStore(t)

	c := &Concept{Term: "OSPF", Definition: "link-state routing protocol"}
	if err := s.CreateConcept(c); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	now := time.Now().UTC()
	next := now.Add(72 * time.Hour)
	c.MasteryLevel = 0.25
	c.ReviewCount = 1
	c.CorrectCount = 1
	c.LastReviewed = &now
	c.NextReview = &next

	correct := true
	r := &Review{
		ConceptID:  c.ID,
		Outcome:    OutcomeUnderstood,
		Confidence: 4,
		WasCorrect: &correct,
	}
	if err := s.ApplyConceptReview(c, r, ""); err != nil {
		t.Fatalf("ApplyConceptReview failed: %v", err)
	}

	got, err := s.GetConcept(c.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.MasteryLevel != 0.25 || got.ReviewCount != 1 || got.CorrectCount != 1 {
		t.Errorf("Concept state not persisted: %+v", got)
	}
	if got.NextReview == nil {
		t.Fatal("next_review not persisted")
	}

	reviews, err := s.ListReviews("", 10)
	if err != nil {
		t.Fatalf("ListReviews failed: %v", err)
	}
	if len(reviews) != 1 {
		t.Fatalf("Expected 1 review, got %d", len(reviews))
	}
	if reviews[0].WasCorrect == nil || !*reviews[0].WasCorrect {
		t.Errorf("was_correct lost: %+v", reviews[0])
	}

	dates, err := s.StreakDates()
	if err != nil {
		t.Fatalf("StreakDates failed: %v", err)
	}
	if len(dates) != 1 {
		t.Errorf("Expected today's streak date, got %v", dates)
	}
}

func TestApplyConceptReviewRecordsErrorPattern(t *testing.T) {
	s := newTestStore(t)

	c := &Concept{Term: "BGP", Definition: "path-vector protocol"}
	if err := s.CreateConcept(c); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	wrong := false
	r := &Review{ConceptID: c.ID, Outcome: OutcomeStruggled, Confidence: 4, WasCorrect: &wrong, Notes: "confused with OSPF"}
	if err := s.ApplyConceptReview(c, r, "misconception"); err != nil {
		t.Fatalf("ApplyConceptReview failed: %v", err)
	}

	patterns, err := s.ListErrorPatterns("misconception", 10)
	if err != nil {
		t.Fatalf("ListErrorPatterns failed: %v", err)
	}
	if len(patterns) != 1 || patterns[0].ConceptID != c.ID {
		t.Errorf("Error pattern not recorded: %v", patterns)
	}

	if err := s.ApplyConceptReview(&Concept{ID: "missing"}, &Review{ConceptID: "missing", Outcome: OutcomeReviewed}, ""); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound for missing concept, got %v", err)
	}
}

func TestDueAndNewConcepts(t *testing.T) {
	s := newTestStore(t)

	sub := &Subject{Name: "networking"}
	if err := s.CreateSubject(sub); err != nil {
		t.Fatalf("CreateSubject failed: %v", err)
	}

	fresh := &Concept{Term: "new one", Definition: "never reviewed", SubjectID: sub.ID}
	if err := s.CreateConcept(fresh); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	due := &Concept{Term: "due one", Definition: "past due", SubjectID: sub.ID}
	if err := s.CreateConcept(due); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	past := time.Now().UTC().Add(-24 * time.Hour)
	due.ReviewCount = 1
	due.LastReviewed = &past
	due.NextReview = &past
	if err := s.ApplyConceptReview(due, &Review{ConceptID: due.ID, Outcome: OutcomeReviewed, Confidence: 3}, ""); err != nil {
		t.Fatalf("ApplyConceptReview failed: %v", err)
	}

	dueList, err := s.DueConcepts(sub.ID, time.Now().UTC(), 10)
	if err != nil {
		t.Fatalf("DueConcepts failed: %v", err)
	}
	if len(dueList) != 1 || dueList[0].ID != due.ID {
		t.Errorf("Due list wrong: %v", dueList)
	}

	newList, err := s.NewConcepts(sub.ID, 10)
	if err != nil {
		t.Fatalf("NewConcepts failed: %v", err)
	}
	if len(newList) != 1 || newList[0].ID != fresh.ID {
		t.Errorf("New list wrong: %v", newList)
	}
}

func TestConceptObjectiveLinks(t *testing.T) {
	s := newTestStore(t)

	sub := &Subject{Name: "security+"}
	if err := s.CreateSubject(sub); err != nil {
		t.Fatalf("CreateSubject failed: %v", err)
	}
	obj := &Objective{SubjectID: sub.ID, Code: "1.2", Title: "threat actors", ExamWeight: 0.12}
	if err := s.CreateObjective(obj); err != nil {
		t.Fatalf("CreateObjective failed: %v", err)
	}
	c := &Concept{Term: "APT", Definition: "advanced persistent threat", SubjectID: sub.ID}
	if err := s.CreateConcept(c); err != nil {
		t.Fatalf("CreateConcept failed: %v", err)
	}

	if err := s.LinkConceptObjective(c.ID, obj.ID); err != nil {
		t.Fatalf("Link failed: %v", err)
	}
	// Idempotent.
	if err := s.LinkConceptObjective(c.ID, obj.ID); err != nil {
		t.Fatalf("Re-link failed: %v", err)
	}

	objs, err := s.ObjectivesForConcept(c.ID)
	if err != nil {
		t.Fatalf("ObjectivesForConcept failed: %v", err)
	}
	if len(objs) != 1 || objs[0].Code != "1.2" {
		t.Errorf("Linked objectives wrong: %v", objs)
	}

	concepts, err := s.ConceptsForObjective(obj.ID)
	if err != nil {
		t.Fatalf("ConceptsForObjective failed: %v", err)
	}
	if len(concepts) != 1 || concepts[0].ID != c.ID {
		t.Errorf("Linked concepts wrong: %v", concepts)
	}
}
