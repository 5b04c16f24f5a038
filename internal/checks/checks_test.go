package checks

import (
	"context"
	"testing"
	"time"

	"jaybrain/internal/config"
	"jaybrain/internal/store"
)

func newTestDeps(t *testing.T) Deps {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	return Deps{Store: s, Cfg: cfg}
}

func findCheck(t *testing.T, name string, cfg *config.Config) Check {
	t.Helper()
	for _, c := range BuiltIn(cfg) {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("Check %s not registered", name)
	return Check{}
}

func TestBuiltInSet(t *testing.T) {
	cfg := config.DefaultConfig()
	set := BuiltIn(cfg)
	want := []string{
		"forge_study_morning", "forge_study_evening", "exam_countdown",
		"stale_applications", "session_crash", "goal_staleness", "network_decay",
	}
	if len(set) != len(want) {
		t.Fatalf("Expected %d checks, got %d", len(want), len(set))
	}
	for i, name := range want {
		if set[i].Name != name {
			t.Errorf("Check %d = %q, want %q", i, set[i].Name, name)
		}
		if set[i].Window <= 0 {
			t.Errorf("Check %s has no rate-limit window", name)
		}
	}
}

func TestStudyCheckThreshold(t *testing.T) {
	deps := newTestDeps(t)
	ctx := context.Background()
	check := findCheck(t, "forge_study_morning", deps.Cfg)

	// Below threshold: quiet.
	addDueConcepts(t, deps.Store, 2)
	res, err := check.Run(ctx, deps)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Triggered {
		t.Error("Triggered below threshold")
	}

	addDueConcepts(t, deps.Store, 4)
	res, err = check.Run(ctx, deps)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !res.Triggered {
		t.Error("Did not trigger at threshold")
	}
	if res.Message == "" || res.Context["due"].(int) < 5 {
		t.Errorf("Result incomplete: %+v", res)
	}
}

func TestStudyCheckCrunchMode(t *testing.T) {
	deps := newTestDeps(t)
	deps.Cfg.Forge.ExamDate = time.Now().AddDate(0, 0, 3).Format("2006-01-02")
	check := findCheck(t, "forge_study_morning", deps.Cfg)

	// One due item is enough inside the final week.
	addDueConcepts(t, deps.Store, 1)
	res, err := check.Run(context.Background(), deps)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !res.Triggered {
		t.Error("Crunch mode must trigger on any due item")
	}
}

func TestExamCountdown(t *testing.T) {
	deps := newTestDeps(t)
	ctx := context.Background()
	check := findCheck(t, "exam_countdown", deps.Cfg)

	// No date configured: quiet.
	res, err := check.Run(ctx, deps)
	if err != nil || res.Triggered {
		t.Errorf("Unconfigured exam must be quiet: %+v err=%v", res, err)
	}

	// Far away: quiet.
	deps.Cfg.Forge.ExamDate = time.Now().AddDate(0, 2, 0).Format("2006-01-02")
	res, _ = check.Run(ctx, deps)
	if res.Triggered {
		t.Error("Triggered outside the 14-day horizon")
	}

	// Inside the horizon: fires.
	deps.Cfg.Forge.ExamDate = time.Now().AddDate(0, 0, 10).Format("2006-01-02")
	res, _ = check.Run(ctx, deps)
	if !res.Triggered {
		t.Error("Did not trigger inside the horizon")
	}
}

func TestStaleApplications(t *testing.T) {
	deps := newTestDeps(t)
	ctx := context.Background()
	check := findCheck(t, "stale_applications", deps.Cfg)

	board := &store.JobBoard{URL: "https://example.com/jobs", BoardType: "greenhouse"}
	if err := deps.Store.CreateJobBoard(board); err != nil {
		t.Fatalf("CreateJobBoard failed: %v", err)
	}
	posting := &store.JobPosting{BoardID: board.ID, Title: "Go engineer", Company: "Acme", URL: "https://example.com/1"}
	if err := deps.Store.CreateJobPosting(posting); err != nil {
		t.Fatalf("CreateJobPosting failed: %v", err)
	}
	app := &store.Application{PostingID: posting.ID, Status: "preparing"}
	if err := deps.Store.CreateApplication(app); err != nil {
		t.Fatalf("CreateApplication failed: %v", err)
	}
	if err := deps.Store.UpdateApplicationStatus(app.ID, "applied", ""); err != nil {
		t.Fatalf("UpdateApplicationStatus failed: %v", err)
	}

	// Applied today: quiet.
	res, err := check.Run(ctx, deps)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Triggered {
		t.Error("Fresh application flagged as stale")
	}

	// Backdate past the threshold.
	old := time.Now().UTC().AddDate(0, 0, -30)
	if err := deps.Store.UpdateRow("applications", app.ID, map[string]interface{}{"applied_date": old}); err != nil {
		t.Fatalf("Backdate failed: %v", err)
	}
	res, _ = check.Run(ctx, deps)
	if !res.Triggered {
		t.Error("Stale application not flagged")
	}
}

func TestSessionCrash(t *testing.T) {
	deps := newTestDeps(t)
	ctx := context.Background()
	check := findCheck(t, "session_crash", deps.Cfg)

	if err := deps.Store.UpsertClaudeSession("fresh", "/w", "", "", false); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	res, err := check.Run(ctx, deps)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Triggered {
		t.Error("Fresh heartbeat flagged as crash")
	}
}

func TestGoalStaleness(t *testing.T) {
	deps := newTestDeps(t)
	ctx := context.Background()
	check := findCheck(t, "goal_staleness", deps.Cfg)

	domain := &store.LifeDomain{Name: "health"}
	if err := deps.Store.CreateLifeDomain(domain); err != nil {
		t.Fatalf("CreateLifeDomain failed: %v", err)
	}
	goal := &store.LifeGoal{DomainID: domain.ID, Title: "run a 10k", Status: "active"}
	if err := deps.Store.CreateLifeGoal(goal); err != nil {
		t.Fatalf("CreateLifeGoal failed: %v", err)
	}

	res, err := check.Run(ctx, deps)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.Triggered {
		t.Error("Fresh goal flagged as stale")
	}
}

func TestNetworkDecay(t *testing.T) {
	deps := newTestDeps(t)
	ctx := context.Background()
	check := findCheck(t, "network_decay", deps.Cfg)

	overdue := time.Now().UTC().AddDate(0, -3, 0).Format(time.RFC3339)
	if _, err := deps.Store.AddEntity(&store.Entity{
		Name: "Sam", EntityType: "person",
		Properties: map[string]interface{}{
			"last_contact":         overdue,
			"decay_threshold_days": float64(30),
		},
	}); err != nil {
		t.Fatalf("AddEntity failed: %v", err)
	}
	// No threshold set: never flagged.
	if _, err := deps.Store.AddEntity(&store.Entity{
		Name: "Alex", EntityType: "person",
		Properties: map[string]interface{}{"last_contact": overdue},
	}); err != nil {
		t.Fatalf("AddEntity failed: %v", err)
	}

	res, err := check.Run(ctx, deps)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !res.Triggered {
		t.Fatal("Overdue contact not flagged")
	}
	people := res.Context["people"].([]string)
	if len(people) != 1 || people[0] != "Sam" {
		t.Errorf("Flagged wrong set: %v", people)
	}
}

func addDueConcepts(t *testing.T, s *store.Store, n int) {
	t.Helper()
	past := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < n; i++ {
		c := &store.Concept{Term: store.NewID(), Definition: "d", MasteryLevel: 0.5}
		if err := s.CreateConcept(c); err != nil {
			t.Fatalf("CreateConcept failed: %v", err)
		}
		c.NextReview = &past
		c.ReviewCount = 1
		review := &store.Review{ConceptID: c.ID, Outcome: "reviewed", Confidence: 3}
		if err := s.ApplyConceptReview(c, review, ""); err != nil {
			t.Fatalf("Failed to stage due concept: %v", err)
		}
	}
}
