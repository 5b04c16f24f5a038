package pulse

import (
	"context"
	"testing"

	"jaybrain/internal/store"
)

func newTestReader(t *testing.T) *Reader {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return NewReader(s, t.TempDir())
}

func TestActiveSessionsEmpty(t *testing.T) {
	r := newTestReader(t)
	res, err := r.ActiveSessions(context.Background())
	if err != nil {
		t.Fatalf("ActiveSessions failed: %v", err)
	}
	if res.Status != "ok" || len(res.Active) != 0 || len(res.RecentlyEnded) != 0 {
		t.Errorf("Expected empty ok result, got %+v", res)
	}
}

func TestActiveSessionsSplit(t *testing.T) {
	r := newTestReader(t)
	ctx := context.Background()

	if err := r.Store.UpsertClaudeSession("live-1", "/work", "Bash", "command=ls", true); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := r.Store.UpsertClaudeSession("gone-1", "/work", "", "", false); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := r.Store.EndClaudeSession("gone-1"); err != nil {
		t.Fatalf("End failed: %v", err)
	}

	res, err := r.ActiveSessions(ctx)
	if err != nil {
		t.Fatalf("ActiveSessions failed: %v", err)
	}
	if len(res.Active) != 1 || res.Active[0].SessionID != "live-1" {
		t.Errorf("Expected live-1 active, got %+v", res.Active)
	}
	if len(res.RecentlyEnded) != 1 || res.RecentlyEnded[0].SessionID != "gone-1" {
		t.Errorf("Expected gone-1 recently ended, got %+v", res.RecentlyEnded)
	}
	if res.Active[0].MinutesSinceHeartbeat < 0 {
		t.Errorf("Negative heartbeat age: %f", res.Active[0].MinutesSinceHeartbeat)
	}
}

func TestQuerySessionStatuses(t *testing.T) {
	r := newTestReader(t)
	ctx := context.Background()

	for _, id := range []string{"abc-111", "abc-222", "xyz-333"} {
		if err := r.Store.UpsertClaudeSession(id, "/w", "", "", false); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}
	if err := r.Store.UpsertClaudeSession("xyz-333", "/w", "Read", "file_path=/a", true); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	res, err := r.QuerySession(ctx, "xyz-333")
	if err != nil {
		t.Fatalf("QuerySession failed: %v", err)
	}
	if res.Status != "ok" || res.Session.SessionID != "xyz-333" {
		t.Errorf("Expected exact match, got %+v", res)
	}
	if res.ToolUsage == nil {
		t.Error("Expected tool usage for matched session")
	}

	res, err = r.QuerySession(ctx, "xyz")
	if err != nil {
		t.Fatalf("QuerySession failed: %v", err)
	}
	if res.Status != "ok" {
		t.Errorf("Single partial match should resolve, got %q", res.Status)
	}

	res, err = r.QuerySession(ctx, "abc")
	if err != nil {
		t.Fatalf("QuerySession failed: %v", err)
	}
	if res.Status != "ambiguous" || len(res.Matches) != 2 {
		t.Errorf("Expected ambiguous with 2 matches, got %+v", res)
	}

	res, err = r.QuerySession(ctx, "nope")
	if err != nil {
		t.Fatalf("QuerySession failed: %v", err)
	}
	if res.Status != "not_found" {
		t.Errorf("Expected not_found, got %q", res.Status)
	}

	if _, err := r.QuerySession(ctx, "  "); err == nil {
		t.Error("Expected validation error for blank needle")
	}
}
