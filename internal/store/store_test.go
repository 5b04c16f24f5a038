package store

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenCreatesSchema(t *testing.T) {
	s := newTestStore(t)

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}

	requiredTables := []string{"memories", "tasks", "forge_concepts", "graph_entities", "claude_sessions"}
	for _, table := range requiredTables {
		if _, ok := stats[table]; !ok {
			t.Errorf("Stats missing table: %s", table)
		}
	}
}

func TestOpenConcurrent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "race.db")

	// Several processes can race to apply the migration chain; the immediate
	// transaction serialises them and every opener must succeed.
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		go func() {
			s, err := Open(path)
			if err == nil {
				s.Close()
			}
			errs <- err
		}()
	}
	for i := 0; i < 4; i++ {
		if err := <-errs; err != nil {
			t.Errorf("Concurrent open failed: %v", err)
		}
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("First open failed: %v", err)
	}
	if err := s1.CreateMemory(&Memory{Content: "survives reopen", Importance: 0.5}); err != nil {
		t.Fatalf("Failed to create memory: %v", err)
	}
	s1.Close()

	// Second open must see a current schema and apply nothing destructive.
	s2, err := Open(path)
	if err != nil {
		t.Fatalf("Second open failed: %v", err)
	}
	defer s2.Close()

	memories, err := s2.ListMemories("", 10)
	if err != nil {
		t.Fatalf("Failed to list memories: %v", err)
	}
	if len(memories) != 1 || memories[0].Content != "survives reopen" {
		t.Errorf("Expected 1 memory to survive reopen, got %d", len(memories))
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("Store file missing: %v", err)
	}
}

func TestNewID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewID()
		if len(id) != 12 {
			t.Fatalf("Expected 12-char id, got %q", id)
		}
		if seen[id] {
			t.Fatalf("Duplicate id generated: %s", id)
		}
		seen[id] = true
	}
}

func TestListHelpers(t *testing.T) {
	if got := marshalList(nil); got != "[]" {
		t.Errorf("marshalList(nil) = %q, want []", got)
	}
	round := unmarshalList(marshalList([]string{"a", "b"}))
	if len(round) != 2 || round[0] != "a" || round[1] != "b" {
		t.Errorf("List round-trip failed: %v", round)
	}
	if unmarshalList("not json") != nil {
		t.Error("Corrupt list should unmarshal to nil")
	}

	merged := unionLists([]string{"a", "b"}, []string{"b", "c", ""})
	if len(merged) != 3 || merged[0] != "a" || merged[1] != "b" || merged[2] != "c" {
		t.Errorf("unionLists order wrong: %v", merged)
	}
}
