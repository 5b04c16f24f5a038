package store

import (
	"testing"
	"time"
)

func TestCreateMemoryValidation(t *testing.T) {
	s := newTestStore(t)

	if err := s.CreateMemory(&Memory{Content: "   "}); err == nil {
		t.Error("Expected error for empty content")
	}
	if err := s.CreateMemory(&Memory{Content: "x", Category: "imaginary"}); err == nil {
		t.Error("Expected error for unknown category")
	}
	if err := s.CreateMemory(&Memory{Content: "x", Importance: 1.5}); err == nil {
		t.Error("Expected error for importance outside [0,1]")
	}

	m := &Memory{Content: "defaults apply"}
	if err := s.CreateMemory(m); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if m.Category != CategorySemantic {
		t.Errorf("Expected default category semantic, got %s", m.Category)
	}
	if m.ID == "" {
		t.Error("Expected generated id")
	}
}

func TestTouchMemory(t *testing.T) {
	s := newTestStore(t)

	m := &Memory{Content: "touch me", Importance: 0.5}
	if err := s.CreateMemory(m); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := s.TouchMemory(m.ID); err != nil {
		t.Fatalf("Touch failed: %v", err)
	}
	if err := s.TouchMemory(m.ID); err != nil {
		t.Fatalf("Second touch failed: %v", err)
	}

	got, err := s.GetMemory(m.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.AccessCount != 2 {
		t.Errorf("Expected access_count 2, got %d", got.AccessCount)
	}
	if got.LastAccessed == nil {
		t.Fatal("Expected last_accessed to be set")
	}
	if time.Since(*got.LastAccessed) > time.Minute {
		t.Errorf("last_accessed not recent: %v", got.LastAccessed)
	}
}

func TestArchiveMemory(t *testing.T) {
	s := newTestStore(t)

	m := &Memory{Content: "to be archived", Category: CategoryEpisodic, Importance: 0.3}
	if err := s.CreateMemory(m); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	vec := make([]float32, s.Dimensions())
	vec[0] = 1
	if err := s.UpsertVector(MemoryVecTable, m.ID, vec); err != nil {
		t.Fatalf("Upsert vector failed: %v", err)
	}

	if err := s.ArchiveMemory(m.ID, "low_relevance"); err != nil {
		t.Fatalf("Archive failed: %v", err)
	}

	if _, err := s.GetMemory(m.ID); err != ErrNotFound {
		t.Errorf("Live memory should be gone, got err=%v", err)
	}

	archived, err := s.GetArchivedMemory(m.ID)
	if err != nil {
		t.Fatalf("GetArchivedMemory failed: %v", err)
	}
	if archived.Content != "to be archived" || archived.ArchiveReason != "low_relevance" {
		t.Errorf("Archived copy wrong: %+v", archived)
	}

	// Vector and keyword rows cleaned up too.
	vecs, err := s.AllMemoryVectors()
	if err != nil {
		t.Fatalf("AllMemoryVectors failed: %v", err)
	}
	if _, ok := vecs[m.ID]; ok {
		t.Error("Vector row should be deleted on archive")
	}
	hits, err := s.SearchKeyword(MemoryFTSTable, "archived", 10)
	if err != nil {
		t.Fatalf("Keyword search failed: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("Keyword index should be cleared, got %d hits", len(hits))
	}

	if err := s.ArchiveMemory("nonexistent", "x"); err != ErrNotFound {
		t.Errorf("Expected ErrNotFound for missing id, got %v", err)
	}
}

func TestGetMemoriesPreservesOrder(t *testing.T) {
	s := newTestStore(t)

	var ids []string
	for _, content := range []string{"first", "second", "third"} {
		m := &Memory{Content: content, Importance: 0.5}
		if err := s.CreateMemory(m); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		ids = append(ids, m.ID)
	}

	// Request out of creation order, with a missing id mixed in.
	got, err := s.GetMemories([]string{ids[2], "missing", ids[0]})
	if err != nil {
		t.Fatalf("GetMemories failed: %v", err)
	}
	if len(got) != 2 || got[0].Content != "third" || got[1].Content != "first" {
		t.Errorf("Order not preserved: %v", got)
	}
}
