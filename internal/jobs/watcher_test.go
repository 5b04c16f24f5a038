package jobs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"jaybrain/internal/store"
)

func TestIgnoredPath(t *testing.T) {
	cases := []struct {
		path string
		want bool
	}{
		{"/home/jay/project/main.go", false},
		{"/home/jay/project/__pycache__/mod.pyc", true},
		{"/home/jay/project/.git/objects/ab/cdef", true},
		{"/home/jay/project/node_modules/left-pad/index.js", true},
		{"/home/jay/project/.main.go.swp", true},
		{"/home/jay/project/draft.tmp", true},
		{"/home/jay/project/notes.md~", true},
		{"/home/jay/project/.git/config", false},
	}
	for _, tc := range cases {
		if got := ignoredPath(tc.path); got != tc.want {
			t.Errorf("ignoredPath(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

func TestWatcherLogsDeletions(t *testing.T) {
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	root := t.TempDir()
	victim := filepath.Join(root, "important.txt")
	if err := os.WriteFile(victim, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := NewDeletionWatcher(s, []string{root})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	// Give the watcher a moment to register its watches.
	time.Sleep(200 * time.Millisecond)
	if err := os.Remove(victim); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for {
		deletions, err := s.RecentFileDeletions(10)
		if err != nil {
			t.Fatalf("RecentFileDeletions: %v", err)
		}
		if len(deletions) > 0 {
			if deletions[0].Path != victim {
				t.Errorf("path = %q, want %q", deletions[0].Path, victim)
			}
			if deletions[0].EventType != "file_deleted" {
				t.Errorf("event type = %q", deletions[0].EventType)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("deletion never logged")
		}
		time.Sleep(25 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop on cancel")
	}
}

func TestWatcherIgnoresNoisyFiles(t *testing.T) {
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	root := t.TempDir()
	swap := filepath.Join(root, ".notes.md.swp")
	if err := os.WriteFile(swap, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := NewDeletionWatcher(s, []string{root})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	time.Sleep(200 * time.Millisecond)
	if err := os.Remove(swap); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)

	deletions, err := s.RecentFileDeletions(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(deletions) != 0 {
		t.Errorf("swap file deletion should be ignored, got %v", deletions)
	}
}
