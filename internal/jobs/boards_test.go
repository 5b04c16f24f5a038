package jobs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"jaybrain/internal/store"
)

func newBoardTest(t *testing.T, body *atomic.Value) (*BoardWatcher, *store.JobBoard) {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body.Load().(string)))
	}))
	t.Cleanup(srv.Close)

	u, _ := url.Parse(srv.URL)
	board := &store.JobBoard{URL: srv.URL, BoardType: "greenhouse", Active: true}
	if err := s.CreateJobBoard(board); err != nil {
		t.Fatalf("CreateJobBoard: %v", err)
	}

	w := &BoardWatcher{
		Store:      s,
		AllowHosts: []string{u.Hostname()},
		Client:     &http.Client{Timeout: 5 * time.Second},
	}
	return w, board
}

func TestBoardFirstCheckBaselinesWithoutFlagging(t *testing.T) {
	var body atomic.Value
	body.Store("<html>3 openings</html>")
	w, board := newBoardTest(t, &body)

	var notified atomic.Int32
	w.Notify = func(ctx context.Context, title, message string) error {
		notified.Add(1)
		return nil
	}

	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if notified.Load() != 0 {
		t.Error("first check should only record the baseline")
	}

	got, err := w.Store.GetJobBoard(board.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ContentHash == "" || got.LastChecked == nil {
		t.Errorf("baseline not recorded: hash=%q checked=%v", got.ContentHash, got.LastChecked)
	}
}

func TestBoardChangeDetection(t *testing.T) {
	var body atomic.Value
	body.Store("<html>3 openings</html>")
	w, board := newBoardTest(t, &body)

	var notified atomic.Int32
	w.Notify = func(ctx context.Context, title, message string) error {
		notified.Add(1)
		return nil
	}

	ctx := context.Background()
	if err := w.Run(ctx); err != nil {
		t.Fatalf("baseline run: %v", err)
	}
	first, _ := w.Store.GetJobBoard(board.ID)

	// Unchanged page: no notification, hash stable.
	if err := w.Run(ctx); err != nil {
		t.Fatalf("unchanged run: %v", err)
	}
	if notified.Load() != 0 {
		t.Error("unchanged board should not notify")
	}

	body.Store("<html>4 openings</html>")
	if err := w.Run(ctx); err != nil {
		t.Fatalf("changed run: %v", err)
	}
	if notified.Load() != 1 {
		t.Errorf("changed board should notify once, got %d", notified.Load())
	}

	second, _ := w.Store.GetJobBoard(board.ID)
	if second.ContentHash == first.ContentHash {
		t.Error("content hash not updated after change")
	}
}

func TestBoardBadStatusSkipped(t *testing.T) {
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	t.Cleanup(srv.Close)
	u, _ := url.Parse(srv.URL)

	board := &store.JobBoard{URL: srv.URL, BoardType: "lever", Active: true}
	if err := s.CreateJobBoard(board); err != nil {
		t.Fatal(err)
	}

	w := &BoardWatcher{
		Store:      s,
		AllowHosts: []string{u.Hostname()},
		Client:     &http.Client{Timeout: 5 * time.Second},
	}
	// A failing board must not fail the whole run.
	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, _ := s.GetJobBoard(board.ID)
	if got.LastChecked != nil {
		t.Error("failed fetch should not stamp last_checked")
	}
}
