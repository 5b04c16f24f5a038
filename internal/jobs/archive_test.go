package jobs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"jaybrain/internal/store"
)

const transcriptFixture = `{"type":"user","message":{"role":"user","content":"How do I renumber OSPF areas?"}}
{"type":"assistant","requestId":"r1","message":{"role":"assistant","content":[{"type":"text","text":"Change the area id on every interface in the area."}]}}
{"type":"progress","message":{}}
{"type":"user","message":{"role":"user","content":"Thanks."}}
`

func newArchiveTest(t *testing.T) (*Archiver, string) {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	transcripts := t.TempDir()
	archive := filepath.Join(t.TempDir(), "archive")
	return NewArchiver(s, transcripts, archive, 7), transcripts
}

func TestArchiverRendersTranscript(t *testing.T) {
	a, transcripts := newArchiveTest(t)
	path := filepath.Join(transcripts, "sess-abc.jsonl")
	if err := os.WriteFile(path, []byte(transcriptFixture), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	out, err := os.ReadFile(filepath.Join(a.ArchiveDir, "sess-abc.md"))
	if err != nil {
		t.Fatalf("archive file not written: %v", err)
	}
	text := string(out)

	if !strings.Contains(text, "session_id: sess-abc") {
		t.Errorf("missing frontmatter:\n%s", text)
	}
	if !strings.Contains(text, "turns: 3") {
		t.Errorf("expected 3 turns in frontmatter:\n%s", text)
	}
	if !strings.Contains(text, "## user") || !strings.Contains(text, "## assistant") {
		t.Errorf("missing role sections:\n%s", text)
	}
	if !strings.Contains(text, "renumber OSPF areas") {
		t.Errorf("turn content missing:\n%s", text)
	}

	done, err := a.Store.IsSessionArchived("sess-abc")
	if err != nil || !done {
		t.Errorf("session not marked archived: done=%v err=%v", done, err)
	}
}

func TestArchiverIdempotent(t *testing.T) {
	a, transcripts := newArchiveTest(t)
	path := filepath.Join(transcripts, "sess-xyz.jsonl")
	if err := os.WriteFile(path, []byte(transcriptFixture), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	outPath := filepath.Join(a.ArchiveDir, "sess-xyz.md")
	if err := os.Remove(outPath); err != nil {
		t.Fatal(err)
	}

	// Second run must skip the already-archived session.
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if _, err := os.Stat(outPath); !os.IsNotExist(err) {
		t.Error("archived session was re-rendered")
	}
}

func TestArchiverSkipsNonTranscripts(t *testing.T) {
	a, transcripts := newArchiveTest(t)
	if err := os.WriteFile(filepath.Join(transcripts, "notes.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if _, err := os.Stat(a.ArchiveDir); !os.IsNotExist(err) {
		entries, _ := os.ReadDir(a.ArchiveDir)
		if len(entries) != 0 {
			t.Errorf("unexpected archive output: %v", entries)
		}
	}
}

func TestArchiverMissingDirIsQuiet(t *testing.T) {
	a, _ := newArchiveTest(t)
	a.TranscriptsDir = filepath.Join(t.TempDir(), "nope")
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("missing transcripts dir should not error: %v", err)
	}
}
