package pulse

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"jaybrain/internal/store"
)

func writeTranscript(t *testing.T, dir, sessionID string, lines []string) {
	t.Helper()
	path := filepath.Join(dir, sessionID+".jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("Failed to write transcript: %v", err)
	}
}

func newTranscriptReader(t *testing.T) *Reader {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return NewReader(s, t.TempDir())
}

func userLine(text string) string {
	return `{"type":"user","message":{"role":"user","content":` + jsonString(text) + `}}`
}

func assistantLine(requestID, text string) string {
	return `{"type":"assistant","requestId":"` + requestID + `","message":{"role":"assistant","content":[{"type":"text","text":` + jsonString(text) + `}]}}`
}

func jsonString(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

func TestParseTranscriptFiltersNoise(t *testing.T) {
	r := newTranscriptReader(t)
	writeTranscript(t, r.TranscriptsDir, "sess-1", []string{
		`{"type":"progress","message":{}}`,
		`{"type":"file-history-snapshot","message":{}}`,
		userLine("hello there"),
		// Tool-only assistant turn: no text block, so no turn.
		`{"type":"assistant","requestId":"r0","message":{"role":"assistant","content":[{"type":"tool_use","name":"Bash"}]}}`,
		assistantLine("r1", "hi, what can I do?"),
		// User turn as block list.
		`{"type":"user","message":{"role":"user","content":[{"type":"text","text":"run the tests"}]}}`,
		`not valid json at all`,
	})

	res, err := r.SessionContext(context.Background(), "sess-1", ContextOpts{})
	if err != nil {
		t.Fatalf("SessionContext failed: %v", err)
	}
	if res.TotalTurns != 3 {
		t.Fatalf("Expected 3 turns after filtering, got %d", res.TotalTurns)
	}
	if res.Turns[0].Text != "hello there" || res.Turns[0].Role != "user" {
		t.Errorf("First turn wrong: %+v", res.Turns[0])
	}
	if res.Turns[2].Text != "run the tests" {
		t.Errorf("Last turn wrong: %+v", res.Turns[2])
	}
}

func TestParseTranscriptStreamingDedupe(t *testing.T) {
	r := newTranscriptReader(t)
	writeTranscript(t, r.TranscriptsDir, "sess-2", []string{
		userLine("question"),
		assistantLine("req-a", "partial ans"),
		assistantLine("req-a", "partial answer, now compl"),
		assistantLine("req-a", "partial answer, now complete"),
		userLine("followup"),
	})

	res, err := r.SessionContext(context.Background(), "sess-2", ContextOpts{})
	if err != nil {
		t.Fatalf("SessionContext failed: %v", err)
	}
	if res.TotalTurns != 3 {
		t.Fatalf("Expected dedupe to 3 turns, got %d", res.TotalTurns)
	}
	if res.Turns[1].Text != "partial answer, now complete" {
		t.Errorf("Dedupe kept wrong variant: %q", res.Turns[1].Text)
	}
}

func TestSessionContextTruncatesTurns(t *testing.T) {
	r := newTranscriptReader(t)
	long := strings.Repeat("a", TurnTruncateAt+500)
	writeTranscript(t, r.TranscriptsDir, "sess-3", []string{userLine(long)})

	res, err := r.SessionContext(context.Background(), "sess-3", ContextOpts{})
	if err != nil {
		t.Fatalf("SessionContext failed: %v", err)
	}
	if len(res.Turns[0].Text) != TurnTruncateAt {
		t.Errorf("Turn not truncated: len=%d", len(res.Turns[0].Text))
	}
}

func TestSessionContextTruncatesOnRuneBoundary(t *testing.T) {
	r := newTranscriptReader(t)
	long := strings.Repeat("é", TurnTruncateAt+100)
	writeTranscript(t, r.TranscriptsDir, "sess-3b", []string{userLine(long)})

	res, err := r.SessionContext(context.Background(), "sess-3b", ContextOpts{})
	if err != nil {
		t.Fatalf("SessionContext failed: %v", err)
	}
	got := res.Turns[0].Text
	if !utf8.ValidString(got) {
		t.Error("Truncation split a multi-byte character")
	}
	if utf8.RuneCountInString(got) != TurnTruncateAt {
		t.Errorf("Expected %d runes, got %d", TurnTruncateAt, utf8.RuneCountInString(got))
	}
}

func TestSessionContextLastNWithOpening(t *testing.T) {
	r := newTranscriptReader(t)
	var lines []string
	for i := 0; i < 12; i++ {
		lines = append(lines, userLine("turn number "+string(rune('a'+i))))
	}
	writeTranscript(t, r.TranscriptsDir, "sess-4", lines)

	res, err := r.SessionContext(context.Background(), "sess-4", ContextOpts{})
	if err != nil {
		t.Fatalf("SessionContext failed: %v", err)
	}
	if len(res.Turns) != DefaultLastN {
		t.Errorf("Expected %d final turns, got %d", DefaultLastN, len(res.Turns))
	}
	if len(res.Opening) != OpeningTurns {
		t.Errorf("Expected %d opening turns, got %d", OpeningTurns, len(res.Opening))
	}
	if res.Opening[0].Text != "turn number a" {
		t.Errorf("Opening starts wrong: %q", res.Opening[0].Text)
	}
	if res.Turns[len(res.Turns)-1].Text != "turn number l" {
		t.Errorf("Final turn wrong: %q", res.Turns[len(res.Turns)-1].Text)
	}
}

func TestSessionContextSnippetWindow(t *testing.T) {
	r := newTranscriptReader(t)
	var lines []string
	for i := 0; i < 10; i++ {
		text := "filler"
		if i == 5 {
			text = "we decided to use SQLite here"
		}
		lines = append(lines, userLine(text))
	}
	writeTranscript(t, r.TranscriptsDir, "sess-5", lines)

	res, err := r.SessionContext(context.Background(), "sess-5", ContextOpts{Snippet: "sqlite", Window: 2})
	if err != nil {
		t.Fatalf("SessionContext failed: %v", err)
	}
	if res.Status != "ok" || res.MatchIndex != 5 {
		t.Errorf("Snippet match wrong: status=%q index=%d", res.Status, res.MatchIndex)
	}
	if len(res.Turns) != 5 {
		t.Errorf("Expected 5-turn window, got %d", len(res.Turns))
	}

	res, err = r.SessionContext(context.Background(), "sess-5", ContextOpts{Snippet: "nonexistent phrase"})
	if err != nil {
		t.Fatalf("SessionContext failed: %v", err)
	}
	if res.Status != "snippet_not_found" {
		t.Errorf("Expected snippet_not_found fallback, got %q", res.Status)
	}
	if len(res.Turns) != DefaultLastN {
		t.Errorf("Fallback should return last %d turns, got %d", DefaultLastN, len(res.Turns))
	}
}

func TestFindTranscriptPrefixes(t *testing.T) {
	r := newTranscriptReader(t)
	writeTranscript(t, r.TranscriptsDir, "aaa-111", []string{userLine("x")})
	writeTranscript(t, r.TranscriptsDir, "aaa-222", []string{userLine("y")})
	writeTranscript(t, r.TranscriptsDir, "bbb-333", []string{userLine("z")})

	if _, id, err := r.findTranscript("bbb"); err != nil || id != "bbb-333" {
		t.Errorf("Prefix resolve failed: id=%q err=%v", id, err)
	}
	if _, _, err := r.findTranscript("aaa"); err == nil {
		t.Error("Expected ambiguity error for shared prefix")
	}
	if _, _, err := r.findTranscript("zzz"); err == nil {
		t.Error("Expected not-found error")
	}
}
