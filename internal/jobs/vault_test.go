package jobs

import (
	"strings"
	"testing"

	"jaybrain/internal/store"
)

func TestLinkOccurrencesBasic(t *testing.T) {
	got := linkOccurrences("Talked to Sam about the plan. Sam agreed.", "Sam", 3)
	want := "Talked to [[Sam]] about the plan. [[Sam]] agreed."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLinkOccurrencesCap(t *testing.T) {
	got := linkOccurrences("Sam Sam Sam Sam Sam", "Sam", 3)
	if n := strings.Count(got, "[[Sam]]"); n != 3 {
		t.Errorf("linked %d occurrences, want 3: %q", n, got)
	}
}

func TestLinkOccurrencesSkipsExistingLinks(t *testing.T) {
	got := linkOccurrences("Already [[Sam]] here, plain Sam there.", "Sam", 3)
	want := "Already [[Sam]] here, plain [[Sam]] there."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLinkOccurrencesWordBoundary(t *testing.T) {
	got := linkOccurrences("Samantha is not Sam.", "Sam", 3)
	want := "Samantha is not [[Sam]]."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLinkNotesLongestNameWins(t *testing.T) {
	notes := []*Note{{Title: "Meeting", Body: "Jay Smith joined the call."}}
	entities := []*store.Entity{
		{Name: "Jay"},
		{Name: "Jay Smith"},
	}
	linkNotes(notes, entities)
	if !strings.Contains(notes[0].Body, "[[Jay Smith]]") {
		t.Errorf("longer name not linked: %q", notes[0].Body)
	}
	if strings.Contains(notes[0].Body, "[[Jay]] Smith") {
		t.Errorf("shorter name linked inside longer match: %q", notes[0].Body)
	}
}

func TestLinkNotesSkipsSelfAndShortNames(t *testing.T) {
	notes := []*Note{{Title: "Sam", Body: "Sam wrote this about AI."}}
	entities := []*store.Entity{
		{Name: "Sam"},
		{Name: "AI"},
	}
	linkNotes(notes, entities)
	if strings.Contains(notes[0].Body, "[[") {
		t.Errorf("self or two-character name got linked: %q", notes[0].Body)
	}
}

func TestAppendBacklinks(t *testing.T) {
	sam := &Note{Title: "Sam", Body: "A person."}
	meeting := &Note{Title: "Standup", Body: "Discussed roadmap with [[Sam]]."}
	plan := &Note{Title: "Plan", Body: "Owner: [[Sam]]."}
	notes := []*Note{sam, meeting, plan}

	appendBacklinks(notes)

	if len(sam.Backlinks) != 2 {
		t.Fatalf("expected 2 backlinks, got %v", sam.Backlinks)
	}
	if sam.Backlinks[0] != "Plan" || sam.Backlinks[1] != "Standup" {
		t.Errorf("backlinks not sorted: %v", sam.Backlinks)
	}
	if len(meeting.Backlinks) != 0 {
		t.Errorf("unexpected backlinks on meeting: %v", meeting.Backlinks)
	}
}

func TestNoteRender(t *testing.T) {
	n := &Note{
		Title:     "Standup",
		Front:     map[string]string{"type": "memory", "id": "abc"},
		Body:      "Discussed roadmap with [[Sam]].",
		Backlinks: []string{"Plan"},
	}
	out := n.Render()

	if !strings.HasPrefix(out, "---\nid: abc\ntype: memory\n---\n") {
		t.Errorf("frontmatter wrong or unsorted:\n%s", out)
	}
	if !strings.Contains(out, "# Standup\n") {
		t.Errorf("missing title heading:\n%s", out)
	}
	if !strings.Contains(out, "## Backlinks\n\n- [[Plan]]\n") {
		t.Errorf("missing backlinks section:\n%s", out)
	}
}

func TestSafeFilename(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Plain Title", "Plain Title"},
		{"slash/and:colon", "slashandcolon"},
		{"dots.and-dashes_ok", "dots.and-dashes_ok"},
	}
	for _, tc := range cases {
		if got := safeFilename(tc.in); got != tc.want {
			t.Errorf("safeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
	if safeFilename("///") == "" {
		t.Error("fully-stripped name should still produce a filename")
	}
}

func TestNoteTitle(t *testing.T) {
	if got := noteTitle("First line\nsecond line", "fb"); got != "First line" {
		t.Errorf("got %q", got)
	}
	long := strings.Repeat("x", 100)
	if got := noteTitle(long, "fb"); len(got) > 60 {
		t.Errorf("title not truncated: %d chars", len(got))
	}
	if got := noteTitle("   ", "fb"); got != "fb" {
		t.Errorf("blank content should fall back, got %q", got)
	}
}
