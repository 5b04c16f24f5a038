package jobs

import (
	"strings"
	"testing"
	"time"
)

const rssFixture = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Example Blog</title>
    <item>
      <title>First Post</title>
      <link>https://example.com/first</link>
      <description>&lt;p&gt;Hello &lt;b&gt;world&lt;/b&gt;&lt;/p&gt;</description>
      <pubDate>Mon, 24 Aug 2026 10:00:00 +0000</pubDate>
    </item>
    <item>
      <title>Second Post</title>
      <link>https://example.com/second</link>
      <description>Plain text summary</description>
      <pubDate>Tue, 25 Aug 2026 09:30:00 +0000</pubDate>
    </item>
  </channel>
</rss>`

const atomFixture = `<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Example Feed</title>
  <entry>
    <title>Atom Entry</title>
    <link rel="alternate" href="https://example.com/atom-entry"/>
    <link rel="self" href="https://example.com/feed.xml"/>
    <summary>An atom summary</summary>
    <updated>2026-08-24T12:00:00Z</updated>
  </entry>
</feed>`

func TestParseFeedRSS(t *testing.T) {
	items, err := ParseFeed([]byte(rssFixture))
	if err != nil {
		t.Fatalf("ParseFeed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	first := items[0]
	if first.Title != "First Post" {
		t.Errorf("title = %q", first.Title)
	}
	if first.Link != "https://example.com/first" {
		t.Errorf("link = %q", first.Link)
	}
	if first.Summary != "Hello world" {
		t.Errorf("summary = %q, want markup stripped", first.Summary)
	}
	want := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	if !first.Published.Equal(want) {
		t.Errorf("published = %v, want %v", first.Published, want)
	}
}

func TestParseFeedAtom(t *testing.T) {
	items, err := ParseFeed([]byte(atomFixture))
	if err != nil {
		t.Fatalf("ParseFeed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].Title != "Atom Entry" {
		t.Errorf("title = %q", items[0].Title)
	}
	if items[0].Link != "https://example.com/atom-entry" {
		t.Errorf("link = %q, want the alternate link, not self", items[0].Link)
	}
	if items[0].Summary != "An atom summary" {
		t.Errorf("summary = %q", items[0].Summary)
	}
}

func TestParseFeedGarbage(t *testing.T) {
	if _, err := ParseFeed([]byte("not xml at all")); err == nil {
		t.Fatal("expected an error for a non-feed body")
	}
	if _, err := ParseFeed([]byte("<html><body>a page</body></html>")); err == nil {
		t.Fatal("expected an error for HTML that is neither RSS nor Atom")
	}
}

func TestStripHTML(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"<p>Hello <b>world</b></p>", 500, "Hello world"},
		{"no markup here", 500, "no markup here"},
		{"  spaced \n\n  out  ", 500, "spaced out"},
		{"<div>one</div><div>two</div>", 500, "one two"},
		{"abcdefghij", 5, "abcde"},
	}
	for _, tc := range cases {
		if got := StripHTML(tc.in, tc.max); got != tc.want {
			t.Errorf("StripHTML(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
		}
	}
}

func TestParseFeedTimeLayouts(t *testing.T) {
	cases := []string{
		"Mon, 24 Aug 2026 10:00:00 +0000",
		"2026-08-24T10:00:00Z",
		"2026-08-24",
	}
	for _, s := range cases {
		if parseFeedTime(s).IsZero() {
			t.Errorf("parseFeedTime(%q) returned zero", s)
		}
	}
	if !parseFeedTime("yesterday-ish").IsZero() {
		t.Error("unparseable time should be zero")
	}
}

func TestStripHTMLTruncatesRunes(t *testing.T) {
	got := StripHTML(strings.Repeat("é", 10), 4)
	if got != "éééé" {
		t.Errorf("rune truncation broke multibyte text: %q", got)
	}
}
