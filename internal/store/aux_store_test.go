package store

import (
	"testing"
	"time"
)

func TestFeedSourceOptionalLastPolled(t *testing.T) {
	s := newTestStore(t)

	if err := s.AddFeedSource(&FeedSource{URL: "https://a.example/rss", Active: true}); err != nil {
		t.Fatalf("AddFeedSource without last_polled failed: %v", err)
	}
	polled := time.Now().UTC().Truncate(time.Second)
	if err := s.AddFeedSource(&FeedSource{URL: "https://b.example/rss", Active: true, LastPolled: &polled}); err != nil {
		t.Fatalf("AddFeedSource with last_polled failed: %v", err)
	}

	sources, err := s.ListFeedSources(true)
	if err != nil {
		t.Fatalf("ListFeedSources failed: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("Expected 2 sources, got %d", len(sources))
	}
	if sources[0].LastPolled != nil {
		t.Errorf("Never-polled source must have nil LastPolled: %+v", sources[0])
	}
	if sources[1].LastPolled == nil || !sources[1].LastPolled.Equal(polled) {
		t.Errorf("LastPolled did not round-trip: %+v", sources[1])
	}
}

func TestRecentFeedArticlesPublishedFallback(t *testing.T) {
	s := newTestStore(t)

	published := time.Now().UTC().Add(-2 * time.Hour).Truncate(time.Second)
	dated := &FeedArticle{SourceID: "src", Title: "dated", URL: "https://x.example/1", PublishedAt: published}
	if _, err := s.AddFeedArticle(dated); err != nil {
		t.Fatalf("AddFeedArticle failed: %v", err)
	}
	undated := &FeedArticle{SourceID: "src", Title: "undated", URL: "https://x.example/2"}
	if _, err := s.AddFeedArticle(undated); err != nil {
		t.Fatalf("AddFeedArticle failed: %v", err)
	}

	articles, err := s.RecentFeedArticles(time.Now().UTC().Add(-time.Hour), 10)
	if err != nil {
		t.Fatalf("RecentFeedArticles failed: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("Expected 2 articles, got %d", len(articles))
	}
	for _, a := range articles {
		switch a.Title {
		case "dated":
			if !a.PublishedAt.Equal(published) {
				t.Errorf("PublishedAt did not round-trip: got %v want %v", a.PublishedAt, published)
			}
		case "undated":
			if !a.PublishedAt.Equal(a.CreatedAt) {
				t.Errorf("Undated article must fall back to discovery time: %+v", a)
			}
		}
	}
}
