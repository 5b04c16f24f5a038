package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/time/rate"
)

type captureTransport struct {
	titles   []string
	messages []string
}

func (c *captureTransport) Notify(_ context.Context, title, message string) error {
	c.titles = append(c.titles, title)
	c.messages = append(c.messages, message)
	return nil
}

func newTestPaced(transport Notifier, maxLen int) *Paced {
	return &Paced{
		transport: transport,
		limiter:   rate.NewLimiter(rate.Inf, 1),
		maxLen:    maxLen,
	}
}

func TestPacedShortMessageSingleChunk(t *testing.T) {
	sink := &captureTransport{}
	p := newTestPaced(sink, 100)

	if err := p.Notify(context.Background(), "study", "5 concepts due"); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if len(sink.messages) != 1 || sink.messages[0] != "5 concepts due" {
		t.Errorf("Unexpected delivery: %+v", sink.messages)
	}
	if sink.titles[0] != "study" {
		t.Errorf("Title altered: %q", sink.titles[0])
	}
}

func TestPacedChunksLongMessage(t *testing.T) {
	sink := &captureTransport{}
	p := newTestPaced(sink, 50)
	long := strings.Repeat("line of report text\n", 10)

	if err := p.Notify(context.Background(), "report", long); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if len(sink.messages) < 2 {
		t.Fatalf("Expected multiple chunks, got %d", len(sink.messages))
	}
	for i, m := range sink.messages {
		if len(m) > 50 {
			t.Errorf("Chunk %d exceeds cap: %d bytes", i, len(m))
		}
	}
	if !strings.Contains(sink.titles[0], "(1/") {
		t.Errorf("Chunked titles should be numbered: %q", sink.titles[0])
	}
}

func TestChunkPreservesContent(t *testing.T) {
	s := strings.Repeat("aaaa\n", 30)
	chunks := chunk(s, 60)
	for i, c := range chunks {
		if len(c) > 60 {
			t.Errorf("Chunk %d oversized: %d bytes", i, len(c))
		}
	}
	whole := strings.ReplaceAll(strings.Join(chunks, "\n"), "\n", "")
	if whole != strings.ReplaceAll(s, "\n", "") {
		t.Error("Chunking lost content")
	}
}

func TestWebhookDelivery(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, []string{"127.0.0.1"})
	if err := w.Notify(context.Background(), "check", "hello"); err != nil {
		t.Fatalf("Webhook notify failed: %v", err)
	}
	if got["title"] != "check" || got["message"] != "hello" {
		t.Errorf("Payload wrong: %+v", got)
	}
}

func TestWebhookRejectsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	w := NewWebhook(srv.URL, []string{"127.0.0.1"})
	if err := w.Notify(context.Background(), "check", "hello"); err == nil {
		t.Error("Expected error for 502 response")
	}
}

func TestStderrTransport(t *testing.T) {
	var sb strings.Builder
	s := &Stderr{out: &sb}
	if err := s.Notify(context.Background(), "daily", "briefing body"); err != nil {
		t.Fatalf("Stderr notify failed: %v", err)
	}
	if !strings.Contains(sb.String(), "daily") || !strings.Contains(sb.String(), "briefing body") {
		t.Errorf("Output missing fields: %q", sb.String())
	}
}
