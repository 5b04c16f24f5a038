package hooks

import (
	"context"
	"strings"
	"testing"

	"jaybrain/internal/store"
)

func newTestIngestor(t *testing.T) *Ingestor {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return NewIngestor(s)
}

func TestHandleEmptyPayload(t *testing.T) {
	in := newTestIngestor(t)
	if err := in.Handle(context.Background(), nil); err != nil {
		t.Errorf("Empty payload should no-op, got %v", err)
	}
	if err := in.Handle(context.Background(), []byte("   \n")); err != nil {
		t.Errorf("Whitespace payload should no-op, got %v", err)
	}
}

func TestHandleSessionLifecycle(t *testing.T) {
	in := newTestIngestor(t)
	ctx := context.Background()

	start := `{"hook_event_name":"SessionStart","session_id":"abc-123","cwd":"/home/jay/work"}`
	if err := in.Handle(ctx, []byte(start)); err != nil {
		t.Fatalf("session_start failed: %v", err)
	}

	tool := `{"hook_event_name":"PostToolUse","session_id":"abc-123","cwd":"/home/jay/work","tool_name":"Bash","tool_input":{"command":"ls -la"}}`
	if err := in.Handle(ctx, []byte(tool)); err != nil {
		t.Fatalf("post_tool_use failed: %v", err)
	}
	if err := in.Handle(ctx, []byte(tool)); err != nil {
		t.Fatalf("second post_tool_use failed: %v", err)
	}

	sessions, err := in.Store.ListClaudeSessions("active", 10)
	if err != nil {
		t.Fatalf("ListClaudeSessions failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("Expected 1 active session, got %d", len(sessions))
	}
	cs := sessions[0]
	if cs.ToolCount != 2 || cs.LastTool != "Bash" {
		t.Errorf("Session counters wrong: %+v", cs)
	}
	if !strings.Contains(cs.LastToolInput, "command=ls -la") {
		t.Errorf("Tool input summary wrong: %q", cs.LastToolInput)
	}

	// Activity: session_start + two tool_use rows.
	activity, err := in.Store.SessionActivity("abc-123", 10)
	if err != nil {
		t.Fatalf("SessionActivity failed: %v", err)
	}
	if len(activity) != 3 {
		t.Errorf("Expected 3 activity rows, got %d", len(activity))
	}

	end := `{"hook_event_name":"SessionEnd","session_id":"abc-123"}`
	if err := in.Handle(ctx, []byte(end)); err != nil {
		t.Fatalf("session_end failed: %v", err)
	}
	sessions, _ = in.Store.ListClaudeSessions("ended", 10)
	if len(sessions) != 1 {
		t.Errorf("Expected session to be ended")
	}
}

func TestHandleStopUpdatesHeartbeatOnly(t *testing.T) {
	in := newTestIngestor(t)
	ctx := context.Background()

	if err := in.Handle(ctx, []byte(`{"hook_event_name":"SessionStart","session_id":"s1","cwd":"/tmp"}`)); err != nil {
		t.Fatalf("session_start failed: %v", err)
	}
	before, _ := in.Store.SessionActivity("s1", 10)

	if err := in.Handle(ctx, []byte(`{"hook_event_name":"Stop","session_id":"s1"}`)); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	after, _ := in.Store.SessionActivity("s1", 10)
	if len(after) != len(before) {
		t.Errorf("stop must not add activity rows: %d -> %d", len(before), len(after))
	}
}

func TestHandleToolErrorEvent(t *testing.T) {
	in := newTestIngestor(t)
	ctx := context.Background()

	ev := `{"hook_event_name":"PostToolUse","session_id":"s2","tool_name":"Bash","tool_input":{"command":"rm x"},"tool_error":"exit 1"}`
	if err := in.Handle(ctx, []byte(ev)); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	activity, err := in.Store.SessionActivity("s2", 10)
	if err != nil {
		t.Fatalf("SessionActivity failed: %v", err)
	}
	if len(activity) != 1 || activity[0].EventType != "tool_error" {
		t.Errorf("Expected tool_error row, got %+v", activity)
	}
}

func TestHandleToolFailureEvent(t *testing.T) {
	in := newTestIngestor(t)
	ctx := context.Background()

	ev := `{"hook_event_name":"PostToolUseFailure","session_id":"s3","tool_name":"Bash","tool_input":{"command":"false"}}`
	if err := in.Handle(ctx, []byte(ev)); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	activity, err := in.Store.SessionActivity("s3", 10)
	if err != nil {
		t.Fatalf("SessionActivity failed: %v", err)
	}
	if len(activity) != 1 || activity[0].EventType != "tool_error" {
		t.Errorf("Expected tool_error row, got %+v", activity)
	}
	sessions, _ := in.Store.ListClaudeSessions("active", 10)
	if len(sessions) != 1 || sessions[0].ToolCount != 1 {
		t.Errorf("Failure must still count toward the session: %+v", sessions)
	}
}

func TestHandleHighVolumeToolSession(t *testing.T) {
	in := newTestIngestor(t)
	ctx := context.Background()

	if err := in.Handle(ctx, []byte(`{"hook_event_name":"SessionStart","session_id":"busy","cwd":"/home/jay"}`)); err != nil {
		t.Fatalf("SessionStart failed: %v", err)
	}
	ev := `{"hook_event_name":"PostToolUse","session_id":"busy","cwd":"/home/jay","tool_name":"Read","tool_input":{"file_path":"/tmp/a.go"}}`
	for i := 0; i < 50; i++ {
		if err := in.Handle(ctx, []byte(ev)); err != nil {
			t.Fatalf("PostToolUse #%d failed: %v", i, err)
		}
	}
	if err := in.Handle(ctx, []byte(`{"hook_event_name":"SessionEnd","session_id":"busy"}`)); err != nil {
		t.Fatalf("SessionEnd failed: %v", err)
	}

	usage, err := in.Store.ToolUsage("busy")
	if err != nil {
		t.Fatalf("ToolUsage failed: %v", err)
	}
	if usage["Read"] != 50 {
		t.Errorf("tool usage for Read = %d, want 50", usage["Read"])
	}
	sessions, err := in.Store.ListClaudeSessions("ended", 10)
	if err != nil {
		t.Fatalf("ListClaudeSessions failed: %v", err)
	}
	if len(sessions) != 1 {
		t.Errorf("Expected 1 ended session, got %d", len(sessions))
	}
}

func TestHandlePreCompactCreatesSession(t *testing.T) {
	in := newTestIngestor(t)
	ctx := context.Background()

	// Unknown session id: a minimal sessions row is created.
	ev := `{"hook_event_name":"PreCompact","session_id":"ghost","trigger":"auto"}`
	if err := in.Handle(ctx, []byte(ev)); err != nil {
		t.Fatalf("pre_compact failed: %v", err)
	}

	sess, err := in.Store.GetSession("ghost")
	if err != nil {
		t.Fatalf("Checkpoint did not create session: %v", err)
	}
	if sess.CheckpointSummary == "" || sess.CheckpointAt == nil {
		t.Errorf("Checkpoint fields not written: %+v", sess)
	}
}

func TestHandleUnknownEventIgnored(t *testing.T) {
	in := newTestIngestor(t)
	if err := in.Handle(context.Background(), []byte(`{"hook_event_name":"mystery","session_id":"x"}`)); err != nil {
		t.Errorf("Unknown events should be ignored, got %v", err)
	}
}

func TestHandleMalformedJSON(t *testing.T) {
	in := newTestIngestor(t)
	if err := in.Handle(context.Background(), []byte(`{not json`)); err == nil {
		t.Error("Expected parse error for malformed payload")
	}
}

func TestSummarizeToolInput(t *testing.T) {
	long := strings.Repeat("x", 150)

	tests := []struct {
		name  string
		input map[string]interface{}
		want  string
	}{
		{"Nil", nil, ""},
		{"Single field", map[string]interface{}{"command": "go vet ./..."}, "command=go vet ./..."},
		{
			"Priority order",
			map[string]interface{}{"file_path": "/tmp/a.go", "command": "cat"},
			"command=cat, file_path=/tmp/a.go",
		},
		{"Ignored field", map[string]interface{}{"timeout": float64(5000)}, ""},
		{"Number value", map[string]interface{}{"task_id": float64(42)}, "task_id=42"},
		{"Newlines flattened", map[string]interface{}{"content": "a\nb"}, "content=a b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SummarizeToolInput(tt.input); got != tt.want {
				t.Errorf("SummarizeToolInput() = %q, want %q", got, tt.want)
			}
		})
	}

	t.Run("Field cap", func(t *testing.T) {
		got := SummarizeToolInput(map[string]interface{}{"query": long})
		if len(got) != len("query=")+summaryFieldCap {
			t.Errorf("Field not capped at %d: len=%d", summaryFieldCap, len(got))
		}
	})
	t.Run("Total cap", func(t *testing.T) {
		got := SummarizeToolInput(map[string]interface{}{
			"command": long, "query": long, "prompt": long,
		})
		if len(got) != summaryTotalCap {
			t.Errorf("Summary not capped at %d: len=%d", summaryTotalCap, len(got))
		}
	})
}
