// Package hooks ingests per-invocation events from the assistant host into
// the session-tracking tables. Invoked as a short-lived subprocess on every
// tool call, so everything here is built for a sub-second budget and for
// never propagating a failure back to the host.
package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"jaybrain/internal/logging"
	"jaybrain/internal/store"
)

const (
	// PruneEvery is the approximate 1-in-N invocation rate for the
	// opportunistic pruning pass.
	PruneEvery = 50

	// ActivityRetention is how long activity rows and silent sessions live.
	ActivityRetention = 48 * time.Hour

	// lock retry schedule for a database held by the daemon or tool server.
	lockRetries = 3
	lockBackoff = 100 * time.Millisecond
)

// Event is the host's hook payload. Unknown fields are ignored.
type Event struct {
	HookEventName string                 `json:"hook_event_name"`
	SessionID     string                 `json:"session_id"`
	CWD           string                 `json:"cwd"`
	ToolName      string                 `json:"tool_name"`
	ToolInput     map[string]interface{} `json:"tool_input"`
	ToolError     string                 `json:"tool_error"`
	Trigger       string                 `json:"trigger"`
	Summary       string                 `json:"summary"`
}

// Ingestor writes hook events into the store.
type Ingestor struct {
	Store *store.Store
}

// NewIngestor builds an ingestor over an open store.
func NewIngestor(s *store.Store) *Ingestor {
	return &Ingestor{Store: s}
}

// Handle parses one raw event and applies it. Empty input is a no-op. The
// caller (the hook subcommand) swallows any returned error after printing it
// to stderr; nothing here should panic.
func (in *Ingestor) Handle(ctx context.Context, raw []byte) error {
	timer := logging.StartTimer(logging.CategoryHooks, "Handle")
	defer timer.Stop()

	if len(strings.TrimSpace(string(raw))) == 0 {
		logging.HooksDebug("Empty hook payload; no-op")
		return nil
	}

	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return fmt.Errorf("failed to parse hook event: %w", err)
	}
	if ev.SessionID == "" {
		logging.HooksDebug("Hook event without session_id; ignoring")
		return nil
	}

	logging.HooksDebug("Hook %s session=%s tool=%s", ev.HookEventName, ev.SessionID, ev.ToolName)

	var err error
	switch ev.HookEventName {
	case "SessionStart":
		err = in.withLockRetry(ctx, func() error {
			return in.Store.UpsertClaudeSession(ev.SessionID, ev.CWD, "", "", false)
		})
		if err == nil {
			err = in.appendActivity(ctx, ev.SessionID, "session_start", "", ev.CWD)
		}

	case "PostToolUse", "PostToolUseFailure":
		summary := SummarizeToolInput(ev.ToolInput)
		eventType := "tool_use"
		if ev.HookEventName == "PostToolUseFailure" || ev.ToolError != "" {
			eventType = "tool_error"
		}
		err = in.withLockRetry(ctx, func() error {
			return in.Store.UpsertClaudeSession(ev.SessionID, ev.CWD, ev.ToolName, summary, true)
		})
		if err == nil {
			err = in.appendActivity(ctx, ev.SessionID, eventType, ev.ToolName, summary)
		}

	case "Stop":
		// Heartbeat only; no log row.
		err = in.withLockRetry(ctx, func() error {
			return in.Store.TouchClaudeSessionHeartbeat(ev.SessionID)
		})

	case "SessionEnd":
		err = in.withLockRetry(ctx, func() error {
			return in.Store.EndClaudeSession(ev.SessionID)
		})
		if err == nil {
			err = in.appendActivity(ctx, ev.SessionID, "session_end", "", "")
		}

	case "PreCompact":
		err = in.handlePreCompact(ctx, &ev)

	default:
		logging.HooksDebug("Unknown hook event %q; ignoring", ev.HookEventName)
		return nil
	}
	if err != nil {
		return err
	}

	if rand.Intn(PruneEvery) == 0 {
		if perr := in.Store.PruneActivity(ActivityRetention); perr != nil {
			logging.Hooks("Prune pass failed: %v", perr)
		}
	}
	return nil
}

// handlePreCompact checkpoints the work session before the host compacts its
// context. Creates a minimal session row when the id is unknown.
func (in *Ingestor) handlePreCompact(ctx context.Context, ev *Event) error {
	start := time.Now()
	defer func() {
		if elapsed := time.Since(start); elapsed > 4*time.Second {
			fmt.Fprintf(os.Stderr, "warning: pre_compact checkpoint took %s\n", elapsed)
		}
	}()

	summary := ev.Summary
	if summary == "" {
		summary = fmt.Sprintf("pre-compaction checkpoint (trigger=%s)", orUnknown(ev.Trigger))
	}

	if err := in.withLockRetry(ctx, func() error {
		return in.Store.CheckpointSession(ev.SessionID, summary)
	}); err != nil {
		return err
	}
	return in.appendActivity(ctx, ev.SessionID, "pre_compact", "", "")
}

func (in *Ingestor) appendActivity(ctx context.Context, sessionID, eventType, toolName, summary string) error {
	return in.withLockRetry(ctx, func() error {
		return in.Store.AppendActivity(sessionID, eventType, toolName, summary)
	})
}

// withLockRetry retries a write on sqlite lock contention: 100ms, 200ms,
// 400ms, then give up.
func (in *Ingestor) withLockRetry(ctx context.Context, fn func() error) error {
	backoff := lockBackoff
	var err error
	for attempt := 0; ; attempt++ {
		err = fn()
		if err == nil || !isLockError(err) || attempt >= lockRetries {
			return err
		}
		logging.HooksDebug("Database locked, retrying in %s (attempt %d)", backoff, attempt+1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
