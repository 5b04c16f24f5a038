// Package pulse reads the cross-session awareness data written by the hook
// pipeline: which assistant sessions are live, what they have been doing, and
// (via the host's JSONL transcripts) what was actually said.
package pulse

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"jaybrain/internal/logging"
	"jaybrain/internal/store"
)

// recentWindow is how far back ended sessions still count as "recent".
const recentWindow = 24 * time.Hour

// Reader serves pulse queries over the store and the transcripts directory.
type Reader struct {
	Store          *store.Store
	TranscriptsDir string
}

// NewReader builds a pulse reader.
func NewReader(s *store.Store, transcriptsDir string) *Reader {
	return &Reader{Store: s, TranscriptsDir: transcriptsDir}
}

// SessionSummary is one session with derived liveness info.
type SessionSummary struct {
	*store.ClaudeSession
	MinutesSinceHeartbeat float64 `json:"minutes_since_heartbeat"`
}

// ActiveSessionsResult is the get_active_sessions payload.
type ActiveSessionsResult struct {
	Status        string            `json:"status"`
	Active        []*SessionSummary `json:"active"`
	RecentlyEnded []*SessionSummary `json:"recently_ended"`
}

// ActiveSessions returns live sessions plus sessions ended within the last
// 24 h. A store without session tables (never hooked) reports no_data.
func (r *Reader) ActiveSessions(ctx context.Context) (*ActiveSessionsResult, error) {
	timer := logging.StartTimer(logging.CategoryPulse, "ActiveSessions")
	defer timer.Stop()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	active, err := r.Store.ListClaudeSessions("active", 100)
	if err != nil {
		return &ActiveSessionsResult{Status: "no_data"}, nil
	}
	ended, err := r.Store.ListClaudeSessions("ended", 100)
	if err != nil {
		return &ActiveSessionsResult{Status: "no_data"}, nil
	}

	now := time.Now().UTC()
	out := &ActiveSessionsResult{Status: "ok"}
	for _, cs := range active {
		out.Active = append(out.Active, summarize(cs, now))
	}
	for _, cs := range ended {
		if now.Sub(cs.LastHeartbeat) <= recentWindow {
			out.RecentlyEnded = append(out.RecentlyEnded, summarize(cs, now))
		}
	}

	logging.PulseDebug("ActiveSessions: %d active, %d recently ended", len(out.Active), len(out.RecentlyEnded))
	return out, nil
}

func summarize(cs *store.ClaudeSession, now time.Time) *SessionSummary {
	return &SessionSummary{
		ClaudeSession:         cs,
		MinutesSinceHeartbeat: now.Sub(cs.LastHeartbeat).Minutes(),
	}
}

// SessionActivity returns activity rows, newest first. Empty sessionID means
// all sessions.
func (r *Reader) SessionActivity(ctx context.Context, sessionID string, limit int) ([]*store.ActivityEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.Store.SessionActivity(sessionID, limit)
}

// QueryResult is the query_session payload.
type QueryResult struct {
	Status    string                 `json:"status"` // ok | ambiguous | not_found
	Session   *store.ClaudeSession   `json:"session,omitempty"`
	ToolUsage map[string]int         `json:"tool_usage,omitempty"`
	Matches   []*store.ClaudeSession `json:"matches,omitempty"`
}

// QuerySession resolves a needle against session ids: exact match wins, a
// single partial match resolves, multiple partials report ambiguity.
func (r *Reader) QuerySession(ctx context.Context, needle string) (*QueryResult, error) {
	timer := logging.StartTimer(logging.CategoryPulse, "QuerySession")
	defer timer.Stop()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(needle) == "" {
		return nil, fmt.Errorf("validation: needle must be non-empty")
	}

	matches, exact, err := r.Store.FindClaudeSessions(needle)
	if err != nil {
		return nil, err
	}

	switch {
	case exact, len(matches) == 1:
		session := matches[0]
		usage, err := r.Store.ToolUsage(session.SessionID)
		if err != nil {
			logging.PulseDebug("Tool usage aggregation failed: %v", err)
		}
		return &QueryResult{Status: "ok", Session: session, ToolUsage: usage}, nil
	case len(matches) > 1:
		return &QueryResult{Status: "ambiguous", Matches: matches}, nil
	default:
		return &QueryResult{Status: "not_found"}, nil
	}
}

// findTranscript locates the JSONL transcript for a session id or prefix.
func (r *Reader) findTranscript(idOrPrefix string) (string, string, error) {
	if r.TranscriptsDir == "" {
		return "", "", fmt.Errorf("no transcripts directory configured")
	}

	entries, err := os.ReadDir(r.TranscriptsDir)
	if err != nil {
		return "", "", fmt.Errorf("failed to read transcripts directory: %w", err)
	}

	var matches []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		id := strings.TrimSuffix(name, ".jsonl")
		if id == idOrPrefix {
			return filepath.Join(r.TranscriptsDir, name), id, nil
		}
		if strings.HasPrefix(id, idOrPrefix) {
			matches = append(matches, id)
		}
	}

	switch len(matches) {
	case 0:
		return "", "", fmt.Errorf("no transcript matches %q", idOrPrefix)
	case 1:
		return filepath.Join(r.TranscriptsDir, matches[0]+".jsonl"), matches[0], nil
	default:
		return "", "", fmt.Errorf("transcript prefix %q is ambiguous (%d matches)", idOrPrefix, len(matches))
	}
}
