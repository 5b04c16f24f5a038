package store

import (
	"fmt"
	"time"

	"jaybrain/internal/logging"
)

// =============================================================================
// CLAUDE SESSIONS + ACTIVITY LOG (written by hook ingest, read by pulse)
// =============================================================================

// UpsertClaudeSession creates or refreshes a hook-tracked session. On
// conflict the heartbeat, tool counters, and last-tool summary are updated;
// started_at and cwd keep their original values.
func (s *Store) UpsertClaudeSession(sessionID, cwd, toolName, toolInput string, bumpToolCount bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	bump := 0
	if bumpToolCount {
		bump = 1
	}

	_, err := s.db.Exec(`
		INSERT INTO claude_sessions (session_id, cwd, started_at, last_heartbeat, status, tool_count, last_tool, last_tool_input)
		VALUES (?, ?, ?, ?, 'active', ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			last_heartbeat = excluded.last_heartbeat,
			status = 'active',
			tool_count = tool_count + ?,
			last_tool = CASE WHEN excluded.last_tool != '' THEN excluded.last_tool ELSE last_tool END,
			last_tool_input = CASE WHEN excluded.last_tool_input != '' THEN excluded.last_tool_input ELSE last_tool_input END`,
		sessionID, cwd, now, now, bump, toolName, toolInput, bump)
	if err != nil {
		return fmt.Errorf("failed to upsert claude session: %w", err)
	}
	return nil
}

// TouchClaudeSessionHeartbeat updates only the heartbeat timestamp.
func (s *Store) TouchClaudeSessionHeartbeat(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		UPDATE claude_sessions SET last_heartbeat = ? WHERE session_id = ?`,
		time.Now().UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to touch session heartbeat: %w", err)
	}
	return nil
}

// EndClaudeSession marks a hook-tracked session ended.
func (s *Store) EndClaudeSession(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		UPDATE claude_sessions SET status = 'ended', last_heartbeat = ? WHERE session_id = ?`,
		time.Now().UTC(), sessionID)
	if err != nil {
		return fmt.Errorf("failed to end claude session: %w", err)
	}
	return nil
}

// AppendActivity writes one append-only activity row.
func (s *Store) AppendActivity(sessionID, eventType, toolName, toolInputSummary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO session_activity_log (session_id, event_type, tool_name, tool_input_summary, timestamp)
		VALUES (?, ?, ?, ?, ?)`,
		sessionID, eventType, toolName, toolInputSummary, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to append activity: %w", err)
	}
	return nil
}

// PruneActivity deletes activity older than the retention window and marks
// sessions with stale heartbeats as ended. Called opportunistically from the
// hook path (roughly 1-in-50 invocations).
func (s *Store) PruneActivity(retention time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-retention)

	res, err := s.db.Exec(`DELETE FROM session_activity_log WHERE timestamp < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune activity log: %w", err)
	}
	pruned, _ := res.RowsAffected()

	res, err = s.db.Exec(`
		UPDATE claude_sessions SET status = 'ended' WHERE status = 'active' AND last_heartbeat < ?`,
		cutoff)
	if err != nil {
		return fmt.Errorf("failed to end stale sessions: %w", err)
	}
	ended, _ := res.RowsAffected()

	if pruned > 0 || ended > 0 {
		logging.Hooks("Pruned %d activity rows, ended %d stale sessions", pruned, ended)
	}
	return nil
}

// ListClaudeSessions returns sessions matching status (empty = all), most
// recently active first.
func (s *Store) ListClaudeSessions(status string, limit int) ([]*ClaudeSession, error) {
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	q := `
		SELECT session_id, cwd, started_at, last_heartbeat, status, description,
		       tool_count, last_tool, last_tool_input
		FROM claude_sessions`
	var args []interface{}
	if status != "" {
		q += " WHERE status = ?"
		args = append(args, status)
	}
	q += " ORDER BY last_heartbeat DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list claude sessions: %w", err)
	}
	defer rows.Close()

	var out []*ClaudeSession
	for rows.Next() {
		var cs ClaudeSession
		if err := rows.Scan(&cs.SessionID, &cs.CWD, &cs.StartedAt, &cs.LastHeartbeat,
			&cs.Status, &cs.Description, &cs.ToolCount, &cs.LastTool, &cs.LastToolInput); err != nil {
			logging.StoreWarn("Claude session scan failed: %v", err)
			continue
		}
		out = append(out, &cs)
	}
	return out, rows.Err()
}

// FindClaudeSessions matches a needle against session ids: exact first,
// then prefix/substring. Returns all partial matches so the caller can
// distinguish ok / ambiguous / not_found.
func (s *Store) FindClaudeSessions(needle string) ([]*ClaudeSession, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT session_id, cwd, started_at, last_heartbeat, status, description,
		       tool_count, last_tool, last_tool_input
		FROM claude_sessions WHERE session_id = ?`, needle)
	var exact ClaudeSession
	err := row.Scan(&exact.SessionID, &exact.CWD, &exact.StartedAt, &exact.LastHeartbeat,
		&exact.Status, &exact.Description, &exact.ToolCount, &exact.LastTool, &exact.LastToolInput)
	if err == nil {
		return []*ClaudeSession{&exact}, true, nil
	}

	rows, err := s.db.Query(`
		SELECT session_id, cwd, started_at, last_heartbeat, status, description,
		       tool_count, last_tool, last_tool_input
		FROM claude_sessions WHERE session_id LIKE ?
		ORDER BY last_heartbeat DESC`, "%"+needle+"%")
	if err != nil {
		return nil, false, fmt.Errorf("failed to search claude sessions: %w", err)
	}
	defer rows.Close()

	var out []*ClaudeSession
	for rows.Next() {
		var cs ClaudeSession
		if err := rows.Scan(&cs.SessionID, &cs.CWD, &cs.StartedAt, &cs.LastHeartbeat,
			&cs.Status, &cs.Description, &cs.ToolCount, &cs.LastTool, &cs.LastToolInput); err != nil {
			continue
		}
		out = append(out, &cs)
	}
	return out, false, rows.Err()
}

// SessionActivity returns activity rows, newest first. Empty sessionID means
// all sessions.
func (s *Store) SessionActivity(sessionID string, limit int) ([]*ActivityEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	q := `
		SELECT id, session_id, event_type, tool_name, tool_input_summary, timestamp
		FROM session_activity_log`
	var args []interface{}
	if sessionID != "" {
		q += " WHERE session_id = ?"
		args = append(args, sessionID)
	}
	q += " ORDER BY timestamp DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer rows.Close()

	var out []*ActivityEntry
	for rows.Next() {
		var a ActivityEntry
		if err := rows.Scan(&a.ID, &a.SessionID, &a.EventType, &a.ToolName,
			&a.ToolInputSummary, &a.Timestamp); err != nil {
			continue
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// ToolUsage aggregates tool_name counts for one session.
func (s *Store) ToolUsage(sessionID string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT tool_name, COUNT(*) FROM session_activity_log
		WHERE session_id = ? AND tool_name != ''
		GROUP BY tool_name`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate tool usage: %w", err)
	}
	defer rows.Close()

	usage := make(map[string]int)
	for rows.Next() {
		var tool string
		var count int
		if err := rows.Scan(&tool, &count); err != nil {
			continue
		}
		usage[tool] = count
	}
	return usage, rows.Err()
}

// ActivityTimestamps returns (session_id, cwd, timestamp) triples in the
// window, ascending, for time-allocation derivation.
func (s *Store) ActivityTimestamps(since time.Time) ([]ActivitySample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT a.session_id, COALESCE(c.cwd, ''), a.timestamp
		FROM session_activity_log a
		LEFT JOIN claude_sessions c ON c.session_id = a.session_id
		WHERE a.timestamp >= ?
		ORDER BY a.session_id, a.timestamp`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity timestamps: %w", err)
	}
	defer rows.Close()

	var out []ActivitySample
	for rows.Next() {
		var sample ActivitySample
		if err := rows.Scan(&sample.SessionID, &sample.CWD, &sample.Timestamp); err != nil {
			continue
		}
		out = append(out, sample)
	}
	return out, rows.Err()
}

// ActivitySample is one timestamped activity point with its session's cwd.
type ActivitySample struct {
	SessionID string
	CWD       string
	Timestamp time.Time
}
