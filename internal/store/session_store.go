package store

import (
	"database/sql"
	"fmt"
	"time"

	"jaybrain/internal/logging"
)

// =============================================================================
// SESSIONS
// =============================================================================

// CreateSession starts a new work session.
func (s *Store) CreateSession(sess *Session) error {
	timer := logging.StartTimer(logging.CategoryStore, "CreateSession")
	defer timer.Stop()

	if sess.ID == "" {
		sess.ID = NewID()
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO sessions (id, title, started_at, summary, decisions_made, next_steps)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Title, sess.StartedAt, sess.Summary,
		marshalList(sess.DecisionsMade), marshalList(sess.NextSteps))
	if err != nil {
		logging.StoreError("Failed to create session: %v", err)
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetSession fetches one session by id.
func (s *Store) GetSession(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT id, title, started_at, ended_at, summary, decisions_made, next_steps,
		       checkpoint_summary, checkpoint_at
		FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

func scanSession(row rowScanner) (*Session, error) {
	var sess Session
	var ended, checkpointAt sql.NullTime
	var decisions, nextSteps string
	var checkpoint sql.NullString
	err := row.Scan(&sess.ID, &sess.Title, &sess.StartedAt, &ended, &sess.Summary,
		&decisions, &nextSteps, &checkpoint, &checkpointAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	sess.EndedAt = nullableTime(ended)
	sess.DecisionsMade = unmarshalList(decisions)
	sess.NextSteps = unmarshalList(nextSteps)
	sess.CheckpointSummary = checkpoint.String
	sess.CheckpointAt = nullableTime(checkpointAt)
	return &sess, nil
}

// EndSession closes a session with its summary, decisions, and next steps.
func (s *Store) EndSession(id, summary string, decisions, nextSteps []string) error {
	timer := logging.StartTimer(logging.CategoryStore, "EndSession")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		UPDATE sessions SET ended_at = ?, summary = ?, decisions_made = ?, next_steps = ?
		WHERE id = ?`,
		time.Now().UTC(), summary, marshalList(decisions), marshalList(nextSteps), id)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// CheckpointSession writes the pre-compaction checkpoint. Creates a minimal
// session row when the id is unknown so a checkpoint from a session the tool
// surface never saw still lands somewhere.
func (s *Store) CheckpointSession(id, summary string) error {
	timer := logging.StartTimer(logging.CategoryStore, "CheckpointSession")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	res, err := s.db.Exec(`
		UPDATE sessions SET checkpoint_summary = ?, checkpoint_at = ? WHERE id = ?`,
		summary, now, id)
	if err != nil {
		return fmt.Errorf("failed to checkpoint session: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	_, err = s.db.Exec(`
		INSERT INTO sessions (id, title, started_at, checkpoint_summary, checkpoint_at)
		VALUES (?, '', ?, ?, ?)`,
		id, now, summary, now)
	if err != nil {
		return fmt.Errorf("failed to create checkpoint session: %w", err)
	}
	logging.StoreDebug("Checkpoint created minimal session row for %s", id)
	return nil
}

// ListRecentSessions returns sessions started within the window, newest
// first.
func (s *Store) ListRecentSessions(since time.Time, limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = 20
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, title, started_at, ended_at, summary, decisions_made, next_steps,
		       checkpoint_summary, checkpoint_at
		FROM sessions WHERE started_at >= ?
		ORDER BY started_at DESC LIMIT ?`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			logging.StoreWarn("Session scan failed: %v", err)
			continue
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// CloseStaleSessions ends sessions with no activity whose start is older
// than the cutoff. Used by the auto-close cleanup.
func (s *Store) CloseStaleSessions(cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		UPDATE sessions SET ended_at = ?, summary = CASE WHEN summary = '' THEN 'auto-closed' ELSE summary END
		WHERE ended_at IS NULL AND started_at < ?`,
		time.Now().UTC(), cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to close stale sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		logging.Store("Auto-closed %d stale sessions", n)
	}
	return int(n), nil
}
