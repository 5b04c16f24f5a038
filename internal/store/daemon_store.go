package store

import (
	"database/sql"
	"fmt"
	"time"

	"jaybrain/internal/logging"
)

// =============================================================================
// DAEMON STATE + LIFECYCLE + HEARTBEAT LOG
// =============================================================================

// GetDaemonState reads the single-row daemon record. ErrNotFound when the
// daemon has never run.
func (s *Store) GetDaemonState() (*DaemonState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT pid, started_at, last_heartbeat, modules, status FROM daemon_state WHERE id = 1`)

	var st DaemonState
	var started, heartbeat sql.NullTime
	var modules string
	err := row.Scan(&st.PID, &started, &heartbeat, &modules, &st.Status)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan daemon state: %w", err)
	}
	if started.Valid {
		st.StartedAt = started.Time
	}
	if heartbeat.Valid {
		st.LastHeartbeat = heartbeat.Time
	}
	st.Modules = unmarshalList(modules)
	return &st, nil
}

// SetDaemonRunning claims the daemon_state row for this process.
func (s *Store) SetDaemonRunning(pid int, modules []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	_, err := s.db.Exec(`
		INSERT INTO daemon_state (id, pid, started_at, last_heartbeat, modules, status)
		VALUES (1, ?, ?, ?, ?, 'running')
		ON CONFLICT(id) DO UPDATE SET
			pid = excluded.pid,
			started_at = excluded.started_at,
			last_heartbeat = excluded.last_heartbeat,
			modules = excluded.modules,
			status = 'running'`,
		pid, now, now, marshalList(modules))
	if err != nil {
		return fmt.Errorf("failed to set daemon running: %w", err)
	}
	return nil
}

// DaemonHeartbeat refreshes last_heartbeat and the module list.
func (s *Store) DaemonHeartbeat(modules []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		UPDATE daemon_state SET last_heartbeat = ?, modules = ? WHERE id = 1`,
		time.Now().UTC(), marshalList(modules))
	if err != nil {
		return fmt.Errorf("failed to write daemon heartbeat: %w", err)
	}
	return nil
}

// SetDaemonStopped records a graceful stop.
func (s *Store) SetDaemonStopped() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`UPDATE daemon_state SET status = 'stopped' WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("failed to set daemon stopped: %w", err)
	}
	return nil
}

// LogLifecycleEvent appends a daemon lifecycle row (startup_refused,
// started, stopped, job_timeout, ...).
func (s *Store) LogLifecycleEvent(event, detail string, pid int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO daemon_lifecycle_log (event, detail, pid) VALUES (?, ?, ?)`,
		event, detail, pid)
	if err != nil {
		return fmt.Errorf("failed to log lifecycle event: %w", err)
	}
	logging.Daemon("Lifecycle: %s (%s) pid=%d", event, detail, pid)
	return nil
}

// ListLifecycleEvents returns recent lifecycle rows, newest first.
func (s *Store) ListLifecycleEvents(limit int) ([]map[string]interface{}, error) {
	if limit <= 0 {
		limit = 20
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT event, detail, pid, created_at FROM daemon_lifecycle_log
		ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list lifecycle events: %w", err)
	}
	defer rows.Close()

	var out []map[string]interface{}
	for rows.Next() {
		var event, detail string
		var pid int
		var at time.Time
		if err := rows.Scan(&event, &detail, &pid, &at); err != nil {
			continue
		}
		out = append(out, map[string]interface{}{
			"event": event, "detail": detail, "pid": pid, "created_at": at,
		})
	}
	return out, rows.Err()
}

// RecordHeartbeatCheck appends one check outcome.
func (s *Store) RecordHeartbeatCheck(checkName string, triggered bool, message string, notified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO heartbeat_log (check_name, triggered, message, notified, checked_at)
		VALUES (?, ?, ?, ?, ?)`,
		checkName, boolToInt(triggered), message, boolToInt(notified), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record heartbeat check: %w", err)
	}
	return nil
}

// LastNotifiedAt returns when the check last sent a notification. Zero time
// when it never has.
func (s *Store) LastNotifiedAt(checkName string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT checked_at FROM heartbeat_log
		WHERE check_name = ? AND notified = 1
		ORDER BY checked_at DESC LIMIT 1`, checkName)

	var at time.Time
	err := row.Scan(&at)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read heartbeat log: %w", err)
	}
	return at, nil
}

// ListHeartbeatLog returns recent check outcomes, newest first.
func (s *Store) ListHeartbeatLog(checkName string, limit int) ([]*HeartbeatEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	q := `SELECT id, check_name, triggered, message, notified, checked_at FROM heartbeat_log`
	var args []interface{}
	if checkName != "" {
		q += " WHERE check_name = ?"
		args = append(args, checkName)
	}
	q += " ORDER BY checked_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list heartbeat log: %w", err)
	}
	defer rows.Close()

	var out []*HeartbeatEntry
	for rows.Next() {
		var h HeartbeatEntry
		var triggered, notified int
		if err := rows.Scan(&h.ID, &h.CheckName, &triggered, &h.Message, &notified, &h.CheckedAt); err != nil {
			continue
		}
		h.Triggered = triggered != 0
		h.Notified = notified != 0
		out = append(out, &h)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
