package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"jaybrain/internal/logging"
)

// =============================================================================
// TASKS + WORK QUEUE
// =============================================================================

// CreateTask inserts a task. Queue position is never set at creation; use
// QueuePush.
func (s *Store) CreateTask(t *Task) error {
	timer := logging.StartTimer(logging.CategoryStore, "CreateTask")
	defer timer.Stop()

	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("validation: task title must be non-empty")
	}
	if t.Status == "" {
		t.Status = TaskTodo
	}
	if !ValidTaskStatuses[t.Status] {
		return fmt.Errorf("validation: unknown task status %q", t.Status)
	}
	if t.Priority == "" {
		t.Priority = "medium"
	}
	if !ValidTaskPriorities[t.Priority] {
		return fmt.Errorf("validation: unknown task priority %q", t.Priority)
	}
	if t.ID == "" {
		t.ID = NewID()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO tasks (id, title, description, status, priority, project, tags, due_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Title, t.Description, t.Status, t.Priority, t.Project,
		marshalList(t.Tags), t.DueDate, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		logging.StoreError("Failed to create task: %v", err)
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// GetTask fetches one task by id.
func (s *Store) GetTask(id string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getTaskLocked(id)
}

func (s *Store) getTaskLocked(id string) (*Task, error) {
	row := s.db.QueryRow(taskSelect+" WHERE id = ?", id)
	return scanTask(row)
}

const taskSelect = `
	SELECT id, title, description, status, priority, project, tags, due_date,
	       queue_position, created_at, updated_at
	FROM tasks`

func scanTask(row rowScanner) (*Task, error) {
	var t Task
	var tags string
	var due sql.NullTime
	var pos sql.NullInt64
	err := row.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority,
		&t.Project, &tags, &due, &pos, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}
	t.Tags = unmarshalList(tags)
	t.DueDate = nullableTime(due)
	if pos.Valid {
		p := int(pos.Int64)
		t.QueuePosition = &p
	}
	return &t, nil
}

// ListTasks returns tasks filtered by status and/or project.
func (s *Store) ListTasks(status, project string, limit int) ([]*Task, error) {
	timer := logging.StartTimer(logging.CategoryStore, "ListTasks")
	defer timer.Stop()

	if limit <= 0 {
		limit = 100
	}
	if status != "" && !ValidTaskStatuses[status] {
		return nil, fmt.Errorf("validation: unknown task status %q", status)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	query := taskSelect
	var conds []string
	var args []interface{}
	if status != "" {
		conds = append(conds, "status = ?")
		args = append(args, status)
	}
	if project != "" {
		conds = append(conds, "project = ?")
		args = append(args, project)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var out []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			logging.StoreWarn("Task scan failed: %v", err)
			continue
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// UpdateTask applies a field map through the allowlist. Status transitions to
// done/cancelled also remove the task from the queue and close the gap.
func (s *Store) UpdateTask(id string, fields map[string]interface{}) error {
	if status, ok := fields["status"].(string); ok {
		if !ValidTaskStatuses[status] {
			return fmt.Errorf("validation: unknown task status %q", status)
		}
		if status == TaskDone || status == TaskCancelled {
			// Done tasks never appear in the queue.
			if err := s.QueueRemove(id); err != nil && err != ErrNotFound {
				return err
			}
		}
	}
	fields["updated_at"] = time.Now().UTC()
	return s.UpdateRow("tasks", id, fields)
}

// =============================================================================
// QUEUE OPERATIONS
//
// queue_position is NULL or part of a contiguous 1..N ordering over active
// tasks. Every mutation runs in one transaction so observers see either the
// old or the new full ordering.
// =============================================================================

// QueuePush inserts a task into the queue at the given 1-based position
// (0 or past-the-end appends). Re-pushing a queued task returns a conflict
// status rather than an error.
func (s *Store) QueuePush(id string, position int) (string, error) {
	timer := logging.StartTimer(logging.CategoryStore, "QueuePush")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.getTaskLocked(id)
	if err != nil {
		return "", err
	}
	if t.Status == TaskDone || t.Status == TaskCancelled {
		return "", fmt.Errorf("validation: cannot queue a %s task", t.Status)
	}
	if t.QueuePosition != nil {
		return "already_queued", nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin queue transaction: %w", err)
	}
	defer tx.Rollback()

	var size int
	if err := tx.QueryRow("SELECT COUNT(*) FROM tasks WHERE queue_position IS NOT NULL").Scan(&size); err != nil {
		return "", fmt.Errorf("failed to read queue size: %w", err)
	}
	if position <= 0 || position > size+1 {
		position = size + 1
	}

	// Shift the tail out of the way. Negative staging keeps the partial
	// unique index satisfied while rows move.
	if _, err := tx.Exec(
		`UPDATE tasks SET queue_position = -(queue_position + 1) WHERE queue_position >= ?`, position); err != nil {
		return "", fmt.Errorf("failed to stage queue shift: %w", err)
	}
	if _, err := tx.Exec(
		`UPDATE tasks SET queue_position = -queue_position WHERE queue_position < 0`); err != nil {
		return "", fmt.Errorf("failed to apply queue shift: %w", err)
	}
	if _, err := tx.Exec(
		`UPDATE tasks SET queue_position = ?, updated_at = ? WHERE id = ?`,
		position, time.Now().UTC(), id); err != nil {
		return "", fmt.Errorf("failed to place task in queue: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit queue push: %w", err)
	}

	logging.StoreDebug("Queued task %s at position %d", id, position)
	return "queued", nil
}

// QueuePop removes and returns the task at position 1, shifting the rest up.
func (s *Store) QueuePop() (*Task, error) {
	timer := logging.StartTimer(logging.CategoryStore, "QueuePop")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(taskSelect + " WHERE queue_position = 1")
	t, err := scanTask(row)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin queue transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE tasks SET queue_position = NULL WHERE id = ?`, t.ID); err != nil {
		return nil, fmt.Errorf("failed to dequeue task: %w", err)
	}
	if _, err := tx.Exec(`UPDATE tasks SET queue_position = -(queue_position - 1) WHERE queue_position > 1`); err != nil {
		return nil, fmt.Errorf("failed to stage queue close: %w", err)
	}
	if _, err := tx.Exec(`UPDATE tasks SET queue_position = -queue_position WHERE queue_position < 0`); err != nil {
		return nil, fmt.Errorf("failed to close queue gap: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit queue pop: %w", err)
	}

	t.QueuePosition = nil
	return t, nil
}

// QueueRemove takes a task out of the queue (any position) and closes the
// gap so remaining positions stay contiguous.
func (s *Store) QueueRemove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.getTaskLocked(id)
	if err != nil {
		return err
	}
	if t.QueuePosition == nil {
		return nil
	}
	pos := *t.QueuePosition

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin queue transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE tasks SET queue_position = NULL WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to dequeue task: %w", err)
	}
	if _, err := tx.Exec(`UPDATE tasks SET queue_position = -(queue_position - 1) WHERE queue_position > ?`, pos); err != nil {
		return fmt.Errorf("failed to stage queue close: %w", err)
	}
	if _, err := tx.Exec(`UPDATE tasks SET queue_position = -queue_position WHERE queue_position < 0`); err != nil {
		return fmt.Errorf("failed to close queue gap: %w", err)
	}
	return tx.Commit()
}

// QueueList returns queued tasks in order.
func (s *Store) QueueList() ([]*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(taskSelect + " WHERE queue_position IS NOT NULL ORDER BY queue_position")
	if err != nil {
		return nil, fmt.Errorf("failed to list queue: %w", err)
	}
	defer rows.Close()

	var out []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			continue
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
