package store

import (
	"database/sql"
	"fmt"
	"time"
)

// =============================================================================
// TRASH MANIFEST
// =============================================================================

// AddTrashEntry records a soft-deleted path.
func (s *Store) AddTrashEntry(e *TrashEntry) error {
	if e.ID == "" {
		e.ID = NewID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO trash_manifest
			(id, original_path, trash_path, category, size_bytes, sha256, is_dir, reason, auto, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.OriginalPath, e.TrashPath, e.Category, e.SizeBytes, e.SHA256,
		boolToInt(e.IsDir), e.Reason, boolToInt(e.Auto), e.CreatedAt, e.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to add trash entry: %w", err)
	}
	return nil
}

// GetTrashEntry fetches one manifest row.
func (s *Store) GetTrashEntry(id string) (*TrashEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(trashSelect+" WHERE id = ?", id)
	return scanTrashEntry(row)
}

const trashSelect = `
	SELECT id, original_path, trash_path, category, size_bytes, sha256, is_dir,
	       reason, auto, created_at, expires_at
	FROM trash_manifest`

func scanTrashEntry(row rowScanner) (*TrashEntry, error) {
	var e TrashEntry
	var isDir, auto int
	err := row.Scan(&e.ID, &e.OriginalPath, &e.TrashPath, &e.Category, &e.SizeBytes,
		&e.SHA256, &isDir, &e.Reason, &auto, &e.CreatedAt, &e.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan trash entry: %w", err)
	}
	e.IsDir = isDir != 0
	e.Auto = auto != 0
	return &e, nil
}

// ListTrashEntries returns manifest rows, newest first.
func (s *Store) ListTrashEntries(limit int) ([]*TrashEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(trashSelect+" ORDER BY created_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list trash entries: %w", err)
	}
	defer rows.Close()

	var out []*TrashEntry
	for rows.Next() {
		e, err := scanTrashEntry(rows)
		if err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ExpiredTrashEntries returns rows past their retention.
func (s *Store) ExpiredTrashEntries(now time.Time) ([]*TrashEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(trashSelect+" WHERE expires_at <= ? ORDER BY expires_at", now)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired trash: %w", err)
	}
	defer rows.Close()

	var out []*TrashEntry
	for rows.Next() {
		e, err := scanTrashEntry(rows)
		if err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// RemoveTrashEntry deletes a manifest row (after restore or permanent
// deletion of the payload).
func (s *Store) RemoveTrashEntry(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM trash_manifest WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to remove trash entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
