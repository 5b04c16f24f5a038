package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"jaybrain/internal/logging"
)

// =============================================================================
// MEMORIES
// =============================================================================

// CreateMemory inserts a memory and indexes its content for keyword search.
// The caller is responsible for writing the vector row (the store does not
// embed; see retrieval.Engine.Remember).
func (s *Store) CreateMemory(m *Memory) error {
	timer := logging.StartTimer(logging.CategoryStore, "CreateMemory")
	defer timer.Stop()

	if strings.TrimSpace(m.Content) == "" {
		return fmt.Errorf("validation: memory content must be non-empty")
	}
	if m.Category == "" {
		m.Category = CategorySemantic
	}
	if !ValidMemoryCategories[m.Category] {
		return fmt.Errorf("validation: unknown memory category %q", m.Category)
	}
	if m.Importance < 0 || m.Importance > 1 {
		return fmt.Errorf("validation: importance %v outside [0,1]", m.Importance)
	}
	if m.ID == "" {
		m.ID = NewID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	logging.StoreDebug("Creating memory %s category=%s importance=%.2f", m.ID, m.Category, m.Importance)

	_, err := s.db.Exec(`
		INSERT INTO memories (id, content, category, tags, importance, created_at, access_count, session_id)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?)`,
		m.ID, m.Content, m.Category, marshalList(m.Tags), m.Importance, m.CreatedAt, m.SessionID)
	if err != nil {
		logging.StoreError("Failed to create memory: %v", err)
		return fmt.Errorf("failed to create memory: %w", err)
	}

	s.indexText(MemoryFTSTable, m.ID, m.Content)
	return nil
}

// GetMemory fetches one memory by id.
func (s *Store) GetMemory(id string) (*Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getMemoryLocked(id)
}

func (s *Store) getMemoryLocked(id string) (*Memory, error) {
	row := s.db.QueryRow(`
		SELECT id, content, category, tags, importance, created_at, last_accessed, access_count, session_id
		FROM memories WHERE id = ?`, id)
	return scanMemory(row)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMemory(row rowScanner) (*Memory, error) {
	var m Memory
	var tags string
	var lastAccessed sql.NullTime
	var sessionID sql.NullString
	err := row.Scan(&m.ID, &m.Content, &m.Category, &tags, &m.Importance,
		&m.CreatedAt, &lastAccessed, &m.AccessCount, &sessionID)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan memory: %w", err)
	}
	m.Tags = unmarshalList(tags)
	m.LastAccessed = nullableTime(lastAccessed)
	m.SessionID = sessionID.String
	return &m, nil
}

// GetMemories fetches a batch of memories by id, preserving input order.
// Missing ids are silently skipped.
func (s *Store) GetMemories(ids []string) ([]*Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Memory, 0, len(ids))
	for _, id := range ids {
		m, err := s.getMemoryLocked(id)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// ListMemories returns memories, newest first, optionally filtered by
// category.
func (s *Store) ListMemories(category string, limit int) ([]*Memory, error) {
	timer := logging.StartTimer(logging.CategoryStore, "ListMemories")
	defer timer.Stop()

	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, content, category, tags, importance, created_at, last_accessed, access_count, session_id
		FROM memories`
	args := []interface{}{}
	if category != "" {
		query += " WHERE category = ?"
		args = append(args, category)
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list memories: %w", err)
	}
	defer rows.Close()

	var out []*Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			logging.StoreWarn("Memory scan failed: %v", err)
			continue
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// TouchMemory records a retrieval hit: bumps access_count and resets the
// decay clock via last_accessed.
func (s *Store) TouchMemory(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		UPDATE memories SET access_count = access_count + 1, last_accessed = ?
		WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to touch memory: %w", err)
	}
	return nil
}

// UpdateMemory replaces content/tags/importance on an existing memory and
// reindexes it. Zero-value fields are left unchanged.
func (s *Store) UpdateMemory(id string, content string, tags []string, importance *float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.getMemoryLocked(id)
	if err != nil {
		return err
	}
	if content != "" {
		m.Content = content
	}
	if tags != nil {
		m.Tags = tags
	}
	if importance != nil {
		if *importance < 0 || *importance > 1 {
			return fmt.Errorf("validation: importance %v outside [0,1]", *importance)
		}
		m.Importance = *importance
	}

	_, err = s.db.Exec(`UPDATE memories SET content = ?, tags = ?, importance = ? WHERE id = ?`,
		m.Content, marshalList(m.Tags), m.Importance, id)
	if err != nil {
		return fmt.Errorf("failed to update memory: %w", err)
	}
	s.indexText(MemoryFTSTable, id, m.Content)
	return nil
}

// ArchiveMemory moves a memory into memory_archive and removes the live row,
// its vector row, and its keyword index entry. The archived copy keeps the
// original content and timestamps.
func (s *Store) ArchiveMemory(id, reason string) error {
	timer := logging.StartTimer(logging.CategoryStore, "ArchiveMemory")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin archive transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO memory_archive
			(id, content, category, tags, importance, created_at, last_accessed, access_count, session_id, archived_at, archive_reason)
		SELECT id, content, category, tags, importance, created_at, last_accessed, access_count, session_id, ?, ?
		FROM memories WHERE id = ?`,
		time.Now().UTC(), reason, id)
	if err != nil {
		return fmt.Errorf("failed to copy memory to archive: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if _, err := tx.Exec("DELETE FROM memories WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to remove live memory: %w", err)
	}
	if _, err := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE id = ?", MemoryVecTable), id); err != nil {
		return fmt.Errorf("failed to remove memory vector: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit archive: %w", err)
	}

	s.deindexText(MemoryFTSTable, id)
	logging.Store("Archived memory %s (%s)", id, reason)
	return nil
}

// GetArchivedMemory fetches one archived memory by id.
func (s *Store) GetArchivedMemory(id string) (*ArchivedMemory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT id, content, category, tags, importance, created_at, last_accessed,
		       access_count, session_id, archived_at, archive_reason
		FROM memory_archive WHERE id = ?`, id)

	var a ArchivedMemory
	var tags string
	var lastAccessed sql.NullTime
	var sessionID, reason sql.NullString
	err := row.Scan(&a.ID, &a.Content, &a.Category, &tags, &a.Importance,
		&a.CreatedAt, &lastAccessed, &a.AccessCount, &sessionID, &a.ArchivedAt, &reason)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan archived memory: %w", err)
	}
	a.Tags = unmarshalList(tags)
	a.LastAccessed = nullableTime(lastAccessed)
	a.SessionID = sessionID.String
	a.ArchiveReason = reason.String
	return &a, nil
}

// AllMemoryVectors streams every (id, embedding) pair, used by cluster
// detection and consolidation.
func (s *Store) AllMemoryVectors() (map[string][]float32, error) {
	timer := logging.StartTimer(logging.CategoryStore, "AllMemoryVectors")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(fmt.Sprintf("SELECT id, embedding FROM %s", MemoryVecTable))
	if err != nil {
		return nil, fmt.Errorf("failed to read memory vectors: %w", err)
	}
	defer rows.Close()

	vecs := make(map[string][]float32)
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			continue
		}
		vec, err := DecodeVector(blob)
		if err != nil {
			logging.StoreWarn("Corrupt vector blob for memory %s: %v", id, err)
			continue
		}
		vecs[id] = vec
	}
	return vecs, rows.Err()
}
