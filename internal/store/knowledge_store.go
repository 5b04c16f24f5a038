package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"jaybrain/internal/logging"
)

// =============================================================================
// KNOWLEDGE ENTRIES
// =============================================================================

// CreateKnowledge inserts a knowledge entry and indexes title + content for
// keyword search. Vector rows are written by the retrieval layer.
func (s *Store) CreateKnowledge(k *Knowledge) error {
	timer := logging.StartTimer(logging.CategoryStore, "CreateKnowledge")
	defer timer.Stop()

	if strings.TrimSpace(k.Title) == "" {
		return fmt.Errorf("validation: knowledge title must be non-empty")
	}
	if strings.TrimSpace(k.Content) == "" {
		return fmt.Errorf("validation: knowledge content must be non-empty")
	}
	if k.ID == "" {
		k.ID = NewID()
	}
	now := time.Now().UTC()
	k.CreatedAt = now
	k.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO knowledge (id, title, content, category, tags, source, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		k.ID, k.Title, k.Content, k.Category, marshalList(k.Tags), k.Source, k.CreatedAt, k.UpdatedAt)
	if err != nil {
		logging.StoreError("Failed to create knowledge entry: %v", err)
		return fmt.Errorf("failed to create knowledge entry: %w", err)
	}

	s.indexText(KnowledgeFTSTable, k.ID, k.Title+"\n"+k.Content)
	return nil
}

// GetKnowledge fetches one entry by id.
func (s *Store) GetKnowledge(id string) (*Knowledge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getKnowledgeLocked(id)
}

func (s *Store) getKnowledgeLocked(id string) (*Knowledge, error) {
	row := s.db.QueryRow(`
		SELECT id, title, content, category, tags, source, created_at, updated_at
		FROM knowledge WHERE id = ?`, id)
	return scanKnowledge(row)
}

func scanKnowledge(row rowScanner) (*Knowledge, error) {
	var k Knowledge
	var tags string
	err := row.Scan(&k.ID, &k.Title, &k.Content, &k.Category, &tags, &k.Source,
		&k.CreatedAt, &k.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan knowledge entry: %w", err)
	}
	k.Tags = unmarshalList(tags)
	return &k, nil
}

// GetKnowledgeBatch fetches entries by id, preserving order and skipping
// misses.
func (s *Store) GetKnowledgeBatch(ids []string) ([]*Knowledge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Knowledge, 0, len(ids))
	for _, id := range ids {
		k, err := s.getKnowledgeLocked(id)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}

// UpdateKnowledge applies a field map through the allowlist and reindexes
// when title or content changed.
func (s *Store) UpdateKnowledge(id string, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now().UTC()
	if err := s.UpdateRow("knowledge", id, fields); err != nil {
		return err
	}

	_, titleChanged := fields["title"]
	_, contentChanged := fields["content"]
	if titleChanged || contentChanged {
		s.mu.Lock()
		defer s.mu.Unlock()
		k, err := s.getKnowledgeLocked(id)
		if err != nil {
			return err
		}
		s.indexText(KnowledgeFTSTable, id, k.Title+"\n"+k.Content)
	}
	return nil
}

// ListKnowledge returns entries, newest first, optionally by category.
func (s *Store) ListKnowledge(category string, limit int) ([]*Knowledge, error) {
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, title, content, category, tags, source, created_at, updated_at
		FROM knowledge`
	var args []interface{}
	if category != "" {
		query += " WHERE category = ?"
		args = append(args, category)
	}
	query += " ORDER BY updated_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list knowledge: %w", err)
	}
	defer rows.Close()

	var out []*Knowledge
	for rows.Next() {
		k, err := scanKnowledge(rows)
		if err != nil {
			logging.StoreWarn("Knowledge scan failed: %v", err)
			continue
		}
		out = append(out, k)
	}
	return out, rows.Err()
}
