package store

import (
	"fmt"
	"sort"
	"strings"

	"jaybrain/internal/logging"
)

// updateAllowlist maps each updatable table to the columns the generic
// UpdateRow helper may set. id and created_at are deliberately absent
// everywhere: identity and provenance never change through this path.
// Defined at package load so a typo fails every test, not one code path.
var updateAllowlist = map[string]map[string]bool{
	"tasks": set("title", "description", "status", "priority", "project",
		"tags", "due_date", "queue_position", "updated_at"),
	"knowledge": set("title", "content", "category", "tags", "source",
		"updated_at"),
	"forge_concepts": set("term", "definition", "category", "difficulty",
		"bloom_level", "mastery_level", "review_count", "correct_count",
		"last_reviewed", "next_review", "tags", "subject_id"),
	"job_boards": set("url", "board_type", "tags", "active", "last_checked",
		"content_hash"),
	"applications": set("status", "resume_path", "cover_letter_path",
		"applied_date", "notes", "updated_at"),
	"graph_entities": set("name", "entity_type", "description", "aliases",
		"memory_ids", "properties", "updated_at"),
	"graph_relationships": set("rel_type", "weight", "evidence_ids",
		"properties"),
	"telegram_bot_state":    set("chat_id", "last_update_id", "enabled", "updated_at"),
	"cram_topics":           set("topic", "priority", "covered"),
	"news_feed_sources":     set("url", "name", "active", "last_polled", "content_hash"),
	"signalforge_articles":  set("url", "title", "content", "cluster_id"),
	"signalforge_clusters":  set("label", "article_count"),
	"signalforge_synthesis": set("cluster_id", "summary"),
}

func set(cols ...string) map[string]bool {
	m := make(map[string]bool, len(cols))
	for _, c := range cols {
		m[c] = true
	}
	return m
}

// ValidateUpdate checks a field map against the allowlist without touching
// the database. Exported so callers composing their own updates can reuse
// the same gate.
func ValidateUpdate(table string, fields map[string]interface{}) error {
	allowed, ok := updateAllowlist[table]
	if !ok {
		return fmt.Errorf("validation: table %q is not updatable", table)
	}
	if len(fields) == 0 {
		return fmt.Errorf("validation: no fields to update")
	}
	for col := range fields {
		if !allowed[col] {
			return fmt.Errorf("validation: column %q not allowed on table %q", col, table)
		}
	}
	return nil
}

// UpdateRow sets the given columns on one row. The field map is validated
// against the per-table allowlist before any SQL is composed; an unknown
// table or column fails without preparing a statement.
func (s *Store) UpdateRow(table, id string, fields map[string]interface{}) error {
	timer := logging.StartTimer(logging.CategoryStore, "UpdateRow")
	defer timer.Stop()

	if err := ValidateUpdate(table, fields); err != nil {
		logging.StoreWarn("UpdateRow rejected: %v", err)
		return err
	}

	// Deterministic column order keeps generated SQL stable for logs/tests.
	cols := make([]string, 0, len(fields))
	for col := range fields {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	assignments := make([]string, 0, len(cols))
	args := make([]interface{}, 0, len(cols)+1)
	for _, col := range cols {
		assignments = append(assignments, col+" = ?")
		args = append(args, fields[col])
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?",
		table, strings.Join(assignments, ", "))

	s.mu.Lock()
	defer s.mu.Unlock()

	logging.StoreDebug("UpdateRow %s id=%s cols=%v", table, id, cols)

	res, err := s.db.Exec(query, args...)
	if err != nil {
		logging.StoreError("UpdateRow failed for %s/%s: %v", table, id, err)
		return fmt.Errorf("failed to update %s: %w", table, err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
