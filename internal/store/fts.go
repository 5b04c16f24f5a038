package store

import (
	"fmt"
	"strings"
	"unicode"

	"jaybrain/internal/logging"
)

// Full-text index tables, one per searchable text table. Maintained by the
// CRUD paths rather than triggers so the pure-Go driver build behaves the
// same as the cgo build.
const (
	MemoryFTSTable     = "memories_fts"
	KnowledgeFTSTable  = "knowledge_fts"
	ConceptFTSTable    = "forge_concepts_fts"
	JobPostingFTSTable = "job_postings_fts"
)

var ftsTables = []string{MemoryFTSTable, KnowledgeFTSTable, ConceptFTSTable, JobPostingFTSTable}

// ensureKeywordIndexes creates the FTS5 index tables. When the linked SQLite
// lacks FTS5 (mattn/go-sqlite3 only compiles it in under the sqlite_fts5
// build tag), the same table names are created as plain tables and keyword
// search degrades to a LIKE scan.
func (s *Store) ensureKeywordIndexes() error {
	s.ftsExt = true
	for i, tbl := range ftsTables {
		_, err := s.db.Exec(fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS %s USING fts5(id UNINDEXED, content)`, tbl))
		if err == nil {
			continue
		}
		if i == 0 && strings.Contains(strings.ToLower(err.Error()), "fts5") {
			s.ftsExt = false
			break
		}
		return fmt.Errorf("failed to create FTS table: %w", err)
	}
	if s.ftsExt {
		return nil
	}

	logging.StoreWarn("FTS5 not available in this build; keyword search uses LIKE fallback")
	for _, tbl := range ftsTables {
		if _, err := s.db.Exec(fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, content TEXT)`, tbl)); err != nil {
			return fmt.Errorf("failed to create keyword table: %w", err)
		}
	}
	return nil
}

// ftsTokens strips everything that is not a word character and splits on
// whitespace.
func ftsTokens(query string) []string {
	var b strings.Builder
	for _, r := range query {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Fields(b.String())
}

// SanitizeFTSQuery turns free text into a safe FTS5 match expression: strip
// everything that is not a word character, split on whitespace, quote each
// token. Returns "" when nothing survives; callers treat that as no results,
// never as an error.
func SanitizeFTSQuery(query string) string {
	words := ftsTokens(query)
	if len(words) == 0 {
		return ""
	}
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = `"` + w + `"`
	}
	return strings.Join(quoted, " ")
}

// KeywordHit is one FTS result. Score is raw bm25: negative, closer to
// negative infinity means a better match.
type KeywordHit struct {
	ID    string
	Score float64
}

// SearchKeyword runs a sanitised FTS query against one index table.
func (s *Store) SearchKeyword(table, query string, limit int) ([]KeywordHit, error) {
	timer := logging.StartTimer(logging.CategoryStore, "SearchKeyword")
	defer timer.Stop()

	if limit <= 0 {
		limit = 10
	}
	match := SanitizeFTSQuery(query)
	if match == "" {
		logging.StoreDebug("Keyword query empty after sanitise: %q", query)
		return nil, nil
	}
	if !s.ftsExt {
		return s.searchKeywordLike(table, ftsTokens(query), limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(fmt.Sprintf(
		`SELECT id, bm25(%s) FROM %s WHERE %s MATCH ? ORDER BY bm25(%s) LIMIT ?`,
		table, table, table, table), match, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	defer rows.Close()

	var hits []KeywordHit
	for rows.Next() {
		var h KeywordHit
		if err := rows.Scan(&h.ID, &h.Score); err != nil {
			logging.StoreWarn("Keyword hit scan failed: %v", err)
			continue
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// searchKeywordLike approximates relevance without FTS5: one point per query
// token present in the row, negated to keep the bm25 ordering contract
// (lower is better).
func (s *Store) searchKeywordLike(table string, words []string, limit int) ([]KeywordHit, error) {
	terms := make([]string, len(words))
	args := make([]interface{}, 0, len(words)+1)
	for i, w := range words {
		terms[i] = "(content LIKE ?)"
		args = append(args, "%"+w+"%")
	}
	args = append(args, limit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(fmt.Sprintf(
		`SELECT id, -(%s) AS score FROM %s ORDER BY score LIMIT ?`,
		strings.Join(terms, " + "), table), args...)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}
	defer rows.Close()

	var hits []KeywordHit
	for rows.Next() {
		var h KeywordHit
		if err := rows.Scan(&h.ID, &h.Score); err != nil {
			logging.StoreWarn("Keyword hit scan failed: %v", err)
			continue
		}
		if h.Score >= 0 {
			continue
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// indexText replaces the FTS row for an id. Callers hold s.mu.
func (s *Store) indexText(table, id, content string) {
	if _, err := s.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE id = ?", table), id); err != nil {
		logging.StoreDebug("FTS clear failed for %s/%s: %v", table, id, err)
	}
	if _, err := s.db.Exec(fmt.Sprintf("INSERT INTO %s (id, content) VALUES (?, ?)", table), id, content); err != nil {
		logging.StoreWarn("FTS index failed for %s/%s: %v", table, id, err)
	}
}

// deindexText removes the FTS row for an id. Callers hold s.mu.
func (s *Store) deindexText(table, id string) {
	if _, err := s.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE id = ?", table), id); err != nil {
		logging.StoreDebug("FTS deindex failed for %s/%s: %v", table, id, err)
	}
}
