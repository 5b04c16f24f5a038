package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"jaybrain/internal/logging"
)

// =============================================================================
// FORGE: SUBJECTS + OBJECTIVES
// =============================================================================

// CreateSubject inserts a study subject.
func (s *Store) CreateSubject(sub *Subject) error {
	if strings.TrimSpace(sub.Name) == "" {
		return fmt.Errorf("validation: subject name must be non-empty")
	}
	if sub.PassScore <= 0 || sub.PassScore > 1 {
		sub.PassScore = 0.8
	}
	if sub.ID == "" {
		sub.ID = NewID()
	}
	sub.CreatedAt = time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO forge_subjects (id, name, exam_date, pass_score, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		sub.ID, sub.Name, sub.ExamDate, sub.PassScore, sub.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create subject: %w", err)
	}
	return nil
}

// GetSubject fetches a subject by id or unique name.
func (s *Store) GetSubject(ref string) (*Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT id, name, exam_date, pass_score, created_at
		FROM forge_subjects WHERE id = ? OR name = ?`, ref, ref)
	var sub Subject
	err := row.Scan(&sub.ID, &sub.Name, &sub.ExamDate, &sub.PassScore, &sub.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan subject: %w", err)
	}
	return &sub, nil
}

// CreateObjective inserts an exam objective under a subject.
func (s *Store) CreateObjective(o *Objective) error {
	if o.SubjectID == "" || strings.TrimSpace(o.Code) == "" {
		return fmt.Errorf("validation: objective needs subject_id and code")
	}
	if o.ExamWeight < 0 || o.ExamWeight > 1 {
		return fmt.Errorf("validation: exam_weight %v outside [0,1]", o.ExamWeight)
	}
	if o.ID == "" {
		o.ID = NewID()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO forge_objectives (id, subject_id, code, title, domain, exam_weight)
		VALUES (?, ?, ?, ?, ?, ?)`,
		o.ID, o.SubjectID, o.Code, o.Title, o.Domain, o.ExamWeight)
	if err != nil {
		return fmt.Errorf("failed to create objective: %w", err)
	}
	return nil
}

// ListObjectives returns a subject's objectives ordered by code.
func (s *Store) ListObjectives(subjectID string) ([]*Objective, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, subject_id, code, title, domain, exam_weight
		FROM forge_objectives WHERE subject_id = ? ORDER BY code`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list objectives: %w", err)
	}
	defer rows.Close()

	var out []*Objective
	for rows.Next() {
		var o Objective
		if err := rows.Scan(&o.ID, &o.SubjectID, &o.Code, &o.Title, &o.Domain, &o.ExamWeight); err != nil {
			continue
		}
		out = append(out, &o)
	}
	return out, rows.Err()
}

// LinkConceptObjective attaches a concept to an objective (many-to-many,
// idempotent).
func (s *Store) LinkConceptObjective(conceptID, objectiveID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO forge_concept_objectives (concept_id, objective_id)
		VALUES (?, ?)`, conceptID, objectiveID)
	if err != nil {
		return fmt.Errorf("failed to link concept to objective: %w", err)
	}
	return nil
}

// ObjectivesForConcept returns the objectives a concept is linked to.
func (s *Store) ObjectivesForConcept(conceptID string) ([]*Objective, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT o.id, o.subject_id, o.code, o.title, o.domain, o.exam_weight
		FROM forge_objectives o
		JOIN forge_concept_objectives co ON co.objective_id = o.id
		WHERE co.concept_id = ?
		ORDER BY o.code`, conceptID)
	if err != nil {
		return nil, fmt.Errorf("failed to query concept objectives: %w", err)
	}
	defer rows.Close()

	var out []*Objective
	for rows.Next() {
		var o Objective
		if err := rows.Scan(&o.ID, &o.SubjectID, &o.Code, &o.Title, &o.Domain, &o.ExamWeight); err != nil {
			continue
		}
		out = append(out, &o)
	}
	return out, rows.Err()
}

// ConceptsForObjective returns concepts linked to an objective.
func (s *Store) ConceptsForObjective(objectiveID string) ([]*Concept, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(conceptSelect+`
		JOIN forge_concept_objectives co ON co.concept_id = forge_concepts.id
		WHERE co.objective_id = ?`, objectiveID)
	if err != nil {
		return nil, fmt.Errorf("failed to query objective concepts: %w", err)
	}
	defer rows.Close()
	return collectConcepts(rows)
}

// =============================================================================
// FORGE: CONCEPTS
// =============================================================================

// CreateConcept inserts a concept, indexes it for keyword search, and bumps
// the day's concepts_added streak counter.
func (s *Store) CreateConcept(c *Concept) error {
	timer := logging.StartTimer(logging.CategoryStore, "CreateConcept")
	defer timer.Stop()

	if strings.TrimSpace(c.Term) == "" || strings.TrimSpace(c.Definition) == "" {
		return fmt.Errorf("validation: concept term and definition must be non-empty")
	}
	if c.Difficulty == "" {
		c.Difficulty = "intermediate"
	}
	if !ValidDifficulties[c.Difficulty] {
		return fmt.Errorf("validation: unknown difficulty %q", c.Difficulty)
	}
	if c.BloomLevel == "" {
		c.BloomLevel = "understand"
	}
	if !ValidBloomLevels[c.BloomLevel] {
		return fmt.Errorf("validation: unknown bloom level %q", c.BloomLevel)
	}
	if c.ID == "" {
		c.ID = NewID()
	}
	c.CreatedAt = time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO forge_concepts
			(id, term, definition, category, difficulty, bloom_level, mastery_level,
			 review_count, correct_count, tags, subject_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Term, c.Definition, c.Category, c.Difficulty, c.BloomLevel,
		c.MasteryLevel, c.ReviewCount, c.CorrectCount,
		marshalList(c.Tags), nullIfEmpty(c.SubjectID), c.CreatedAt)
	if err != nil {
		logging.StoreError("Failed to create concept: %v", err)
		return fmt.Errorf("failed to create concept: %w", err)
	}

	s.indexText(ConceptFTSTable, c.ID, c.Term+"\n"+c.Definition)
	s.bumpStreakLocked(time.Now(), 0, 1, 0)
	return nil
}

const conceptSelect = `
	SELECT forge_concepts.id, term, definition, forge_concepts.category, difficulty, bloom_level,
	       mastery_level, review_count, correct_count, last_reviewed, next_review,
	       forge_concepts.tags, forge_concepts.subject_id, forge_concepts.created_at
	FROM forge_concepts`

func scanConcept(row rowScanner) (*Concept, error) {
	var c Concept
	var tags string
	var lastReviewed, nextReview sql.NullTime
	var subjectID sql.NullString
	err := row.Scan(&c.ID, &c.Term, &c.Definition, &c.Category, &c.Difficulty,
		&c.BloomLevel, &c.MasteryLevel, &c.ReviewCount, &c.CorrectCount,
		&lastReviewed, &nextReview, &tags, &subjectID, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan concept: %w", err)
	}
	c.Tags = unmarshalList(tags)
	c.LastReviewed = nullableTime(lastReviewed)
	c.NextReview = nullableTime(nextReview)
	c.SubjectID = subjectID.String
	return &c, nil
}

func collectConcepts(rows *sql.Rows) ([]*Concept, error) {
	var out []*Concept
	for rows.Next() {
		c, err := scanConcept(rows)
		if err != nil {
			logging.StoreWarn("Concept scan failed: %v", err)
			continue
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetConcept fetches one concept by id.
func (s *Store) GetConcept(id string) (*Concept, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(conceptSelect+" WHERE forge_concepts.id = ?", id)
	return scanConcept(row)
}

// ListConcepts returns concepts, optionally scoped to a subject.
func (s *Store) ListConcepts(subjectID string, limit int) ([]*Concept, error) {
	if limit <= 0 {
		limit = 200
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	q := conceptSelect
	var args []interface{}
	if subjectID != "" {
		q += " WHERE forge_concepts.subject_id = ?"
		args = append(args, subjectID)
	}
	q += " ORDER BY forge_concepts.created_at LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list concepts: %w", err)
	}
	defer rows.Close()
	return collectConcepts(rows)
}

// ApplyConceptReview persists the post-review state computed by the forge
// engine: mastery, counts, next_review, the review row, the optional error
// pattern, and the day's streak counter, all in one transaction.
func (s *Store) ApplyConceptReview(c *Concept, r *Review, errPattern string) error {
	timer := logging.StartTimer(logging.CategoryStore, "ApplyConceptReview")
	defer timer.Stop()

	if r.ID == "" {
		r.ID = NewID()
	}
	if r.ReviewedAt.IsZero() {
		r.ReviewedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin review transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE forge_concepts
		SET mastery_level = ?, review_count = ?, correct_count = ?, last_reviewed = ?, next_review = ?
		WHERE id = ?`,
		c.MasteryLevel, c.ReviewCount, c.CorrectCount, c.LastReviewed, c.NextReview, c.ID)
	if err != nil {
		return fmt.Errorf("failed to update concept: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	var wasCorrect interface{}
	if r.WasCorrect != nil {
		if *r.WasCorrect {
			wasCorrect = 1
		} else {
			wasCorrect = 0
		}
	}
	if _, err := tx.Exec(`
		INSERT INTO forge_reviews (id, concept_id, outcome, confidence, was_correct, notes, subject_id, reviewed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ConceptID, r.Outcome, r.Confidence, wasCorrect, r.Notes,
		nullIfEmpty(r.SubjectID), r.ReviewedAt); err != nil {
		return fmt.Errorf("failed to record review: %w", err)
	}

	if errPattern != "" {
		if _, err := tx.Exec(`
			INSERT INTO forge_error_patterns (id, concept_id, error_type, notes)
			VALUES (?, ?, ?, ?)`,
			NewID(), r.ConceptID, errPattern, r.Notes); err != nil {
			return fmt.Errorf("failed to record error pattern: %w", err)
		}
	}

	date := r.ReviewedAt.Local().Format("2006-01-02")
	if _, err := tx.Exec(`
		INSERT INTO forge_streaks (date, concepts_reviewed) VALUES (?, 1)
		ON CONFLICT(date) DO UPDATE SET concepts_reviewed = concepts_reviewed + 1`, date); err != nil {
		return fmt.Errorf("failed to update streak: %w", err)
	}

	return tx.Commit()
}

// =============================================================================
// FORGE: QUEUE QUERIES
// =============================================================================

// DueConcepts returns concepts with next_review at or before now.
func (s *Store) DueConcepts(subjectID string, now time.Time, limit int) ([]*Concept, error) {
	return s.conceptsWhere(subjectID, "next_review IS NOT NULL AND next_review <= ?", []interface{}{now}, limit)
}

// NewConcepts returns never-reviewed concepts.
func (s *Store) NewConcepts(subjectID string, limit int) ([]*Concept, error) {
	return s.conceptsWhere(subjectID, "review_count = 0", nil, limit)
}

// StrugglingConcepts returns low-mastery concepts with review history.
func (s *Store) StrugglingConcepts(subjectID string, masteryBelow float64, minReviews, limit int) ([]*Concept, error) {
	return s.conceptsWhere(subjectID, "mastery_level < ? AND review_count >= ?",
		[]interface{}{masteryBelow, minReviews}, limit)
}

// UpcomingConcepts returns concepts due within the window, exclusive of
// already-due items.
func (s *Store) UpcomingConcepts(subjectID string, now time.Time, within time.Duration, limit int) ([]*Concept, error) {
	return s.conceptsWhere(subjectID, "next_review IS NOT NULL AND next_review > ? AND next_review <= ?",
		[]interface{}{now, now.Add(within)}, limit)
}

func (s *Store) conceptsWhere(subjectID, cond string, args []interface{}, limit int) ([]*Concept, error) {
	if limit <= 0 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	q := conceptSelect + " WHERE " + cond
	if subjectID != "" {
		q += " AND forge_concepts.subject_id = ?"
		args = append(args, subjectID)
	}
	q += " ORDER BY next_review LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query concepts: %w", err)
	}
	defer rows.Close()
	return collectConcepts(rows)
}

// =============================================================================
// FORGE: REVIEWS, STREAKS, ERROR PATTERNS
// =============================================================================

// ListReviews returns reviews in scope, newest first. Empty subjectID means
// all reviews.
func (s *Store) ListReviews(subjectID string, limit int) ([]*Review, error) {
	if limit <= 0 {
		limit = 500
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	q := `
		SELECT id, concept_id, outcome, confidence, was_correct, notes, subject_id, reviewed_at
		FROM forge_reviews`
	var args []interface{}
	if subjectID != "" {
		q += " WHERE subject_id = ?"
		args = append(args, subjectID)
	}
	q += " ORDER BY reviewed_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	var out []*Review
	for rows.Next() {
		var r Review
		var wasCorrect sql.NullInt64
		var subject sql.NullString
		if err := rows.Scan(&r.ID, &r.ConceptID, &r.Outcome, &r.Confidence,
			&wasCorrect, &r.Notes, &subject, &r.ReviewedAt); err != nil {
			continue
		}
		if wasCorrect.Valid {
			b := wasCorrect.Int64 != 0
			r.WasCorrect = &b
		}
		r.SubjectID = subject.String
		out = append(out, &r)
	}
	return out, rows.Err()
}

// StreakDates returns every date (YYYY-MM-DD, local) with at least one
// review, ascending.
func (s *Store) StreakDates() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT date FROM forge_streaks WHERE concepts_reviewed > 0 ORDER BY date`)
	if err != nil {
		return nil, fmt.Errorf("failed to query streaks: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			continue
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// bumpStreakLocked increments the day's streak counters. Callers hold s.mu.
func (s *Store) bumpStreakLocked(day time.Time, reviewed, added, seconds int) {
	date := day.Local().Format("2006-01-02")
	_, err := s.db.Exec(`
		INSERT INTO forge_streaks (date, concepts_reviewed, concepts_added, time_spent_seconds)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			concepts_reviewed = concepts_reviewed + excluded.concepts_reviewed,
			concepts_added = concepts_added + excluded.concepts_added,
			time_spent_seconds = time_spent_seconds + excluded.time_spent_seconds`,
		date, reviewed, added, seconds)
	if err != nil {
		logging.StoreWarn("Streak bump failed: %v", err)
	}
}

// ListErrorPatterns returns classified wrong answers, newest first,
// optionally filtered by error type.
func (s *Store) ListErrorPatterns(errorType string, limit int) ([]*ErrorPattern, error) {
	if limit <= 0 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	q := `SELECT id, concept_id, error_type, notes, created_at FROM forge_error_patterns`
	var args []interface{}
	if errorType != "" {
		q += " WHERE error_type = ?"
		args = append(args, errorType)
	}
	q += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list error patterns: %w", err)
	}
	defer rows.Close()

	var out []*ErrorPattern
	for rows.Next() {
		var p ErrorPattern
		if err := rows.Scan(&p.ID, &p.ConceptID, &p.ErrorType, &p.Notes, &p.CreatedAt); err != nil {
			continue
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
