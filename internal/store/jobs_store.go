package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// JOB BOARDS
// =============================================================================

// CreateJobBoard registers a posting source. Board URLs are unique.
func (s *Store) CreateJobBoard(b *JobBoard) error {
	if strings.TrimSpace(b.URL) == "" {
		return fmt.Errorf("validation: board url is required")
	}
	if b.ID == "" {
		b.ID = NewID()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO job_boards (id, url, board_type, tags, active, last_checked, content_hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.URL, b.BoardType, marshalList(b.Tags), boolToInt(b.Active),
		timeParam(b.LastChecked), b.ContentHash, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create job board: %w", err)
	}
	return nil
}

const boardSelect = `
	SELECT id, url, board_type, tags, active, last_checked, content_hash, created_at
	FROM job_boards`

func scanJobBoard(row rowScanner) (*JobBoard, error) {
	var b JobBoard
	var tags string
	var active int
	var lastChecked sql.NullTime
	err := row.Scan(&b.ID, &b.URL, &b.BoardType, &tags, &active, &lastChecked,
		&b.ContentHash, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job board: %w", err)
	}
	b.Tags = unmarshalList(tags)
	b.Active = active != 0
	if lastChecked.Valid {
		b.LastChecked = &lastChecked.Time
	}
	return &b, nil
}

// GetJobBoard fetches one board by id.
func (s *Store) GetJobBoard(id string) (*JobBoard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return scanJobBoard(s.db.QueryRow(boardSelect+" WHERE id = ?", id))
}

// ListJobBoards returns boards, optionally only active ones.
func (s *Store) ListJobBoards(activeOnly bool) ([]*JobBoard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := boardSelect
	if activeOnly {
		q += " WHERE active = 1"
	}
	q += " ORDER BY created_at"

	rows, err := s.db.Query(q)
	if err != nil {
		return nil, fmt.Errorf("failed to list job boards: %w", err)
	}
	defer rows.Close()

	var out []*JobBoard
	for rows.Next() {
		b, err := scanJobBoard(rows)
		if err != nil {
			continue
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// MarkBoardChecked stamps last_checked and the content hash from the latest
// poll. An unchanged hash lets the poller skip extraction.
func (s *Store) MarkBoardChecked(id, contentHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		UPDATE job_boards SET last_checked = ?, content_hash = ? WHERE id = ?`,
		time.Now().UTC(), contentHash, id)
	if err != nil {
		return fmt.Errorf("failed to mark board checked: %w", err)
	}
	return nil
}

// =============================================================================
// JOB POSTINGS
// =============================================================================

// CreateJobPosting records one discovered role and indexes it for keyword
// search.
func (s *Store) CreateJobPosting(p *JobPosting) error {
	if strings.TrimSpace(p.Title) == "" || strings.TrimSpace(p.Company) == "" {
		return fmt.Errorf("validation: posting title and company are required")
	}
	if p.ID == "" {
		p.ID = NewID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO job_postings
			(id, title, company, url, description, required_skills, preferred_skills,
			 salary_min, salary_max, work_mode, location, board_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Title, p.Company, p.URL, p.Description,
		marshalList(p.RequiredSkills), marshalList(p.PreferredSkills),
		p.SalaryMin, p.SalaryMax, p.WorkMode, p.Location, p.BoardID, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create job posting: %w", err)
	}

	s.indexText(JobPostingFTSTable, p.ID, postingIndexText(p))
	return nil
}

func postingIndexText(p *JobPosting) string {
	parts := []string{p.Title, p.Company, p.Description}
	parts = append(parts, p.RequiredSkills...)
	parts = append(parts, p.PreferredSkills...)
	return strings.Join(parts, "\n")
}

const postingSelect = `
	SELECT id, title, company, url, description, required_skills, preferred_skills,
	       salary_min, salary_max, work_mode, location, COALESCE(board_id, ''), created_at
	FROM job_postings`

func scanJobPosting(row rowScanner) (*JobPosting, error) {
	var p JobPosting
	var required, preferred string
	err := row.Scan(&p.ID, &p.Title, &p.Company, &p.URL, &p.Description,
		&required, &preferred, &p.SalaryMin, &p.SalaryMax, &p.WorkMode,
		&p.Location, &p.BoardID, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan job posting: %w", err)
	}
	p.RequiredSkills = unmarshalList(required)
	p.PreferredSkills = unmarshalList(preferred)
	return &p, nil
}

// GetJobPosting fetches one posting by id.
func (s *Store) GetJobPosting(id string) (*JobPosting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return scanJobPosting(s.db.QueryRow(postingSelect+" WHERE id = ?", id))
}

// ListJobPostings returns postings, newest first, optionally scoped to a
// board.
func (s *Store) ListJobPostings(boardID string, limit int) ([]*JobPosting, error) {
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	q := postingSelect
	var args []interface{}
	if boardID != "" {
		q += " WHERE board_id = ?"
		args = append(args, boardID)
	}
	q += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list job postings: %w", err)
	}
	defer rows.Close()

	var out []*JobPosting
	for rows.Next() {
		p, err := scanJobPosting(rows)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// FindPostingByURL looks a posting up by its exact URL, for dedupe during
// board polls. ErrNotFound when no match.
func (s *Store) FindPostingByURL(url string) (*JobPosting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return scanJobPosting(s.db.QueryRow(postingSelect+" WHERE url = ?", url))
}

// =============================================================================
// APPLICATIONS
// =============================================================================

// CreateApplication opens a pipeline record for a posting.
func (s *Store) CreateApplication(a *Application) error {
	if a.PostingID == "" {
		return fmt.Errorf("validation: posting_id is required")
	}
	if a.Status == "" {
		a.Status = "discovered"
	}
	if !ValidApplicationStatuses[a.Status] {
		return fmt.Errorf("validation: invalid application status %q", a.Status)
	}
	if a.ID == "" {
		a.ID = NewID()
	}
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO applications
			(id, posting_id, status, resume_path, cover_letter_path, applied_date, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.PostingID, a.Status, a.ResumePath, a.CoverLetterPath,
		timeParam(a.AppliedDate), a.Notes, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	return nil
}

const applicationSelect = `
	SELECT id, posting_id, status, resume_path, cover_letter_path, applied_date,
	       notes, created_at, updated_at
	FROM applications`

func scanApplication(row rowScanner) (*Application, error) {
	var a Application
	var applied sql.NullTime
	err := row.Scan(&a.ID, &a.PostingID, &a.Status, &a.ResumePath,
		&a.CoverLetterPath, &applied, &a.Notes, &a.CreatedAt, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan application: %w", err)
	}
	if applied.Valid {
		a.AppliedDate = &applied.Time
	}
	return &a, nil
}

// GetApplication fetches one application by id.
func (s *Store) GetApplication(id string) (*Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return scanApplication(s.db.QueryRow(applicationSelect+" WHERE id = ?", id))
}

// ListApplications returns applications, optionally filtered by status,
// most recently updated first.
func (s *Store) ListApplications(status string, limit int) ([]*Application, error) {
	if status != "" && !ValidApplicationStatuses[status] {
		return nil, fmt.Errorf("validation: invalid application status %q", status)
	}
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	q := applicationSelect
	var args []interface{}
	if status != "" {
		q += " WHERE status = ?"
		args = append(args, status)
	}
	q += " ORDER BY updated_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	var out []*Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			continue
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpdateApplicationStatus transitions an application. Moving to "applied"
// stamps applied_date when it was not already set.
func (s *Store) UpdateApplicationStatus(id, status, notes string) error {
	if !ValidApplicationStatuses[status] {
		return fmt.Errorf("validation: invalid application status %q", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	q := `UPDATE applications SET status = ?, updated_at = ?`
	args := []interface{}{status, now}
	if status == "applied" {
		q += `, applied_date = COALESCE(applied_date, ?)`
		args = append(args, now)
	}
	if notes != "" {
		q += `, notes = ?`
		args = append(args, notes)
	}
	q += ` WHERE id = ?`
	args = append(args, id)

	res, err := s.db.Exec(q, args...)
	if err != nil {
		return fmt.Errorf("failed to update application: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// =============================================================================
// INTERVIEW PREP
// =============================================================================

// AddInterviewPrep attaches a prep note to an application.
func (s *Store) AddInterviewPrep(p *InterviewPrep) error {
	if p.ApplicationID == "" || strings.TrimSpace(p.Topic) == "" {
		return fmt.Errorf("validation: application_id and topic are required")
	}
	if p.ID == "" {
		p.ID = NewID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO interview_prep (id, application_id, topic, notes, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.ApplicationID, p.Topic, p.Notes, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add interview prep: %w", err)
	}
	return nil
}

// ListInterviewPrep returns prep notes for one application, oldest first.
func (s *Store) ListInterviewPrep(applicationID string) ([]*InterviewPrep, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, application_id, topic, notes, created_at
		FROM interview_prep WHERE application_id = ? ORDER BY created_at`, applicationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list interview prep: %w", err)
	}
	defer rows.Close()

	var out []*InterviewPrep
	for rows.Next() {
		var p InterviewPrep
		if err := rows.Scan(&p.ID, &p.ApplicationID, &p.Topic, &p.Notes, &p.CreatedAt); err != nil {
			continue
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}
