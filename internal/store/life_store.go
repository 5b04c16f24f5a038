package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// LIFE DOMAINS + GOALS
// =============================================================================

// CreateLifeDomain registers a life area. Names are unique.
func (s *Store) CreateLifeDomain(d *LifeDomain) error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("validation: domain name is required")
	}
	if d.ID == "" {
		d.ID = NewID()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO life_domains (id, name, priority, hours_per_week, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		d.ID, d.Name, d.Priority, d.HoursPerWeek, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create life domain: %w", err)
	}
	return nil
}

// ListLifeDomains returns domains ordered by priority then name.
func (s *Store) ListLifeDomains() ([]*LifeDomain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, name, priority, hours_per_week, created_at
		FROM life_domains ORDER BY priority DESC, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list life domains: %w", err)
	}
	defer rows.Close()

	var out []*LifeDomain
	for rows.Next() {
		var d LifeDomain
		if err := rows.Scan(&d.ID, &d.Name, &d.Priority, &d.HoursPerWeek, &d.CreatedAt); err != nil {
			continue
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

// GetLifeDomain resolves a domain by id or exact name.
func (s *Store) GetLifeDomain(idOrName string) (*LifeDomain, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT id, name, priority, hours_per_week, created_at
		FROM life_domains WHERE id = ? OR name = ?`, idOrName, idOrName)

	var d LifeDomain
	err := row.Scan(&d.ID, &d.Name, &d.Priority, &d.HoursPerWeek, &d.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan life domain: %w", err)
	}
	return &d, nil
}

// CreateLifeGoal adds a goal inside a domain.
func (s *Store) CreateLifeGoal(g *LifeGoal) error {
	if g.DomainID == "" || strings.TrimSpace(g.Title) == "" {
		return fmt.Errorf("validation: domain_id and title are required")
	}
	if g.Status == "" {
		g.Status = "active"
	}
	if g.ID == "" {
		g.ID = NewID()
	}
	now := time.Now().UTC()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	g.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO life_goals (id, domain_id, title, status, progress, target_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.DomainID, g.Title, g.Status, g.Progress,
		timeParam(g.TargetDate), g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create life goal: %w", err)
	}
	return nil
}

func scanLifeGoal(row rowScanner) (*LifeGoal, error) {
	var g LifeGoal
	var target sql.NullTime
	err := row.Scan(&g.ID, &g.DomainID, &g.Title, &g.Status, &g.Progress,
		&target, &g.CreatedAt, &g.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan life goal: %w", err)
	}
	if target.Valid {
		g.TargetDate = &target.Time
	}
	return &g, nil
}

const lifeGoalSelect = `
	SELECT id, domain_id, title, status, progress, target_date, created_at, updated_at
	FROM life_goals`

// GetLifeGoal fetches one goal by id.
func (s *Store) GetLifeGoal(id string) (*LifeGoal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return scanLifeGoal(s.db.QueryRow(lifeGoalSelect+" WHERE id = ?", id))
}

// ListLifeGoals returns goals, optionally scoped to a domain and/or status.
func (s *Store) ListLifeGoals(domainID, status string) ([]*LifeGoal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := lifeGoalSelect
	var conds []string
	var args []interface{}
	if domainID != "" {
		conds = append(conds, "domain_id = ?")
		args = append(args, domainID)
	}
	if status != "" {
		conds = append(conds, "status = ?")
		args = append(args, status)
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY created_at"

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list life goals: %w", err)
	}
	defer rows.Close()

	var out []*LifeGoal
	for rows.Next() {
		g, err := scanLifeGoal(rows)
		if err != nil {
			continue
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// UpdateLifeGoalProgress sets progress (clamped to [0,1]) and optionally a
// new status. Progress reaching 1.0 with no explicit status marks the goal
// completed.
func (s *Store) UpdateLifeGoalProgress(id string, progress float64, status string) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	if status == "" && progress >= 1 {
		status = "completed"
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	q := `UPDATE life_goals SET progress = ?, updated_at = ?`
	args := []interface{}{progress, time.Now().UTC()}
	if status != "" {
		q += `, status = ?`
		args = append(args, status)
	}
	q += ` WHERE id = ?`
	args = append(args, id)

	res, err := s.db.Exec(q, args...)
	if err != nil {
		return fmt.Errorf("failed to update life goal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// =============================================================================
// SUBGOALS + METRICS
// =============================================================================

// Subgoal is one checklist item under a goal.
type Subgoal struct {
	ID        string    `json:"id"`
	GoalID    string    `json:"goal_id"`
	Title     string    `json:"title"`
	Done      bool      `json:"done"`
	CreatedAt time.Time `json:"created_at"`
}

// AddSubgoal appends a checklist item.
func (s *Store) AddSubgoal(goalID, title string) (*Subgoal, error) {
	if goalID == "" || strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("validation: goal_id and title are required")
	}

	sg := &Subgoal{ID: NewID(), GoalID: goalID, Title: title, CreatedAt: time.Now().UTC()}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO life_subgoals (id, goal_id, title, done, created_at)
		VALUES (?, ?, ?, 0, ?)`,
		sg.ID, sg.GoalID, sg.Title, sg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to add subgoal: %w", err)
	}
	return sg, nil
}

// SetSubgoalDone toggles a checklist item.
func (s *Store) SetSubgoalDone(id string, done bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE life_subgoals SET done = ? WHERE id = ?`, boolToInt(done), id)
	if err != nil {
		return fmt.Errorf("failed to update subgoal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListSubgoals returns a goal's checklist, oldest first.
func (s *Store) ListSubgoals(goalID string) ([]*Subgoal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, goal_id, title, done, created_at
		FROM life_subgoals WHERE goal_id = ? ORDER BY created_at`, goalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subgoals: %w", err)
	}
	defer rows.Close()

	var out []*Subgoal
	for rows.Next() {
		var sg Subgoal
		var done int
		if err := rows.Scan(&sg.ID, &sg.GoalID, &sg.Title, &done, &sg.CreatedAt); err != nil {
			continue
		}
		sg.Done = done != 0
		out = append(out, &sg)
	}
	return out, rows.Err()
}

// RecordGoalMetric appends a named measurement for a goal.
func (s *Store) RecordGoalMetric(goalID, name string, value float64) error {
	if goalID == "" || strings.TrimSpace(name) == "" {
		return fmt.Errorf("validation: goal_id and metric name are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO life_goal_metrics (id, goal_id, name, value, recorded_at)
		VALUES (?, ?, ?, ?, ?)`,
		NewID(), goalID, name, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record goal metric: %w", err)
	}
	return nil
}

// GoalMetric is one recorded measurement.
type GoalMetric struct {
	Name       string    `json:"name"`
	Value      float64   `json:"value"`
	RecordedAt time.Time `json:"recorded_at"`
}

// GoalMetrics returns a goal's measurements, newest first.
func (s *Store) GoalMetrics(goalID string, limit int) ([]*GoalMetric, error) {
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT name, value, recorded_at FROM life_goal_metrics
		WHERE goal_id = ? ORDER BY recorded_at DESC LIMIT ?`, goalID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list goal metrics: %w", err)
	}
	defer rows.Close()

	var out []*GoalMetric
	for rows.Next() {
		var m GoalMetric
		if err := rows.Scan(&m.Name, &m.Value, &m.RecordedAt); err != nil {
			continue
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}
