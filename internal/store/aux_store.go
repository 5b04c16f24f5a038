package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// NEWS FEEDS
// =============================================================================

// AddFeedSource registers a feed URL for the poller. Duplicate URLs are
// rejected by the unique constraint.
func (s *Store) AddFeedSource(f *FeedSource) error {
	if strings.TrimSpace(f.URL) == "" {
		return fmt.Errorf("validation: feed url is required")
	}
	if f.ID == "" {
		f.ID = NewID()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO news_feed_sources (id, url, name, active, last_polled, content_hash)
		VALUES (?, ?, ?, ?, ?, ?)`,
		f.ID, f.URL, f.Name, boolToInt(f.Active), timeParam(f.LastPolled), f.ContentHash)
	if err != nil {
		return fmt.Errorf("failed to add feed source: %w", err)
	}
	return nil
}

// ListFeedSources returns feed sources, optionally only active ones.
func (s *Store) ListFeedSources(activeOnly bool) ([]*FeedSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := `SELECT id, url, name, active, last_polled, content_hash FROM news_feed_sources`
	if activeOnly {
		q += " WHERE active = 1"
	}
	q += " ORDER BY url"

	rows, err := s.db.Query(q)
	if err != nil {
		return nil, fmt.Errorf("failed to list feed sources: %w", err)
	}
	defer rows.Close()

	var out []*FeedSource
	for rows.Next() {
		var f FeedSource
		var active int
		var polled sql.NullTime
		if err := rows.Scan(&f.ID, &f.URL, &f.Name, &active, &polled, &f.ContentHash); err != nil {
			return nil, fmt.Errorf("failed to scan feed source: %w", err)
		}
		f.Active = active != 0
		if polled.Valid {
			f.LastPolled = &polled.Time
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}

// MarkFeedPolled stamps last_polled and the body hash from the latest fetch.
func (s *Store) MarkFeedPolled(id, contentHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		UPDATE news_feed_sources SET last_polled = ?, content_hash = ? WHERE id = ?`,
		time.Now().UTC(), contentHash, id)
	if err != nil {
		return fmt.Errorf("failed to mark feed polled: %w", err)
	}
	return nil
}

// AddFeedArticle records one discovered article. Returns false without error
// when the URL is already known.
func (s *Store) AddFeedArticle(a *FeedArticle) (bool, error) {
	if strings.TrimSpace(a.URL) == "" {
		return false, fmt.Errorf("validation: article url is required")
	}
	if a.ID == "" {
		a.ID = NewID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		INSERT OR IGNORE INTO news_feed_articles (id, source_id, title, url, summary, published_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.SourceID, a.Title, a.URL, a.Summary, a.PublishedAt, a.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to add feed article: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// RecentFeedArticles returns articles discovered in the window, newest first.
func (s *Store) RecentFeedArticles(since time.Time, limit int) ([]*FeedArticle, error) {
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, source_id, title, url, summary, published_at, created_at
		FROM news_feed_articles WHERE created_at >= ?
		ORDER BY created_at DESC LIMIT ?`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list feed articles: %w", err)
	}
	defer rows.Close()

	var out []*FeedArticle
	for rows.Next() {
		var a FeedArticle
		var published sql.NullTime
		if err := rows.Scan(&a.ID, &a.SourceID, &a.Title, &a.URL, &a.Summary,
			&published, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feed article: %w", err)
		}
		// Articles without a feed-supplied date fall back to discovery time.
		a.PublishedAt = a.CreatedAt
		if published.Valid && !published.Time.IsZero() {
			a.PublishedAt = published.Time
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// =============================================================================
// SINGLETON CONFIG ROWS (onboarding, personality, telegram)
// =============================================================================

// OnboardingSteps returns the completed onboarding step names.
func (s *Store) OnboardingSteps() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var steps string
	err := s.db.QueryRow(`SELECT completed_steps FROM onboarding_state WHERE id = 1`).Scan(&steps)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read onboarding state: %w", err)
	}
	return unmarshalList(steps), nil
}

// CompleteOnboardingStep marks one step done. Repeating a step returns
// ErrDuplicateStep so the tool layer can report the conflict.
func (s *Store) CompleteOnboardingStep(step string) error {
	steps, err := s.OnboardingSteps()
	if err != nil {
		return err
	}
	for _, existing := range steps {
		if existing == step {
			return ErrDuplicateStep
		}
	}
	steps = append(steps, step)

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT INTO onboarding_state (id, completed_steps, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET completed_steps = excluded.completed_steps, updated_at = excluded.updated_at`,
		marshalList(steps), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update onboarding state: %w", err)
	}
	return nil
}

// PersonalityConfig returns the raw personality JSON ("{}" when unset).
func (s *Store) PersonalityConfig() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var cfg string
	err := s.db.QueryRow(`SELECT config FROM personality_config WHERE id = 1`).Scan(&cfg)
	if err == sql.ErrNoRows {
		return "{}", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read personality config: %w", err)
	}
	return cfg, nil
}

// SetPersonalityConfig replaces the personality JSON.
func (s *Store) SetPersonalityConfig(configJSON string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO personality_config (id, config, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET config = excluded.config, updated_at = excluded.updated_at`,
		configJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set personality config: %w", err)
	}
	return nil
}

// TelegramState is the bot's singleton state row.
type TelegramState struct {
	ChatID       string `json:"chat_id"`
	LastUpdateID int64  `json:"last_update_id"`
	Enabled      bool   `json:"enabled"`
}

// TelegramBotState reads the bot state, zero-valued when never configured.
func (s *Store) TelegramBotState() (*TelegramState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st TelegramState
	var enabled int
	err := s.db.QueryRow(`
		SELECT chat_id, last_update_id, enabled FROM telegram_bot_state WHERE id = 1`).
		Scan(&st.ChatID, &st.LastUpdateID, &enabled)
	if err == sql.ErrNoRows {
		return &TelegramState{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read telegram state: %w", err)
	}
	st.Enabled = enabled != 0
	return &st, nil
}

// SetTelegramBotState replaces the bot state row.
func (s *Store) SetTelegramBotState(st *TelegramState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO telegram_bot_state (id, chat_id, last_update_id, enabled, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			chat_id = excluded.chat_id,
			last_update_id = excluded.last_update_id,
			enabled = excluded.enabled,
			updated_at = excluded.updated_at`,
		st.ChatID, st.LastUpdateID, boolToInt(st.Enabled), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set telegram state: %w", err)
	}
	return nil
}

// =============================================================================
// CRAM TOPICS
// =============================================================================

// CramTopic is one exam-cram checklist entry.
type CramTopic struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	Priority  int       `json:"priority"`
	Covered   bool      `json:"covered"`
	CreatedAt time.Time `json:"created_at"`
}

// AddCramTopic appends a cram checklist entry.
func (s *Store) AddCramTopic(topic string, priority int) (*CramTopic, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, fmt.Errorf("validation: topic is required")
	}

	t := &CramTopic{ID: NewID(), Topic: topic, Priority: priority, CreatedAt: time.Now().UTC()}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO cram_topics (id, topic, priority, covered, created_at)
		VALUES (?, ?, ?, 0, ?)`,
		t.ID, t.Topic, t.Priority, t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to add cram topic: %w", err)
	}
	return t, nil
}

// ListCramTopics returns the checklist, highest priority first. Covered
// entries sort last.
func (s *Store) ListCramTopics() ([]*CramTopic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, topic, priority, covered, created_at FROM cram_topics
		ORDER BY covered, priority DESC, created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cram topics: %w", err)
	}
	defer rows.Close()

	var out []*CramTopic
	for rows.Next() {
		var t CramTopic
		var covered int
		if err := rows.Scan(&t.ID, &t.Topic, &t.Priority, &covered, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cram topic: %w", err)
		}
		t.Covered = covered != 0
		out = append(out, &t)
	}
	return out, rows.Err()
}

// SetCramTopicCovered toggles a checklist entry.
func (s *Store) SetCramTopicCovered(id string, covered bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`UPDATE cram_topics SET covered = ? WHERE id = ?`, boolToInt(covered), id)
	if err != nil {
		return fmt.Errorf("failed to update cram topic: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// =============================================================================
// FILE DELETION LOG + GIT SHADOW
// =============================================================================

// LogFileDeletion appends one watcher-observed deletion.
func (s *Store) LogFileDeletion(path, eventType string, pid int) error {
	filename := path
	if idx := strings.LastIndexByte(path, '/'); idx >= 0 {
		filename = path[idx+1:]
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO file_deletion_log (path, filename, event_type, pid, timestamp)
		VALUES (?, ?, ?, ?, ?)`,
		path, filename, eventType, pid, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to log file deletion: %w", err)
	}
	return nil
}

// RecentFileDeletions returns logged deletions, newest first.
func (s *Store) RecentFileDeletions(limit int) ([]*FileDeletion, error) {
	if limit <= 0 {
		limit = 50
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, path, filename, event_type, pid, timestamp
		FROM file_deletion_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list file deletions: %w", err)
	}
	defer rows.Close()

	var out []*FileDeletion
	for rows.Next() {
		var d FileDeletion
		if err := rows.Scan(&d.ID, &d.Path, &d.Filename, &d.EventType, &d.PID, &d.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan file deletion: %w", err)
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

// RecordShadowSnapshot logs one stash hash taken from a dirty repo.
func (s *Store) RecordShadowSnapshot(repoPath, stashHash string, changedFiles int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO git_shadow_snapshots (repo_path, stash_hash, changed_files, created_at)
		VALUES (?, ?, ?, ?)`,
		repoPath, stashHash, changedFiles, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record shadow snapshot: %w", err)
	}
	return nil
}

// LastShadowSnapshot returns the newest snapshot for a repo, or ErrNotFound.
func (s *Store) LastShadowSnapshot(repoPath string) (*GitShadowSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT id, repo_path, stash_hash, changed_files, created_at
		FROM git_shadow_snapshots WHERE repo_path = ?
		ORDER BY id DESC LIMIT 1`, repoPath)

	var snap GitShadowSnapshot
	err := row.Scan(&snap.ID, &snap.RepoPath, &snap.StashHash, &snap.ChangedFiles, &snap.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan shadow snapshot: %w", err)
	}
	return &snap, nil
}

// =============================================================================
// CONVERSATION ARCHIVE
// =============================================================================

// StartArchiveRun opens a conversation-archive run and returns its id.
func (s *Store) StartArchiveRun() (string, error) {
	id := NewID()

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO conversation_archive_runs (id, started_at) VALUES (?, ?)`,
		id, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to start archive run: %w", err)
	}
	return id, nil
}

// FinishArchiveRun closes a run with its session count.
func (s *Store) FinishArchiveRun(runID string, sessionsArchived int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		UPDATE conversation_archive_runs SET finished_at = ?, sessions_archived = ? WHERE id = ?`,
		time.Now().UTC(), sessionsArchived, runID)
	if err != nil {
		return fmt.Errorf("failed to finish archive run: %w", err)
	}
	return nil
}

// IsSessionArchived reports whether a transcript was already archived by an
// earlier run.
func (s *Store) IsSessionArchived(sessionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM conversation_archive_sessions WHERE session_id = ?`, sessionID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check archived session: %w", err)
	}
	return n > 0, nil
}

// MarkSessionArchived records one archived transcript.
func (s *Store) MarkSessionArchived(sessionID, runID, archivePath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO conversation_archive_sessions (session_id, run_id, archive_path, archived_at)
		VALUES (?, ?, ?, ?)`,
		sessionID, runID, archivePath, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to mark session archived: %w", err)
	}
	return nil
}

// =============================================================================
// DISCOVERED EVENTS + SIGNALFORGE
// =============================================================================

// DiscoveredEvent is one calendar-worthy item extracted from feeds or pages.
type DiscoveredEvent struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	StartsAt  time.Time `json:"starts_at"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AddDiscoveredEvent records an extracted event.
func (s *Store) AddDiscoveredEvent(e *DiscoveredEvent) error {
	if strings.TrimSpace(e.Title) == "" {
		return fmt.Errorf("validation: event title is required")
	}
	if e.ID == "" {
		e.ID = NewID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO discovered_events (id, title, starts_at, source, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.Title, e.StartsAt, e.Source, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add discovered event: %w", err)
	}
	return nil
}

// UpcomingEvents returns events starting between now and the horizon.
func (s *Store) UpcomingEvents(horizon time.Duration) ([]*DiscoveredEvent, error) {
	now := time.Now().UTC()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, title, starts_at, source, created_at FROM discovered_events
		WHERE starts_at >= ? AND starts_at <= ? ORDER BY starts_at`,
		now, now.Add(horizon))
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming events: %w", err)
	}
	defer rows.Close()

	var out []*DiscoveredEvent
	for rows.Next() {
		var e DiscoveredEvent
		if err := rows.Scan(&e.ID, &e.Title, &e.StartsAt, &e.Source, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan discovered event: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// SignalArticle is one article in the research-synthesis pipeline.
type SignalArticle struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Title     string    `json:"title,omitempty"`
	Content   string    `json:"content,omitempty"`
	ClusterID string    `json:"cluster_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AddSignalArticle stores one fetched article. Returns false when the URL is
// already known.
func (s *Store) AddSignalArticle(a *SignalArticle) (bool, error) {
	if strings.TrimSpace(a.URL) == "" {
		return false, fmt.Errorf("validation: article url is required")
	}
	if a.ID == "" {
		a.ID = NewID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		INSERT OR IGNORE INTO signalforge_articles (id, url, title, content, cluster_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.URL, a.Title, a.Content, nullIfEmpty(a.ClusterID), a.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to add signal article: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// UnclusteredSignalArticles returns articles not yet assigned to a cluster.
func (s *Store) UnclusteredSignalArticles(limit int) ([]*SignalArticle, error) {
	if limit <= 0 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT id, url, title, content, COALESCE(cluster_id, ''), created_at
		FROM signalforge_articles WHERE cluster_id IS NULL
		ORDER BY created_at LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unclustered articles: %w", err)
	}
	defer rows.Close()

	var out []*SignalArticle
	for rows.Next() {
		var a SignalArticle
		if err := rows.Scan(&a.ID, &a.URL, &a.Title, &a.Content, &a.ClusterID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan signal article: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// AssignSignalCluster creates a labelled cluster over a set of articles.
func (s *Store) AssignSignalCluster(label string, articleIDs []string) (string, error) {
	if len(articleIDs) == 0 {
		return "", fmt.Errorf("validation: cluster needs at least one article")
	}
	clusterID := NewID()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin cluster transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO signalforge_clusters (id, label, article_count, created_at)
		VALUES (?, ?, ?, ?)`,
		clusterID, label, len(articleIDs), time.Now().UTC()); err != nil {
		return "", fmt.Errorf("failed to create cluster: %w", err)
	}
	for _, id := range articleIDs {
		if _, err := tx.Exec(`
			UPDATE signalforge_articles SET cluster_id = ? WHERE id = ?`, clusterID, id); err != nil {
			return "", fmt.Errorf("failed to assign article to cluster: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit cluster: %w", err)
	}
	return clusterID, nil
}

// SaveSynthesis stores a cluster's synthesised summary.
func (s *Store) SaveSynthesis(clusterID, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO signalforge_synthesis (id, cluster_id, summary, created_at)
		VALUES (?, ?, ?, ?)`,
		NewID(), clusterID, summary, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save synthesis: %w", err)
	}
	return nil
}
