package store

import (
	"database/sql"
	"fmt"
	"strings"

	"jaybrain/internal/logging"
)

// Migration is one step in the forward-only schema chain. Steps must be
// idempotent-on-check: table creation uses IF NOT EXISTS and column adds go
// through addColumn, which tolerates the duplicate-column failure.
type Migration struct {
	Version int
	Name    string
	Apply   func(tx *sql.Tx) error
}

// migrations is the ordered chain. Append only; never renumber.
var migrations = []Migration{
	{1, "core tables", migrateCoreTables},
	{2, "forge tables", migrateForgeTables},
	{3, "graph tables", migrateGraphTables},
	{4, "job search tables", migrateJobTables},
	{5, "life domain tables", migrateLifeTables},
	{6, "pulse tables", migratePulseTables},
	{7, "daemon tables", migrateDaemonTables},
	{8, "trash manifest", migrateTrashTables},
	{9, "auxiliary tables", migrateAuxTables},
	{10, "session checkpoint columns", migrateSessionCheckpoint},
	{11, "forge review subject scope", migrateReviewSubject},
}

// currentSchemaVersion returns the newest version in the chain.
func currentSchemaVersion() int {
	return migrations[len(migrations)-1].Version
}

// migrate brings the schema current. Runs inside an immediate transaction so
// concurrent openers serialise on the write lock: the first one applies the
// chain, the rest find max(version) already current and commit a no-op.
func (s *Store) migrate() error {
	timer := logging.StartTimer(logging.CategoryStore, "migrate")
	defer timer.Stop()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin migration transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS _migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`); err != nil {
		return fmt.Errorf("failed to create _migrations: %w", err)
	}

	var applied sql.NullInt64
	if err := tx.QueryRow("SELECT MAX(version) FROM _migrations").Scan(&applied); err != nil {
		return fmt.Errorf("failed to read migration state: %w", err)
	}
	from := int(applied.Int64)

	ran := 0
	for _, m := range migrations {
		if m.Version <= from {
			continue
		}
		logging.Store("Applying migration v%d: %s", m.Version, m.Name)
		if err := m.Apply(tx); err != nil {
			return fmt.Errorf("migration v%d (%s) failed: %w", m.Version, m.Name, err)
		}
		if _, err := tx.Exec("INSERT INTO _migrations (version) VALUES (?)", m.Version); err != nil {
			return fmt.Errorf("failed to record migration v%d: %w", m.Version, err)
		}
		ran++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migrations: %w", err)
	}

	if ran > 0 {
		logging.Store("Migrations complete: %d applied (v%d -> v%d)", ran, from, currentSchemaVersion())
	} else {
		logging.StoreDebug("Schema already current at v%d", from)
	}
	return nil
}

// addColumn adds a column if it is missing. SQLite has no ADD COLUMN IF NOT
// EXISTS, so the duplicate-column error is treated as success.
func addColumn(tx *sql.Tx, table, column, def string) error {
	_, err := tx.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, def))
	if err != nil && strings.Contains(err.Error(), "duplicate column") {
		logging.StoreDebug("Column %s.%s already present", table, column)
		return nil
	}
	return err
}

func execAll(tx *sql.Tx, stmts ...string) error {
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("statement failed: %w", err)
		}
	}
	return nil
}

// =============================================================================
// CHAIN STEPS
// =============================================================================

func migrateCoreTables(tx *sql.Tx) error {
	return execAll(tx,
		`CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT 'semantic',
			tags TEXT DEFAULT '[]',
			importance REAL DEFAULT 0.5,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			last_accessed DATETIME,
			access_count INTEGER DEFAULT 0,
			session_id TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_category ON memories(category)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_created ON memories(created_at)`,

		`CREATE TABLE IF NOT EXISTS memory_archive (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			category TEXT NOT NULL,
			tags TEXT DEFAULT '[]',
			importance REAL DEFAULT 0.5,
			created_at DATETIME,
			last_accessed DATETIME,
			access_count INTEGER DEFAULT 0,
			session_id TEXT,
			archived_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			archive_reason TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT DEFAULT '',
			status TEXT NOT NULL DEFAULT 'todo',
			priority TEXT NOT NULL DEFAULT 'medium',
			project TEXT DEFAULT '',
			tags TEXT DEFAULT '[]',
			due_date DATETIME,
			queue_position INTEGER,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_tasks_queue_position
			ON tasks(queue_position) WHERE queue_position IS NOT NULL`,

		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			title TEXT DEFAULT '',
			started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			ended_at DATETIME,
			summary TEXT DEFAULT '',
			decisions_made TEXT DEFAULT '[]',
			next_steps TEXT DEFAULT '[]'
		)`,

		`CREATE TABLE IF NOT EXISTS knowledge (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			content TEXT NOT NULL,
			category TEXT DEFAULT '',
			tags TEXT DEFAULT '[]',
			source TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	)
}

func migrateForgeTables(tx *sql.Tx) error {
	return execAll(tx,
		`CREATE TABLE IF NOT EXISTS forge_subjects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			exam_date TEXT DEFAULT '',
			pass_score REAL DEFAULT 0.8,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS forge_objectives (
			id TEXT PRIMARY KEY,
			subject_id TEXT NOT NULL,
			code TEXT NOT NULL,
			title TEXT NOT NULL,
			domain TEXT DEFAULT '',
			exam_weight REAL DEFAULT 0,
			UNIQUE(subject_id, code)
		)`,

		`CREATE TABLE IF NOT EXISTS forge_concepts (
			id TEXT PRIMARY KEY,
			term TEXT NOT NULL,
			definition TEXT NOT NULL,
			category TEXT DEFAULT '',
			difficulty TEXT DEFAULT 'intermediate',
			bloom_level TEXT DEFAULT 'understand',
			mastery_level REAL DEFAULT 0,
			review_count INTEGER DEFAULT 0,
			correct_count INTEGER DEFAULT 0,
			last_reviewed DATETIME,
			next_review DATETIME,
			tags TEXT DEFAULT '[]',
			subject_id TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_concepts_next_review ON forge_concepts(next_review)`,
		`CREATE INDEX IF NOT EXISTS idx_concepts_subject ON forge_concepts(subject_id)`,

		`CREATE TABLE IF NOT EXISTS forge_concept_objectives (
			concept_id TEXT NOT NULL,
			objective_id TEXT NOT NULL,
			PRIMARY KEY(concept_id, objective_id)
		)`,

		`CREATE TABLE IF NOT EXISTS forge_reviews (
			id TEXT PRIMARY KEY,
			concept_id TEXT NOT NULL,
			outcome TEXT NOT NULL,
			confidence INTEGER DEFAULT 3,
			was_correct INTEGER,
			notes TEXT DEFAULT '',
			reviewed_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_concept ON forge_reviews(concept_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reviews_time ON forge_reviews(reviewed_at)`,

		`CREATE TABLE IF NOT EXISTS forge_streaks (
			date TEXT PRIMARY KEY,
			concepts_reviewed INTEGER DEFAULT 0,
			concepts_added INTEGER DEFAULT 0,
			time_spent_seconds INTEGER DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS forge_error_patterns (
			id TEXT PRIMARY KEY,
			concept_id TEXT NOT NULL,
			error_type TEXT NOT NULL,
			notes TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	)
}

func migrateGraphTables(tx *sql.Tx) error {
	return execAll(tx,
		`CREATE TABLE IF NOT EXISTS graph_entities (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			description TEXT DEFAULT '',
			aliases TEXT DEFAULT '[]',
			memory_ids TEXT DEFAULT '[]',
			properties TEXT DEFAULT '{}',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(name, entity_type)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entities_type ON graph_entities(entity_type)`,

		`CREATE TABLE IF NOT EXISTS graph_relationships (
			id TEXT PRIMARY KEY,
			source_entity_id TEXT NOT NULL,
			target_entity_id TEXT NOT NULL,
			rel_type TEXT NOT NULL,
			weight REAL DEFAULT 1.0,
			evidence_ids TEXT DEFAULT '[]',
			properties TEXT DEFAULT '{}',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(source_entity_id, target_entity_id, rel_type)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rels_source ON graph_relationships(source_entity_id)`,
		`CREATE INDEX IF NOT EXISTS idx_rels_target ON graph_relationships(target_entity_id)`,
	)
}

func migrateJobTables(tx *sql.Tx) error {
	return execAll(tx,
		`CREATE TABLE IF NOT EXISTS job_boards (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL UNIQUE,
			board_type TEXT DEFAULT '',
			tags TEXT DEFAULT '[]',
			active INTEGER DEFAULT 1,
			last_checked DATETIME,
			content_hash TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS job_postings (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			company TEXT NOT NULL,
			url TEXT DEFAULT '',
			description TEXT DEFAULT '',
			required_skills TEXT DEFAULT '[]',
			preferred_skills TEXT DEFAULT '[]',
			salary_min INTEGER DEFAULT 0,
			salary_max INTEGER DEFAULT 0,
			work_mode TEXT DEFAULT '',
			location TEXT DEFAULT '',
			board_id TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_postings_company ON job_postings(company)`,

		`CREATE TABLE IF NOT EXISTS applications (
			id TEXT PRIMARY KEY,
			posting_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'discovered',
			resume_path TEXT DEFAULT '',
			cover_letter_path TEXT DEFAULT '',
			applied_date DATETIME,
			notes TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_applications_status ON applications(status)`,

		`CREATE TABLE IF NOT EXISTS interview_prep (
			id TEXT PRIMARY KEY,
			application_id TEXT NOT NULL,
			topic TEXT NOT NULL,
			notes TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	)
}

func migrateLifeTables(tx *sql.Tx) error {
	return execAll(tx,
		`CREATE TABLE IF NOT EXISTS life_domains (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			priority INTEGER DEFAULT 0,
			hours_per_week REAL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS life_goals (
			id TEXT PRIMARY KEY,
			domain_id TEXT NOT NULL,
			title TEXT NOT NULL,
			status TEXT DEFAULT 'active',
			progress REAL DEFAULT 0,
			target_date DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_goals_domain ON life_goals(domain_id)`,

		`CREATE TABLE IF NOT EXISTS life_subgoals (
			id TEXT PRIMARY KEY,
			goal_id TEXT NOT NULL,
			title TEXT NOT NULL,
			done INTEGER DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS life_goal_metrics (
			id TEXT PRIMARY KEY,
			goal_id TEXT NOT NULL,
			name TEXT NOT NULL,
			value REAL DEFAULT 0,
			recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	)
}

func migratePulseTables(tx *sql.Tx) error {
	return execAll(tx,
		`CREATE TABLE IF NOT EXISTS claude_sessions (
			session_id TEXT PRIMARY KEY,
			cwd TEXT DEFAULT '',
			started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			last_heartbeat DATETIME DEFAULT CURRENT_TIMESTAMP,
			status TEXT DEFAULT 'active',
			description TEXT DEFAULT '',
			tool_count INTEGER DEFAULT 0,
			last_tool TEXT DEFAULT '',
			last_tool_input TEXT DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_claude_sessions_status ON claude_sessions(status)`,

		`CREATE TABLE IF NOT EXISTS session_activity_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			tool_name TEXT DEFAULT '',
			tool_input_summary TEXT DEFAULT '',
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_session ON session_activity_log(session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_activity_time ON session_activity_log(timestamp)`,
	)
}

func migrateDaemonTables(tx *sql.Tx) error {
	return execAll(tx,
		`CREATE TABLE IF NOT EXISTS daemon_state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			pid INTEGER DEFAULT 0,
			started_at DATETIME,
			last_heartbeat DATETIME,
			modules TEXT DEFAULT '[]',
			status TEXT DEFAULT 'stopped'
		)`,

		`CREATE TABLE IF NOT EXISTS daemon_lifecycle_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event TEXT NOT NULL,
			detail TEXT DEFAULT '',
			pid INTEGER DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS heartbeat_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			check_name TEXT NOT NULL,
			triggered INTEGER DEFAULT 0,
			message TEXT DEFAULT '',
			notified INTEGER DEFAULT 0,
			checked_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_heartbeat_check ON heartbeat_log(check_name, checked_at)`,
	)
}

func migrateTrashTables(tx *sql.Tx) error {
	return execAll(tx,
		`CREATE TABLE IF NOT EXISTS trash_manifest (
			id TEXT PRIMARY KEY,
			original_path TEXT NOT NULL,
			trash_path TEXT NOT NULL,
			category TEXT DEFAULT 'general',
			size_bytes INTEGER DEFAULT 0,
			sha256 TEXT DEFAULT '',
			is_dir INTEGER DEFAULT 0,
			reason TEXT DEFAULT '',
			auto INTEGER DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			expires_at DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trash_expires ON trash_manifest(expires_at)`,
	)
}

func migrateAuxTables(tx *sql.Tx) error {
	return execAll(tx,
		`CREATE TABLE IF NOT EXISTS news_feed_sources (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL UNIQUE,
			name TEXT DEFAULT '',
			active INTEGER DEFAULT 1,
			last_polled DATETIME,
			content_hash TEXT DEFAULT ''
		)`,

		`CREATE TABLE IF NOT EXISTS news_feed_articles (
			id TEXT PRIMARY KEY,
			source_id TEXT NOT NULL,
			title TEXT NOT NULL,
			url TEXT NOT NULL UNIQUE,
			summary TEXT DEFAULT '',
			published_at DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS signalforge_articles (
			id TEXT PRIMARY KEY,
			url TEXT NOT NULL UNIQUE,
			title TEXT DEFAULT '',
			content TEXT DEFAULT '',
			cluster_id TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS signalforge_clusters (
			id TEXT PRIMARY KEY,
			label TEXT DEFAULT '',
			article_count INTEGER DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS signalforge_synthesis (
			id TEXT PRIMARY KEY,
			cluster_id TEXT NOT NULL,
			summary TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS discovered_events (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			starts_at DATETIME,
			source TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS onboarding_state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			completed_steps TEXT DEFAULT '[]',
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS personality_config (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			config TEXT DEFAULT '{}',
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS telegram_bot_state (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			chat_id TEXT DEFAULT '',
			last_update_id INTEGER DEFAULT 0,
			enabled INTEGER DEFAULT 0,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS cram_topics (
			id TEXT PRIMARY KEY,
			topic TEXT NOT NULL,
			priority INTEGER DEFAULT 0,
			covered INTEGER DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS file_deletion_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			path TEXT NOT NULL,
			filename TEXT NOT NULL,
			event_type TEXT NOT NULL,
			pid INTEGER DEFAULT 0,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS git_shadow_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			repo_path TEXT NOT NULL,
			stash_hash TEXT NOT NULL,
			changed_files INTEGER DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS conversation_archive_runs (
			id TEXT PRIMARY KEY,
			started_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			finished_at DATETIME,
			sessions_archived INTEGER DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS conversation_archive_sessions (
			session_id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			archive_path TEXT DEFAULT '',
			archived_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	)
}

func migrateSessionCheckpoint(tx *sql.Tx) error {
	if err := addColumn(tx, "sessions", "checkpoint_summary", "TEXT DEFAULT ''"); err != nil {
		return err
	}
	return addColumn(tx, "sessions", "checkpoint_at", "DATETIME")
}

func migrateReviewSubject(tx *sql.Tx) error {
	return addColumn(tx, "forge_reviews", "subject_id", "TEXT")
}
