// Package store implements jaybrain's single-file embedded store: one SQLite
// database under WAL holding every persistent table, a co-located vector
// index (sqlite-vec when available, brute-force scan otherwise), a
// forward-only migration chain, and a full-text index per searchable table.
package store

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"jaybrain/internal/logging"
)

// ErrNotFound is returned by getters when an id lookup misses.
var ErrNotFound = errors.New("not found")

// ErrDuplicateStep means an onboarding step was already completed.
var ErrDuplicateStep = errors.New("onboarding step already completed")

// Store wraps the SQLite database holding all jaybrain state.
type Store struct {
	db        *sql.DB
	mu        sync.RWMutex
	path      string
	vectorExt bool // sqlite-vec vec0 available
	ftsExt    bool // FTS5 compiled into the linked SQLite
	dims      int  // stored vector width
}

// Options tunes Open behaviour.
type Options struct {
	// BusyTimeout is how long writers wait on a locked database.
	BusyTimeout time.Duration

	// Dimensions is the stored vector width.
	Dimensions int
}

// DefaultOptions returns the production settings.
func DefaultOptions() Options {
	return Options{
		BusyTimeout: 10 * time.Second,
		Dimensions:  384,
	}
}

// Open opens (or creates) the store at path and brings the schema current.
// Safe to call concurrently from multiple processes: the migration chain runs
// inside an immediate transaction, so the first writer wins and the rest see
// an already-current schema.
func Open(path string) (*Store, error) {
	return OpenWithOptions(path, DefaultOptions())
}

// OpenWithOptions opens the store with explicit tuning.
func OpenWithOptions(path string, opts Options) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	logging.Store("Opening store at %s", path)

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			logging.StoreError("Failed to create store directory %s: %v", dir, err)
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	// _txlock=immediate makes every transaction take the write lock at
	// BEGIN, so concurrent openers running the migration chain serialise
	// instead of failing on upgrade. Both drivers support the parameter.
	db, err := sql.Open(driverName, path+"?_txlock=immediate")
	if err != nil {
		logging.StoreError("Failed to open database at %s: %v", path, err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = 10 * time.Second
	}
	if opts.Dimensions <= 0 {
		opts.Dimensions = 384
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", opts.BusyTimeout.Milliseconds())); err != nil {
		logging.StoreDebug("Failed to set busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set journal_mode=WAL: %v", err)
	}
	// NORMAL is safe under WAL and much faster than FULL for our write pattern
	// (many small hook writes).
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("Failed to set synchronous=NORMAL: %v", err)
	}

	s := &Store{db: db, path: path, dims: opts.Dimensions}

	if err := s.migrate(); err != nil {
		db.Close()
		logging.StoreError("Migration failed: %v", err)
		return nil, fmt.Errorf("failed to migrate store: %w", err)
	}

	s.detectVecExtension()
	if err := s.ensureVectorTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create vector tables: %w", err)
	}
	if err := s.ensureKeywordIndexes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create keyword indexes: %w", err)
	}

	if s.vectorExt {
		logging.Store("sqlite-vec extension detected; ANN search enabled")
	} else {
		logging.StoreWarn("sqlite-vec extension not available; vector search uses brute-force scan")
	}

	logging.Store("Store open and current (schema v%d)", currentSchemaVersion())
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	logging.Store("Closing store")
	return s.db.Close()
}

// Path returns the store file path.
func (s *Store) Path() string {
	return s.path
}

// DB exposes the underlying handle for components that compose their own
// queries (pulse reader, daemon status).
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dimensions returns the stored vector width.
func (s *Store) Dimensions() int {
	return s.dims
}

// HasVectorExt reports whether vec0 ANN search is available.
func (s *Store) HasVectorExt() bool {
	return s.vectorExt
}

// detectVecExtension probes for vec0 virtual table support.
func (s *Store) detectVecExtension() {
	if _, err := s.db.Exec("CREATE VIRTUAL TABLE IF NOT EXISTS vec_probe USING vec0(embedding float[4])"); err == nil {
		s.vectorExt = true
		_, _ = s.db.Exec("DROP TABLE IF EXISTS vec_probe")
		return
	}
	s.vectorExt = false
}

// Stats returns per-table row counts for diagnostics.
func (s *Store) Stats() (map[string]int64, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Stats")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]int64)
	tables := []string{
		"memories", "memory_archive", "tasks", "sessions", "knowledge",
		"forge_concepts", "forge_subjects", "forge_objectives", "forge_reviews",
		"graph_entities", "graph_relationships", "job_boards", "job_postings",
		"applications", "claude_sessions", "session_activity_log",
		"heartbeat_log", "trash_manifest",
	}
	for _, table := range tables {
		var count int64
		if err := s.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
			logging.StoreDebug("Count failed for %s (may not exist): %v", table, err)
			continue
		}
		stats[table] = count
	}
	return stats, nil
}

// =============================================================================
// SMALL SHARED HELPERS
// =============================================================================

// NewID returns a 12-hex random identifier, the primary-key shape used across
// all user-facing tables.
func NewID() string {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		// Fall back to a time-derived id; collisions are vanishingly unlikely
		// at this write rate.
		return fmt.Sprintf("%012x", time.Now().UnixNano()&0xffffffffffff)
	}
	return hex.EncodeToString(buf)
}

// marshalList persists an ordered string list as JSON, the storage shape for
// every tags/aliases/ids column.
func marshalList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	data, err := json.Marshal(items)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// unmarshalList reads a JSON string list column; corrupt values come back nil.
func unmarshalList(raw string) []string {
	if raw == "" || raw == "[]" {
		return nil
	}
	var items []string
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}
	return items
}

// marshalProps persists an opaque key-value property bag.
func marshalProps(props map[string]interface{}) string {
	if len(props) == 0 {
		return "{}"
	}
	data, err := json.Marshal(props)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// unmarshalProps reads a property bag column.
func unmarshalProps(raw string) map[string]interface{} {
	if raw == "" || raw == "{}" {
		return nil
	}
	var props map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return nil
	}
	return props
}

// unionLists merges two string lists preserving first-seen order.
func unionLists(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, lists := range [][]string{a, b} {
		for _, v := range lists {
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// nullableTime converts a NullTime into *time.Time.
func nullableTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// timeParam binds an optional time, mapping nil to SQL NULL.
func timeParam(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
