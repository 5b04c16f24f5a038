// Package trash implements safe file deletion: moves into a dated trash tree
// with a manifest row, category-based retention, restore, expiry sweeps, and
// a scanner that sorts deletion candidates into auto-trashable and
// review-needed.
package trash

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"jaybrain/internal/logging"
	"jaybrain/internal/store"
)

// ErrTargetOccupied means a restore would overwrite a path that exists.
var ErrTargetOccupied = fmt.Errorf("restore target occupied")

// Retention per category. Unknown categories use the general retention.
var Retention = map[string]time.Duration{
	"bytecode":       7 * 24 * time.Hour,
	"cache":          7 * 24 * time.Hour,
	"build_artifact": 14 * 24 * time.Hour,
	"log":            14 * 24 * time.Hour,
	"temp":           3 * 24 * time.Hour,
	"source":         30 * 24 * time.Hour,
	"general":        14 * 24 * time.Hour,
}

// Manager moves files in and out of the trash tree.
type Manager struct {
	Store *store.Store
	Dir   string // trash root, e.g. <data>/trash
}

// NewManager builds a trash manager.
func NewManager(s *store.Store, dir string) *Manager {
	return &Manager{Store: s, Dir: dir}
}

// Trash soft-deletes a path: moves it to <dir>/YYYY-MM-DD/<uuid>-<basename>
// and records the manifest row. Returns the manifest entry.
func (m *Manager) Trash(ctx context.Context, path, category, reason string, auto bool) (*store.TrashEntry, error) {
	timer := logging.StartTimer(logging.CategoryTrash, "Trash")
	defer timer.Stop()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}
	info, err := os.Lstat(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", abs, err)
	}

	if _, ok := Retention[category]; !ok {
		category = "general"
	}

	now := time.Now().UTC()
	dayDir := filepath.Join(m.Dir, now.Format("2006-01-02"))
	if err := os.MkdirAll(dayDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create trash directory: %w", err)
	}

	entry := &store.TrashEntry{
		ID:           uuid.NewString(),
		OriginalPath: abs,
		Category:     category,
		IsDir:        info.IsDir(),
		Reason:       reason,
		Auto:         auto,
		ExpiresAt:    now.Add(Retention[category]),
	}
	entry.TrashPath = filepath.Join(dayDir, entry.ID+"-"+filepath.Base(abs))

	if info.IsDir() {
		entry.SizeBytes = dirSize(abs)
	} else {
		entry.SizeBytes = info.Size()
		if sum, err := fileSHA256(abs); err == nil {
			entry.SHA256 = sum
		}
	}

	if err := os.Rename(abs, entry.TrashPath); err != nil {
		return nil, fmt.Errorf("failed to move %s to trash: %w", abs, err)
	}
	if err := m.Store.AddTrashEntry(entry); err != nil {
		// Manifest write failed: put the file back rather than orphan it.
		if rerr := os.Rename(entry.TrashPath, abs); rerr != nil {
			logging.TrashWarn("Orphaned trash item %s: %v", entry.TrashPath, rerr)
		}
		return nil, err
	}

	logging.Trash("Trashed %s (%s, expires %s)", abs, category, entry.ExpiresAt.Format("2006-01-02"))
	return entry, nil
}

// Restore moves a trashed item back to its original path. Fails when the
// original path is occupied.
func (m *Manager) Restore(ctx context.Context, id string) (*store.TrashEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entry, err := m.Store.GetTrashEntry(id)
	if err != nil {
		return nil, err
	}

	if _, err := os.Lstat(entry.OriginalPath); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrTargetOccupied, entry.OriginalPath)
	}
	if err := os.MkdirAll(filepath.Dir(entry.OriginalPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to recreate parent directory: %w", err)
	}
	if err := os.Rename(entry.TrashPath, entry.OriginalPath); err != nil {
		return nil, fmt.Errorf("failed to restore %s: %w", entry.OriginalPath, err)
	}
	if err := m.Store.RemoveTrashEntry(id); err != nil {
		return nil, err
	}

	logging.Trash("Restored %s", entry.OriginalPath)
	return entry, nil
}

// SweepExpired permanently deletes items past their retention. Returns the
// number of entries removed.
func (m *Manager) SweepExpired(ctx context.Context) (int, error) {
	timer := logging.StartTimer(logging.CategoryTrash, "SweepExpired")
	defer timer.Stop()

	expired, err := m.Store.ExpiredTrashEntries(time.Now().UTC())
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, entry := range expired {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if err := os.RemoveAll(entry.TrashPath); err != nil {
			logging.TrashWarn("Failed to delete %s: %v", entry.TrashPath, err)
			continue
		}
		if err := m.Store.RemoveTrashEntry(entry.ID); err != nil {
			logging.TrashWarn("Failed to drop manifest row %s: %v", entry.ID, err)
			continue
		}
		removed++
	}
	if removed > 0 {
		logging.Trash("Swept %d expired items", removed)
	}
	return removed, nil
}

// List returns the manifest, newest first.
func (m *Manager) List(limit int) ([]*store.TrashEntry, error) {
	return m.Store.ListTrashEntries(limit)
}

// ==== SCANNER ====

// Candidate is one path the scanner proposes for deletion.
type Candidate struct {
	Path       string `json:"path"`
	Category   string `json:"category"`
	SizeBytes  int64  `json:"size_bytes"`
	IsDir      bool   `json:"is_dir"`
	AutoOK     bool   `json:"auto_ok"`
	Reason     string `json:"reason"`
	GitIgnored bool   `json:"git_ignored"`
	GitTracked bool   `json:"git_tracked"`
}

// autoCategories may be trashed without review, when git agrees.
var autoCategories = map[string]bool{
	"bytecode":       true,
	"cache":          true,
	"build_artifact": true,
}

// categoryDirs maps well-known directory basenames to categories.
var categoryDirs = map[string]string{
	"__pycache__":   "bytecode",
	".pytest_cache": "cache",
	".mypy_cache":   "cache",
	".ruff_cache":   "cache",
	"node_modules":  "cache",
	".cache":        "cache",
	"dist":          "build_artifact",
	"build":         "build_artifact",
	"target":        "build_artifact",
	".tox":          "cache",
}

// Scan walks root and classifies deletion candidates. A candidate is
// auto-trashable when its category is mechanical (bytecode, cache, build
// artifact) AND git ignores it AND git does not track it; anything else
// needs review.
func (m *Manager) Scan(ctx context.Context, root string) ([]*Candidate, error) {
	timer := logging.StartTimer(logging.CategoryTrash, "Scan")
	defer timer.Stop()

	var out []*Candidate
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if d.Name() == ".git" {
			return filepath.SkipDir
		}

		category := Categorize(path, d.IsDir())
		if category == "" {
			return nil
		}

		c := &Candidate{Path: path, Category: category, IsDir: d.IsDir()}
		if info, ierr := d.Info(); ierr == nil && !d.IsDir() {
			c.SizeBytes = info.Size()
		} else if d.IsDir() {
			c.SizeBytes = dirSize(path)
		}

		c.GitIgnored = gitCheckIgnore(ctx, path)
		c.GitTracked = gitLsFiles(ctx, path)
		if autoCategories[category] && c.GitIgnored && !c.GitTracked {
			c.AutoOK = true
			c.Reason = fmt.Sprintf("%s, git-ignored, untracked", category)
		} else {
			c.Reason = fmt.Sprintf("%s, needs review", category)
		}
		out = append(out, c)

		if d.IsDir() {
			// The whole tree is one candidate.
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Categorize names a path's trash category, or "" when it is not a deletion
// candidate at all.
func Categorize(path string, isDir bool) string {
	base := filepath.Base(path)
	if isDir {
		return categoryDirs[base]
	}
	switch {
	case strings.HasSuffix(base, ".pyc"), strings.HasSuffix(base, ".pyo"):
		return "bytecode"
	case strings.HasSuffix(base, ".log"):
		return "log"
	case strings.HasSuffix(base, ".tmp"), strings.HasSuffix(base, ".swp"),
		strings.HasSuffix(base, "~"):
		return "temp"
	case strings.HasSuffix(base, ".o"), strings.HasSuffix(base, ".a"):
		return "build_artifact"
	}
	return ""
}

// gitCheckIgnore reports whether git ignores the path. Outside a repo this is
// false, which keeps candidates in the review bucket.
func gitCheckIgnore(ctx context.Context, path string) bool {
	cmd := exec.CommandContext(ctx, "git", "-C", filepath.Dir(path), "check-ignore", "-q", path)
	return cmd.Run() == nil
}

// gitLsFiles reports whether git tracks the path.
func gitLsFiles(ctx context.Context, path string) bool {
	cmd := exec.CommandContext(ctx, "git", "-C", filepath.Dir(path), "ls-files", "--error-unmatch", path)
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	return cmd.Run() == nil
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func dirSize(root string) int64 {
	var total int64
	filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if info, ierr := d.Info(); ierr == nil && !d.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total
}
