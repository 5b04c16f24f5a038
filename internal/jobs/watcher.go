package jobs

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"jaybrain/internal/logging"
	"jaybrain/internal/store"
)

// DeletionWatcher records file and directory removals under the configured
// roots. It is forensic, not preventative: the log answers "what deleted
// that" after the fact.
type DeletionWatcher struct {
	Store *store.Store
	Roots []string
}

// NewDeletionWatcher builds a watcher over the given roots.
func NewDeletionWatcher(s *store.Store, roots []string) *DeletionWatcher {
	return &DeletionWatcher{Store: s, Roots: roots}
}

// ignoredPathParts are directory names whose contents churn constantly and
// carry no forensic value.
var ignoredPathParts = []string{
	"__pycache__", ".git/objects", "node_modules", ".cache", ".venv",
}

// Run watches until the context is cancelled. Watches are added recursively
// at startup and extended as new directories appear.
func (w *DeletionWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	watched := 0
	for _, root := range w.Roots {
		n, err := addRecursive(watcher, root)
		if err != nil {
			logging.JobsWarn("Cannot watch %s: %v", root, err)
			continue
		}
		watched += n
	}
	logging.Jobs("Deletion watcher covering %d directories", watched)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handle(watcher, event)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.JobsWarn("Watcher error: %v", err)
		}
	}
}

func (w *DeletionWatcher) handle(watcher *fsnotify.Watcher, event fsnotify.Event) {
	if ignoredPath(event.Name) {
		return
	}

	switch {
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// Post-removal we cannot stat the path; a path that was itself on
		// the watch list was a directory.
		eventType := "file_deleted"
		for _, dir := range watcher.WatchList() {
			if dir == event.Name {
				eventType = "dir_deleted"
				break
			}
		}
		if err := w.Store.LogFileDeletion(event.Name, eventType, os.Getpid()); err != nil {
			logging.JobsWarn("Failed to log deletion of %s: %v", event.Name, err)
		}
	case event.Op&fsnotify.Create != 0:
		if info, err := os.Lstat(event.Name); err == nil && info.IsDir() {
			if _, err := addRecursive(watcher, event.Name); err != nil {
				logging.JobsDebug("Cannot watch new directory %s: %v", event.Name, err)
			}
		}
	}
}

func addRecursive(watcher *fsnotify.Watcher, root string) (int, error) {
	added := 0
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if ignoredPath(path) {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			logging.JobsDebug("Watch add failed for %s: %v", path, err)
			return nil
		}
		added++
		return nil
	})
	return added, err
}

// ignoredPath filters churny artifacts: cache trees, git internals, swap and
// temp files.
func ignoredPath(path string) bool {
	norm := filepath.ToSlash(path)
	for _, part := range ignoredPathParts {
		if strings.Contains(norm, part) {
			return true
		}
	}
	base := filepath.Base(norm)
	if strings.HasSuffix(base, ".swp") || strings.HasSuffix(base, ".swx") ||
		strings.HasSuffix(base, ".tmp") || strings.HasSuffix(base, "~") {
		return true
	}
	return false
}
