package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"jaybrain/internal/logging"
	"jaybrain/internal/pulse"
	"jaybrain/internal/store"
)

// archiveTurnCap marks turns longer than this with a truncation notice in
// the rendered markdown.
const archiveTurnCap = 10000

// Archiver renders recent session transcripts into canonical markdown files.
// Idempotent: sessions already recorded in conversation_archive_sessions are
// skipped.
type Archiver struct {
	Store          *store.Store
	TranscriptsDir string
	ArchiveDir     string
	MaxAge         time.Duration
}

// NewArchiver builds a conversation archiver.
func NewArchiver(s *store.Store, transcriptsDir, archiveDir string, maxAgeDays int) *Archiver {
	if maxAgeDays <= 0 {
		maxAgeDays = 7
	}
	return &Archiver{
		Store:          s,
		TranscriptsDir: transcriptsDir,
		ArchiveDir:     archiveDir,
		MaxAge:         time.Duration(maxAgeDays) * 24 * time.Hour,
	}
}

// Run archives every recent transcript not yet archived.
func (a *Archiver) Run(ctx context.Context) error {
	timer := logging.StartTimer(logging.CategoryJobs, "Archive")
	defer timer.Stop()

	entries, err := os.ReadDir(a.TranscriptsDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read transcripts directory: %w", err)
	}

	runID, err := a.Store.StartArchiveRun()
	if err != nil {
		return err
	}

	cutoff := time.Now().Add(-a.MaxAge)
	archived := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".jsonl") {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().Before(cutoff) {
			continue
		}

		sessionID := strings.TrimSuffix(name, ".jsonl")
		done, err := a.Store.IsSessionArchived(sessionID)
		if err != nil {
			return err
		}
		if done {
			continue
		}

		outPath, err := a.archiveOne(ctx, sessionID, filepath.Join(a.TranscriptsDir, name))
		if err != nil {
			logging.JobsWarn("Failed to archive %s: %v", sessionID, err)
			continue
		}
		if err := a.Store.MarkSessionArchived(sessionID, runID, outPath); err != nil {
			return err
		}
		archived++
	}

	if err := a.Store.FinishArchiveRun(runID, archived); err != nil {
		return err
	}
	if archived > 0 {
		logging.Jobs("Archived %d conversations", archived)
	}
	return nil
}

func (a *Archiver) archiveOne(ctx context.Context, sessionID, path string) (string, error) {
	turns, err := pulse.ParseTranscript(ctx, path)
	if err != nil {
		return "", err
	}

	toolCounts := map[string]int{}
	if usage, err := a.Store.ToolUsage(sessionID); err == nil {
		toolCounts = usage
	}

	var b strings.Builder
	b.WriteString("---\n")
	fmt.Fprintf(&b, "session_id: %s\n", sessionID)
	fmt.Fprintf(&b, "archived_at: %s\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "turns: %d\n", len(turns))
	if len(toolCounts) > 0 {
		b.WriteString("tool_counts:\n")
		for tool, n := range toolCounts {
			fmt.Fprintf(&b, "  %s: %d\n", tool, n)
		}
	}
	b.WriteString("---\n\n")

	for _, turn := range turns {
		fmt.Fprintf(&b, "## %s\n\n", turn.Role)
		text := turn.Text
		if len(text) > archiveTurnCap {
			text = text[:archiveTurnCap] + "\n\n*[truncated]*"
		}
		b.WriteString(text)
		b.WriteString("\n\n")
	}

	outPath := filepath.Join(a.ArchiveDir, sessionID+".md")
	if err := os.MkdirAll(a.ArchiveDir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(outPath, []byte(b.String()), 0o644); err != nil {
		return "", err
	}
	return outPath, nil
}
