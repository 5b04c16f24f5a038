package jobs

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"jaybrain/internal/logging"
	"jaybrain/internal/store"
)

// GitShadow snapshots dirty working trees without touching them: a stash
// object is created (not applied) and its hash recorded, so uncommitted work
// survives accidents.
type GitShadow struct {
	Store *store.Store
	Repos []string
}

// NewGitShadow builds a shadow snapshotter over the configured repos.
func NewGitShadow(s *store.Store, repos []string) *GitShadow {
	return &GitShadow{Store: s, Repos: repos}
}

// Run snapshots every configured repo with tracked modifications. Clean and
// untracked-only repos are skipped.
func (g *GitShadow) Run(ctx context.Context) error {
	timer := logging.StartTimer(logging.CategoryJobs, "GitShadow")
	defer timer.Stop()

	for _, repo := range g.Repos {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := g.snapshotRepo(ctx, repo); err != nil {
			logging.JobsWarn("Shadow snapshot of %s failed: %v", repo, err)
		}
	}
	return nil
}

func (g *GitShadow) snapshotRepo(ctx context.Context, repo string) error {
	changed, err := trackedModifications(ctx, repo)
	if err != nil {
		return err
	}
	if changed == 0 {
		return nil
	}

	// `git stash create` writes the stash commit without touching the
	// working tree or the stash ref.
	out, err := gitOutput(ctx, repo, "stash", "create", "shadow snapshot")
	if err != nil {
		return fmt.Errorf("stash create failed: %w", err)
	}
	hash := strings.TrimSpace(out)
	if hash == "" {
		return nil
	}

	// Keep the object reachable so gc cannot collect it.
	if _, err := gitOutput(ctx, repo, "tag", "-f", "jaybrain-shadow", hash); err != nil {
		logging.JobsWarn("Failed to pin shadow %s in %s: %v", hash[:8], repo, err)
	}

	// Skip the write when the tree is identical to the last snapshot. Stash
	// commits embed timestamps, so the commit hashes differ even for the
	// same content; the tree hash is stable.
	if last, err := g.Store.LastShadowSnapshot(repo); err == nil {
		if sameTree(ctx, repo, last.StashHash, hash) {
			return nil
		}
	}
	if err := g.Store.RecordShadowSnapshot(repo, hash, changed); err != nil {
		return err
	}
	logging.Jobs("Shadow snapshot %s: %s (%d files)", repo, hash[:8], changed)
	return nil
}

func sameTree(ctx context.Context, repo, a, b string) bool {
	ta, errA := gitOutput(ctx, repo, "rev-parse", a+"^{tree}")
	tb, errB := gitOutput(ctx, repo, "rev-parse", b+"^{tree}")
	return errA == nil && errB == nil && strings.TrimSpace(ta) == strings.TrimSpace(tb)
}

// trackedModifications counts modified tracked files. Untracked files do not
// count; a stash of them would be empty anyway.
func trackedModifications(ctx context.Context, repo string) (int, error) {
	out, err := gitOutput(ctx, repo, "status", "--porcelain")
	if err != nil {
		return 0, err
	}
	count := 0
	for _, line := range strings.Split(out, "\n") {
		if line == "" || strings.HasPrefix(line, "??") {
			continue
		}
		count++
	}
	return count, nil
}

func gitOutput(ctx context.Context, repo string, args ...string) (string, error) {
	full := append([]string{"-C", repo}, args...)
	cmd := exec.CommandContext(ctx, "git", full...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %v (%s)", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
