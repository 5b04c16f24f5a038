package jobs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"jaybrain/internal/config"
	"jaybrain/internal/logging"
	"jaybrain/internal/store"
)

// boardFetchTimeout bounds one board page request.
const boardFetchTimeout = 30 * time.Second

// maxBoardBody caps how much of a board page is read for hashing.
const maxBoardBody = 2 << 20

// BoardWatcher polls registered job boards and flags the ones whose content
// changed since the last check. Change detection only: extracting postings
// from a changed page stays a manual or tool-driven step.
type BoardWatcher struct {
	Store      *store.Store
	AllowHosts []string
	Client     *http.Client
	Notify     func(ctx context.Context, title, message string) error
}

// NewBoardWatcher builds a board poller from config.
func NewBoardWatcher(s *store.Store, cfg *config.Config, notify func(ctx context.Context, title, message string) error) *BoardWatcher {
	return &BoardWatcher{
		Store:      s,
		AllowHosts: cfg.Guard.AllowHosts,
		Client:     &http.Client{Timeout: boardFetchTimeout},
		Notify:     notify,
	}
}

// Run checks every active board once. Per-board failures are logged and
// skipped.
func (w *BoardWatcher) Run(ctx context.Context) error {
	timer := logging.StartTimer(logging.CategoryJobs, "BoardCheck")
	defer timer.Stop()

	boards, err := w.Store.ListJobBoards(true)
	if err != nil {
		return err
	}

	var changed []*store.JobBoard
	for _, board := range boards {
		if err := ctx.Err(); err != nil {
			return err
		}
		different, err := w.checkOne(ctx, board)
		if err != nil {
			logging.JobsWarn("Board %s failed: %v", board.URL, err)
			continue
		}
		if different {
			changed = append(changed, board)
		}
	}

	if len(changed) > 0 && w.Notify != nil {
		msg := fmt.Sprintf("%d job board(s) changed since last check:", len(changed))
		for _, b := range changed {
			msg += "\n- " + b.URL
		}
		if err := w.Notify(ctx, "Job boards updated", msg); err != nil {
			logging.JobsWarn("Board change notification failed: %v", err)
		}
	}
	return nil
}

// checkOne fetches a board page and reports whether its content hash moved.
// A first-ever check (no stored hash) records the baseline without flagging.
func (w *BoardWatcher) checkOne(ctx context.Context, board *store.JobBoard) (bool, error) {
	validated, err := config.ValidateOutboundURL(ctx, board.URL, w.AllowHosts, nil)
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, validated, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("User-Agent", "jaybrain-boards/1.0")

	resp, err := w.Client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("board returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBoardBody))
	if err != nil {
		return false, err
	}

	hash := sha256Hex(body)
	changed := board.ContentHash != "" && hash != board.ContentHash
	if err := w.Store.MarkBoardChecked(board.ID, hash); err != nil {
		return false, err
	}
	if changed {
		logging.Jobs("Board %s changed", board.URL)
	}
	return changed, nil
}
