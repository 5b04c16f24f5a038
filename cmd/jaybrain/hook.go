package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"jaybrain/internal/hooks"
	"jaybrain/internal/logging"
	"jaybrain/internal/store"
)

// hookTimeout bounds one hook ingest. Hooks sit on the assistant's critical
// path, so a wedged store must not stall the conversation.
const hookTimeout = 5 * time.Second

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Ingest one hook event from stdin",
	Long: `Reads a single JSON hook event from stdin and records it. Always
exits 0: a failed ingest is logged and swallowed so the calling assistant
never sees an error from its own telemetry.`,
	Run: runHook,
}

func runHook(cmd *cobra.Command, args []string) {
	raw, err := io.ReadAll(io.LimitReader(os.Stdin, 1<<20))
	if err != nil || len(raw) == 0 {
		logging.HooksDebug("Empty or unreadable hook payload: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), hookTimeout)
	defer cancel()

	s, err := store.Open(cfg.StorePath())
	if err != nil {
		logging.HooksDebug("Store unavailable for hook ingest: %v", err)
		return
	}
	defer s.Close()

	if err := hooks.NewIngestor(s).Handle(ctx, raw); err != nil {
		logging.HooksDebug("Hook ingest failed: %v", err)
	}
}
