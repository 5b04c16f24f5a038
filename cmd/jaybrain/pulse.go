package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"jaybrain/internal/pulse"
	"jaybrain/internal/store"
)

var pulseCmd = &cobra.Command{
	Use:   "pulse [session]",
	Short: "Show cross-session activity",
	Long: `Without arguments, lists live assistant sessions and ones that ended
recently. With a session id (or unique prefix), shows that session's digest
and most recent activity.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPulse,
}

func runPulse(cmd *cobra.Command, args []string) error {
	s, err := store.Open(cfg.StorePath())
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer s.Close()

	reader := pulse.NewReader(s, cfg.Pulse.TranscriptsDir)
	ctx := cmd.Context()

	if len(args) == 1 {
		return pulseDigest(cmd, reader, args[0])
	}

	result, err := reader.ActiveSessions(ctx)
	if err != nil {
		return err
	}
	if result.Status == "no_data" {
		fmt.Println("no session data yet (is the hook wired up?)")
		return nil
	}
	if len(result.Active) == 0 && len(result.RecentlyEnded) == 0 {
		fmt.Println("no live or recent sessions")
		return nil
	}

	for _, ss := range result.Active {
		fmt.Printf("● %s  %s  (%d tools, last %s, quiet %.0fm)\n",
			shortSession(ss.SessionID), ss.CWD, ss.ToolCount,
			orDash(ss.LastTool), ss.MinutesSinceHeartbeat)
	}
	for _, ss := range result.RecentlyEnded {
		fmt.Printf("○ %s  %s  (ended %s ago)\n",
			shortSession(ss.SessionID), ss.CWD,
			time.Duration(ss.MinutesSinceHeartbeat*float64(time.Minute)).Round(time.Minute))
	}
	return nil
}

func pulseDigest(cmd *cobra.Command, reader *pulse.Reader, needle string) error {
	ctx := cmd.Context()

	result, err := reader.QuerySession(ctx, needle)
	if err != nil {
		return err
	}
	switch result.Status {
	case "not_found":
		fmt.Printf("no session matches %q\n", needle)
		return nil
	case "ambiguous":
		fmt.Printf("%q matches %d sessions:\n", needle, len(result.Matches))
		for _, m := range result.Matches {
			fmt.Printf("  %s  %s\n", shortSession(m.SessionID), m.CWD)
		}
		return nil
	}

	cs := result.Session
	fmt.Printf("session %s (%s)\n", cs.SessionID, cs.Status)
	fmt.Printf("  cwd:     %s\n", cs.CWD)
	fmt.Printf("  started: %s\n", cs.StartedAt.Local().Format("2006-01-02 15:04"))
	fmt.Printf("  tools:   %d", cs.ToolCount)
	if cs.LastTool != "" {
		fmt.Printf(" (last %s)", cs.LastTool)
	}
	fmt.Println()
	if len(result.ToolUsage) > 0 {
		fmt.Println("  usage:")
		for tool, n := range result.ToolUsage {
			fmt.Printf("    %-20s %d\n", tool, n)
		}
	}

	activity, err := reader.SessionActivity(ctx, cs.SessionID, 20)
	if err != nil {
		return err
	}
	if len(activity) > 0 {
		fmt.Println("  recent activity:")
		for _, a := range activity {
			line := a.EventType
			if a.ToolName != "" {
				line += " " + a.ToolName
			}
			if a.ToolInputSummary != "" {
				line += ": " + a.ToolInputSummary
			}
			fmt.Printf("    %s  %s\n", a.Timestamp.Local().Format("15:04:05"), line)
		}
	}
	return nil
}

func shortSession(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
