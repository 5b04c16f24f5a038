package main

import (
	"fmt"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"jaybrain/internal/jobs"
	"jaybrain/internal/pulse"
	"jaybrain/internal/store"
)

var briefingPreview bool

var briefingCmd = &cobra.Command{
	Use:   "briefing",
	Short: "Assemble the daily briefing",
	Long: `Composes the morning briefing (study queue, live sessions, fresh
articles, upcoming events, in-flight applications) and prints it as
markdown. The scheduled daemon job delivers the same text as a
notification.`,
	RunE: runBriefing,
}

func init() {
	briefingCmd.Flags().BoolVar(&briefingPreview, "preview", false,
		"render the markdown for the terminal")
}

func runBriefing(cmd *cobra.Command, args []string) error {
	s, err := store.Open(cfg.StorePath())
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer s.Close()

	reader := pulse.NewReader(s, cfg.Pulse.TranscriptsDir)
	text, err := jobs.NewBriefing(s, reader, nil).Compose(cmd.Context())
	if err != nil {
		return err
	}

	if briefingPreview {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(100),
		)
		if err == nil {
			if pretty, rerr := renderer.Render(text); rerr == nil {
				fmt.Print(pretty)
				return nil
			}
		}
		// Fall through to plain markdown when the renderer balks.
	}
	fmt.Println(text)
	return nil
}
