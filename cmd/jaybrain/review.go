package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"jaybrain/cmd/jaybrain/review"
	"jaybrain/internal/forge"
	"jaybrain/internal/store"
)

var (
	reviewSubject string
	reviewLimit   int
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Run an interactive study session",
	Long: `Pulls the study queue and walks it one concept at a time: reveal the
definition, grade yourself, watch mastery move. With --subject, the queue is
interleaved by objective exam weight; without, it runs the priority buckets
(due, struggling, new, upcoming).`,
	RunE: runReview,
}

func init() {
	reviewCmd.Flags().StringVar(&reviewSubject, "subject", "", "subject id to study")
	reviewCmd.Flags().IntVar(&reviewLimit, "limit", forge.DefaultQueueLimit, "max concepts this session")
}

func runReview(cmd *cobra.Command, args []string) error {
	s, err := store.Open(cfg.StorePath())
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer s.Close()

	engine := forge.NewEngine(s)
	ctx := cmd.Context()

	var items []review.Item
	if reviewSubject != "" {
		queue, err := engine.BuildInterleaved(ctx, reviewSubject, reviewLimit)
		if err != nil {
			return err
		}
		for _, it := range queue {
			items = append(items, review.Item{Concept: it.Concept, ObjectiveCode: it.ObjectiveCode})
		}
	} else {
		queue, err := engine.BuildQueue(ctx, "", reviewLimit)
		if err != nil {
			return err
		}
		for _, bucket := range [][]*store.Concept{queue.DueNow, queue.Struggling, queue.New, queue.UpNext} {
			for _, c := range bucket {
				items = append(items, review.Item{Concept: c})
			}
		}
		if len(items) > reviewLimit && reviewLimit > 0 {
			items = items[:reviewLimit]
		}
	}

	if len(items) == 0 {
		fmt.Println("nothing to study right now")
		return nil
	}

	final, err := tea.NewProgram(review.New(engine, items)).Run()
	if err != nil {
		return fmt.Errorf("review session failed: %w", err)
	}

	if m, ok := final.(review.Model); ok {
		sum := m.Result()
		if sum.Reviewed == 0 {
			fmt.Println("session ended, nothing recorded")
			return nil
		}
		fmt.Printf("reviewed %d concepts (%d understood, %d struggled, %d skipped), net mastery %+.2f\n",
			sum.Reviewed, sum.Understood, sum.Struggled, sum.Skipped, sum.NetMastery)
	}
	return nil
}
