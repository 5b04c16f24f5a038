package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"jaybrain/internal/store"
	"jaybrain/internal/trash"
)

var trashCmd = &cobra.Command{
	Use:   "trash",
	Short: "Manage the recycle bin",
	Long: `Soft-deleted files live under the data directory for 30 days with a
manifest row per entry. list shows them, restore puts one back, sweep purges
expired entries, and scan classifies deletion candidates under a directory.`,
}

var trashListCmd = &cobra.Command{
	Use:   "list",
	Short: "List trashed entries, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		bin, s, err := openTrash()
		if err != nil {
			return err
		}
		defer s.Close()

		entries, err := bin.List(50)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("trash is empty")
			return nil
		}
		for _, e := range entries {
			kind := "file"
			if e.IsDir {
				kind = "dir"
			}
			fmt.Printf("%s  %-4s %8s  %s  (expires %s)\n",
				e.ID[:8], kind, humanBytes(e.SizeBytes), e.OriginalPath,
				e.ExpiresAt.Local().Format("2006-01-02"))
		}
		return nil
	},
}

var trashRestoreCmd = &cobra.Command{
	Use:   "restore <id>",
	Short: "Restore a trashed entry to its original path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bin, s, err := openTrash()
		if err != nil {
			return err
		}
		defer s.Close()

		entry, err := bin.Restore(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("restored %s\n", entry.OriginalPath)
		return nil
	},
}

var trashSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Purge entries past their 30-day expiry",
	RunE: func(cmd *cobra.Command, args []string) error {
		bin, s, err := openTrash()
		if err != nil {
			return err
		}
		defer s.Close()

		n, err := bin.SweepExpired(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("purged %d expired entries\n", n)
		return nil
	},
}

var trashScanCmd = &cobra.Command{
	Use:   "scan [dir]",
	Short: "Classify deletion candidates under a directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := "."
		if len(args) == 1 {
			root = args[0]
		} else if wd, err := os.Getwd(); err == nil {
			root = wd
		}

		bin, s, err := openTrash()
		if err != nil {
			return err
		}
		defer s.Close()

		candidates, err := bin.Scan(cmd.Context(), root)
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			fmt.Println("nothing trashable found")
			return nil
		}
		for _, c := range candidates {
			marker := "review"
			if c.AutoOK {
				marker = "auto"
			}
			fmt.Printf("%-6s %-14s %8s  %s\n", marker, c.Category,
				humanBytes(c.SizeBytes), c.Path)
		}
		return nil
	},
}

func init() {
	trashCmd.AddCommand(trashListCmd)
	trashCmd.AddCommand(trashRestoreCmd)
	trashCmd.AddCommand(trashSweepCmd)
	trashCmd.AddCommand(trashScanCmd)
}

func openTrash() (*trash.Manager, *store.Store, error) {
	s, err := store.Open(cfg.StorePath())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}
	return trash.NewManager(s, cfg.TrashDir()), s, nil
}

func humanBytes(n int64) string {
	switch {
	case n >= 1<<30:
		return fmt.Sprintf("%.1fG", float64(n)/(1<<30))
	case n >= 1<<20:
		return fmt.Sprintf("%.1fM", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.1fK", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%dB", n)
	}
}
