package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"jaybrain/internal/jobs"
	"jaybrain/internal/store"
)

var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Manage the markdown vault mirror",
}

var vaultSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Regenerate the vault from the store",
	Long: `One-shot vault sync: renders memories, knowledge, concepts, and
entities to markdown, inserts wiki-links for known entity names, and appends
backlink sections. The daemon runs the same sync on a schedule.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := store.Open(cfg.StorePath())
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer s.Close()

		if err := jobs.NewVaultSync(s, cfg.VaultPath()).Run(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("vault synced to %s\n", cfg.VaultPath())
		return nil
	},
}

func init() {
	vaultCmd.AddCommand(vaultSyncCmd)
}
