// Command jaybrain is the single binary: MCP tool server, scheduler daemon,
// hook sink, pulse reader, study TUI, and the small maintenance commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"jaybrain/internal/config"
	"jaybrain/internal/logging"
)

var (
	// Global flags
	dataDir string
	verbose bool

	// cfg is resolved once in PersistentPreRunE and shared by every
	// subcommand.
	cfg *config.Config

	// logger is the process-level zap logger for command lifecycle events.
	// Per-subsystem diagnostics go to the category log files instead.
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "jaybrain",
	Short: "Personal memory substrate and agent toolkit",
	Long: `jaybrain is a persistent memory layer for an assistant-driven workflow:
an embedded store with hybrid semantic recall, a spaced-repetition study
engine, a knowledge graph, cross-session activity tracking, and a scheduler
daemon that keeps watch in the background.

Run 'jaybrain serve' to expose the tool surface over MCP stdio.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			os.Setenv("JAYBRAIN_DEBUG", "1")
			os.Setenv("JAYBRAIN_LOG_LEVEL", "debug")
		}

		// Process logger: stderr always, so protocol stdout stays clean.
		zcfg := zap.NewProductionConfig()
		zcfg.OutputPaths = []string{"stderr"}
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		} else {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.LoadFromDataDir(dataDir)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if err := logging.Initialize(cfg.DataDir); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		logger.Debug("command starting",
			zap.String("command", cmd.Name()),
			zap.String("data_dir", cfg.DataDir))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "",
		"data directory (default ~/.jaybrain, env JAYBRAIN_DATA_DIR)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(daemonCmd)
	rootCmd.AddCommand(hookCmd)
	rootCmd.AddCommand(pulseCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(briefingCmd)
	rootCmd.AddCommand(trashCmd)
	rootCmd.AddCommand(vaultCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		logging.CloseAll()
		os.Exit(1)
	}
}
