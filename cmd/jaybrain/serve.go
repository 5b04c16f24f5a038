package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"jaybrain/internal/browser"
	"jaybrain/internal/embedding"
	"jaybrain/internal/forge"
	"jaybrain/internal/logging"
	"jaybrain/internal/mcp"
	"jaybrain/internal/notify"
	"jaybrain/internal/pulse"
	"jaybrain/internal/retrieval"
	"jaybrain/internal/store"
	"jaybrain/internal/tools"
	"jaybrain/internal/trash"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the tool surface over MCP stdio",
	Long: `Speaks line-delimited JSON-RPC on stdin/stdout for an MCP client.
Runs until stdin closes or the process is signalled. All diagnostics go to
the category log files; stdout carries protocol frames only.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := store.Open(cfg.StorePath())
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer s.Close()

	embedder := buildEmbedder()
	bm := browser.New(cfg)
	defer bm.Close()

	deps := &tools.Deps{
		Cfg:       cfg,
		Store:     s,
		Retrieval: retrieval.NewEngine(s, embedder),
		Forge:     forge.NewEngine(s),
		Pulse:     pulse.NewReader(s, cfg.Pulse.TranscriptsDir),
		Trash:     trash.NewManager(s, cfg.TrashDir()),
		Browser:   bm,
		Notifier:  notify.NewPaced(cfg),
		LockPath:  cfg.LockFilePath(),
	}

	reg := tools.NewRegistry()
	tools.RegisterAll(reg, deps)

	server := mcp.NewServer("jaybrain", version, reg)
	logger.Info("mcp server ready", zap.Int("tools", len(reg.All())))
	logging.MCP("Serving %d tools over stdio", len(reg.All()))
	return server.Serve(ctx, os.Stdin, os.Stdout)
}

// buildEmbedder constructs the configured embedding engine. Failure is not
// fatal: recall degrades to keyword-only and remember skips the vector row.
func buildEmbedder() embedding.EmbeddingEngine {
	eng, err := embedding.NewEngine(embedding.Config{
		Provider:       cfg.Embedding.Provider,
		OllamaEndpoint: cfg.Embedding.OllamaEndpoint,
		OllamaModel:    cfg.Embedding.OllamaModel,
		GenAIAPIKey:    cfg.Embedding.GenAIAPIKey,
		GenAIModel:     cfg.Embedding.GenAIModel,
		TaskType:       cfg.Embedding.TaskType,
		Dimensions:     cfg.Embedding.Dimensions,
	})
	if err != nil {
		logging.EmbeddingDebug("Embedding engine unavailable, keyword-only mode: %v", err)
		return nil
	}
	return eng
}
