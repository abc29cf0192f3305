package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/assessment-recommender/internal/config"
	"github.com/dshills/assessment-recommender/internal/indexer"
	"github.com/dshills/assessment-recommender/internal/mcp"
	"github.com/dshills/assessment-recommender/internal/searcher"
	"github.com/dshills/assessment-recommender/internal/storage"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve recommendation tools over MCP stdio",
	Long: `Runs a Model Context Protocol server on stdin/stdout with the tools
recommend_assessments, search_catalog, get_index_status and index_catalog.
Requires the sqlite backend. Logs go to stderr.`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	if cfg.Index.Backend != config.BackendSQLite {
		return fmt.Errorf("mcp requires the sqlite backend, got %q", cfg.Index.Backend)
	}
	if err := cfg.RequireCredentials(config.CredentialEmbedding, config.CredentialGeneration); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	emb, err := newEmbedder(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = emb.Close() }()

	store, err := storage.OpenIndex(cfg.Index.Dir)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	// Indexer and searcher share the embedder so vectors cached while
	// indexing are reused for queries
	srch := searcher.NewSearcher(store, emb)
	orch, err := newOrchestrator(ctx, cfg, srch, logger)
	if err != nil {
		return err
	}

	source, err := filepath.Abs(cfg.Index.Source)
	if err != nil {
		return err
	}

	server, err := mcp.NewServer(mcp.Deps{
		Recommender: orch,
		Storage:     store,
		Indexer:     indexer.New(store, emb, logger.Named("indexer")),
		Searcher:    srch,
		Source:      source,
		Workers:     cfg.Index.Workers,
		Logger:      logger.Named("mcp"),
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	logger.Info("mcp server ready, listening on stdio",
		zap.String("version", version),
		zap.String("index_dir", cfg.Index.Dir),
		zap.String("build_mode", storage.BuildMode))
	return server.Serve(ctx)
}
