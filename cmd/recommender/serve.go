package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/assessment-recommender/internal/config"
	"github.com/dshills/assessment-recommender/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the recommendation API and UI over HTTP",
	Long: `Starts the HTTP server. POST /recommend returns JSON recommendations and
/ serves the browser UI. A missing index does not stop the server; queries
report that the knowledge base is not loaded until it is built.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
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

	kb, err := openKnowledgeBase(cfg, emb, logger)
	if err != nil {
		return err
	}
	defer kb.close()

	orch, err := newOrchestrator(ctx, cfg, kb.retriever, logger)
	if err != nil {
		return err
	}

	srv := server.New(orch, server.Options{
		Addr:            cfg.Server.Addr,
		RateLimit:       cfg.Server.RateLimit,
		RequestTimeout:  cfg.Server.RequestTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		CORSOrigins:     cfg.Server.CORSOrigins,
		Backend:         cfg.Index.Backend,
		IndexLoaded:     kb.loaded,
		Logger:          logger.Named("http"),
	})
	return srv.ListenAndServe(ctx)
}
