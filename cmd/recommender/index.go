package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/assessment-recommender/internal/chromemstore"
	"github.com/dshills/assessment-recommender/internal/config"
	"github.com/dshills/assessment-recommender/internal/indexer"
	"github.com/dshills/assessment-recommender/internal/storage"
)

var (
	indexSource  string
	indexDir     string
	indexBackend string
	indexForce   bool
	indexWorkers int
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the knowledge base from a markdown catalog",
	Long: `Splits the catalog on level 1-3 headings, embeds every section and
persists the result to the index directory.

With the sqlite backend an unchanged source is skipped unless --force is
given. The chromem backend always rebuilds its collection.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVar(&indexSource, "source", "", "markdown catalog (default: index.source)")
	indexCmd.Flags().StringVar(&indexDir, "index-dir", "", "index directory (default: index.dir)")
	indexCmd.Flags().StringVar(&indexBackend, "backend", "", "index backend: sqlite or chromem (default: index.backend)")
	indexCmd.Flags().BoolVar(&indexForce, "force", false, "rebuild even when the source is unchanged")
	indexCmd.Flags().IntVar(&indexWorkers, "workers", 0, "concurrent embedding batches (default: CPU count)")
}

func runIndex(cmd *cobra.Command, args []string) error {
	if indexSource != "" {
		cfg.Index.Source = indexSource
	}
	if indexDir != "" {
		cfg.Index.Dir = indexDir
	}
	if indexBackend != "" {
		cfg.Index.Backend = indexBackend
	}
	if indexWorkers > 0 {
		cfg.Index.Workers = indexWorkers
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.RequireCredentials(config.CredentialEmbedding); err != nil {
		return err
	}

	ctx := cmd.Context()
	emb, err := newEmbedder(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = emb.Close() }()

	logger.Info("building knowledge base",
		zap.String("source", cfg.Index.Source),
		zap.String("dir", cfg.Index.Dir),
		zap.String("backend", cfg.Index.Backend),
		zap.String("provider", emb.Provider()),
		zap.String("model", emb.Model()))

	out := cmd.OutOrStdout()

	if cfg.Index.Backend == config.BackendChromem {
		stats, err := chromemstore.Build(ctx, cfg.Index.Dir, cfg.Index.Source, emb, logger)
		if err != nil {
			return fmt.Errorf("build failed: %w", err)
		}
		fmt.Fprintf(out, "Indexed %d sections (%d embeddings) in %s\n",
			stats.ChunksCreated, stats.EmbeddingsGenerated, stats.Duration.Round(time.Millisecond))
		return nil
	}

	store, err := storage.OpenIndex(cfg.Index.Dir)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	stats, err := indexer.New(store, emb, logger).IndexSource(ctx, cfg.Index.Source, &indexer.Config{
		Workers: cfg.Index.Workers,
		Force:   indexForce,
	})
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	if stats.DocumentsSkipped > 0 {
		fmt.Fprintf(out, "Source unchanged, index is up to date (use --force to rebuild)\n")
		return nil
	}
	fmt.Fprintf(out, "Indexed %d sections (%d embeddings) in %s\n",
		stats.ChunksCreated, stats.EmbeddingsGenerated, stats.Duration.Round(time.Millisecond))
	return nil
}
