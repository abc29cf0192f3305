package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/assessment-recommender/internal/batch"
)

var (
	batchInput       string
	batchOutput      string
	batchAPIURL      string
	batchConcurrency int
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Run a file of queries against a recommendation endpoint",
	Long: `Posts every query to the endpoint and writes Query,Assessment_url rows
to the output CSV as responses arrive. The input is a CSV with a Query
column or a text file with one query per line. Failed queries are reported
on stderr and produce no rows.`,
	Args: cobra.NoArgs,
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().StringVarP(&batchInput, "input", "i", "", "query file (CSV with a Query column, or one query per line)")
	batchCmd.Flags().StringVarP(&batchOutput, "output", "o", "test.csv", "output CSV")
	batchCmd.Flags().StringVar(&batchAPIURL, "api-url", "", "recommendation endpoint (default: batch.api_url)")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "requests in flight (default: batch.concurrency)")
	_ = batchCmd.MarkFlagRequired("input")
}

func runBatch(cmd *cobra.Command, args []string) error {
	if batchAPIURL != "" {
		cfg.Batch.APIURL = batchAPIURL
	}
	if batchConcurrency > 0 {
		cfg.Batch.Concurrency = batchConcurrency
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	queries, err := batch.ReadQueriesFile(batchInput)
	if err != nil {
		return fmt.Errorf("failed to read queries: %w", err)
	}

	out, err := os.Create(batchOutput)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	defer func() { _ = out.Close() }()

	abs, _ := filepath.Abs(batchOutput)
	fmt.Fprintf(cmd.ErrOrStderr(), "Created empty CSV: %s\n", abs)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := batch.NewClient(cfg.Batch.APIURL, cfg.Batch.Timeout, logger.Named("batch"))
	defer client.Close()

	runner := batch.NewRunner(client, batch.RunnerOptions{
		Concurrency: cfg.Batch.Concurrency,
		Messages:    cmd.ErrOrStderr(),
		Logger:      logger.Named("batch"),
	})

	logger.Info("starting batch",
		zap.Int("queries", len(queries)),
		zap.String("api_url", cfg.Batch.APIURL),
		zap.Int("concurrency", cfg.Batch.Concurrency))

	summary, err := runner.Run(ctx, queries, out)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "\nAll results saved to %s (%d rows, %d/%d queries failed)\n",
		abs, summary.Rows, summary.Failed, summary.Queries)
	return nil
}
