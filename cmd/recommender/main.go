// Command recommender builds the assessment catalog index and serves
// recommendations over HTTP and MCP.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/assessment-recommender/internal/config"
	"github.com/dshills/assessment-recommender/internal/logging"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	// Global flags
	configPath string
	verbose    bool

	// Set by PersistentPreRunE
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "recommender",
	Short: "SHL assessment recommender",
	Long: `Recommends SHL assessments for a hiring need.

A markdown export of the catalog is split into heading sections, embedded
and stored in an index directory. Queries retrieve the closest sections and
ask a language model to pick assessments from them.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		logger, err = logging.New(logging.Options{
			Level:   cfg.Logging.Level,
			Format:  cfg.Logging.Format,
			Verbose: verbose,
		})
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (default: $RECOMMENDER_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(indexCmd, serveCmd, batchCmd, mcpCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
