// cardctl is the operational companion to the cardindex server: corpus
// ingestion, initialization, validation, tag enrichment, and statistics.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/deckforge/cardindex/internal/config"
	logpkg "github.com/deckforge/cardindex/internal/logger"
	"github.com/deckforge/cardindex/internal/store"
	"github.com/deckforge/cardindex/internal/version"
)

func main() {
	root := &cobra.Command{
		Use:           "cardctl",
		Short:         "Manage the cardindex card corpus",
		Version:       fmt.Sprintf("%s (%s)", version.Version, version.Commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newIngestCmd(),
		newInitCmd(),
		newValidateCmd(),
		newTagsCmd(),
		newStatsCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// setup loads the configuration and builds the logger and store every
// subcommand needs.
func setup() (config.Config, *zap.Logger, *store.Store, func(), error) {
	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		return config.Config{}, nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return config.Config{}, nil, nil, nil, fmt.Errorf("create logger: %w", err)
	}

	cleanup := func() { _ = logger.Sync() }
	if cfg.Storage.LogFile != "" {
		teed, closeLog, err := logpkg.WithFile(logger, cfg.Storage.LogFile)
		if err != nil {
			cleanup()
			return config.Config{}, nil, nil, nil, fmt.Errorf("open log file: %w", err)
		}
		logger = teed
		cleanup = func() {
			_ = logger.Sync()
			_ = closeLog()
		}
	}

	return cfg, logger, store.New(cfg.Storage.CorpusDir, logger), cleanup, nil
}
