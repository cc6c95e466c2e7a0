package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/deckforge/cardindex/internal/embedding"
	"github.com/deckforge/cardindex/internal/ingest"
	"github.com/deckforge/cardindex/internal/ratelimit"
	"github.com/deckforge/cardindex/internal/scryfall"
)

func newIngestCmd() *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch the card corpus from the Scryfall API",
		Long: `Fetch every card matching the configured search query and persist
them as sharded JSON files. An interrupted run resumes from the progress
file; --reset discards saved progress and starts over.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, cardStore, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()

			if reset {
				if err := cardStore.RemoveProgress(); err != nil {
					return err
				}
			}

			client := scryfall.New(scryfall.Config{
				BaseURL:    cfg.Scryfall.BaseURL,
				Timeout:    time.Duration(cfg.Scryfall.TimeoutSec) * time.Second,
				MaxRetries: cfg.Scryfall.MaxRetries,
				RetryDelay: time.Duration(cfg.Scryfall.RetryDelayMS) * time.Millisecond,
				Limiter: ratelimit.New(
					cfg.Scryfall.RateLimit,
					time.Duration(cfg.Scryfall.RateWindowMS)*time.Millisecond,
				),
				Logger: logger,
			})

			pipeline := ingest.New(ingest.Config{
				Fetcher:       client,
				Saver:         cardStore,
				Vectorizer:    embedding.New(cfg.Embedding.Dimensions),
				FirstPageURL:  client.SearchURL(cfg.Scryfall.SearchQuery),
				ProgressPath:  cardStore.ProgressPath(),
				MaxPageErrors: cfg.Scryfall.MaxPageErrors,
				PageDelay:     time.Duration(cfg.Scryfall.PageDelayMS) * time.Millisecond,
				Logger:        logger,
			})

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			result, err := pipeline.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Ingested %d cards across %d pages (%d skipped) in %s\n",
				result.Cards, result.Pages, result.Skipped, result.Duration.Round(time.Second))
			return nil
		},
	}

	cmd.Flags().BoolVar(&reset, "reset", false, "discard saved progress and start over")
	return cmd
}
