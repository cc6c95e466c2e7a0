package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/deckforge/cardindex/internal/ratelimit"
	"github.com/deckforge/cardindex/internal/scryfall"
	"github.com/deckforge/cardindex/internal/tagger"
)

func newTagsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "Enrich stored cards with community tags",
		Long: `Fetch tagger tags for every stored card and rewrite its file with
the tags grouped by category. Cards that already have tags are skipped,
so an interrupted run can simply be restarted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, cardStore, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()

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

			updater := tagger.New(
				cardStore,
				client,
				time.Duration(cfg.Scryfall.TagDelayMS)*time.Millisecond,
				logger,
			)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			report, err := updater.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Visited %d cards: %d tagged, %d skipped, %d failed\n",
				report.Visited, report.Tagged, report.Skipped, report.Failed)
			return nil
		},
	}
}
