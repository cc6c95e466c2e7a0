// Package tagger enriches stored card files with community tags fetched
// from the tagger endpoint, grouped into coarse categories.
package tagger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/deckforge/cardindex/internal/domain"
	"github.com/deckforge/cardindex/internal/scryfall"
)

// Tag categories written into the card's tag map.
const (
	CategoryArt       = "art"
	CategoryMechanics = "mechanics"
	CategoryThemes    = "themes"
	CategoryColors    = "colors"
	CategoryTribal    = "tribal"
	CategoryOther     = "other"
)

// TagSource fetches the raw tags for one card.
type TagSource interface {
	TaggerTags(ctx context.Context, cardID string) ([]scryfall.Tag, error)
}

// CardWalker visits stored card files and rewrites them in place.
type CardWalker interface {
	Walk(fn func(path string, card *domain.Card) error) error
	Rewrite(path string, card *domain.Card) error
}

// Updater walks the corpus, fetches tags per card, and rewrites files
// that gained tags. Cards that already have tags are skipped, so an
// interrupted run resumes for free.
type Updater struct {
	store  CardWalker
	source TagSource
	delay  time.Duration
	logger *zap.Logger
}

// Report summarizes one update run.
type Report struct {
	Visited int
	Tagged  int
	Skipped int
	Failed  int
}

// New creates an updater. delay spaces out per-card fetches on top of
// the client's own rate limit.
func New(store CardWalker, source TagSource, delay time.Duration, logger *zap.Logger) *Updater {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Updater{store: store, source: source, delay: delay, logger: logger}
}

// Run updates tags for every untagged card. Per-card fetch failures are
// counted and logged, not fatal: one missing tagger page should not
// abort a corpus-wide pass.
func (u *Updater) Run(ctx context.Context) (Report, error) {
	var report Report
	err := u.store.Walk(func(path string, card *domain.Card) error {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("tag update canceled: %w", err)
		}
		report.Visited++
		if len(card.Tags) > 0 {
			report.Skipped++
			return nil
		}

		tags, err := u.source.TaggerTags(ctx, card.ID)
		if err != nil {
			report.Failed++
			u.logger.Warn("Tag fetch failed",
				zap.String("card", card.Name),
				zap.Error(err),
			)
			return nil
		}

		card.Tags = Categorize(tags)
		if err := u.store.Rewrite(path, card); err != nil {
			return err
		}
		report.Tagged++

		if u.delay > 0 {
			timer := time.NewTimer(u.delay)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return fmt.Errorf("tag update canceled: %w", ctx.Err())
			case <-timer.C:
			}
		}
		return nil
	})
	if err != nil {
		return report, err
	}

	u.logger.Info("Tag update completed",
		zap.Int("visited", report.Visited),
		zap.Int("tagged", report.Tagged),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// Categorize groups raw tags by their type into the fixed categories.
// Unrecognized types land in "other". Every category key is present in
// the result, possibly empty, so stored files have a stable shape.
func Categorize(tags []scryfall.Tag) map[string][]string {
	out := map[string][]string{
		CategoryArt:       {},
		CategoryMechanics: {},
		CategoryThemes:    {},
		CategoryColors:    {},
		CategoryTribal:    {},
		CategoryOther:     {},
	}
	for _, tag := range tags {
		out[categoryFor(tag.Type)] = append(out[categoryFor(tag.Type)], tag.Text)
	}
	return out
}

func categoryFor(tagType string) string {
	switch strings.ToLower(tagType) {
	case "illustration", "art":
		return CategoryArt
	case "function", "mechanic", "mechanics":
		return CategoryMechanics
	case "theme", "themes", "flavor":
		return CategoryThemes
	case "color", "colors":
		return CategoryColors
	case "creature-type", "tribe", "tribal":
		return CategoryTribal
	default:
		return CategoryOther
	}
}
