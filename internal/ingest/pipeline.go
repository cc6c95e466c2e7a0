// Package ingest runs the paginated, resumable fetch-and-normalize loop
// that populates the card store.
package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/deckforge/cardindex/internal/domain"
	"github.com/deckforge/cardindex/internal/embedding"
	"github.com/deckforge/cardindex/internal/metrics"
	"github.com/deckforge/cardindex/internal/scryfall"
)

// Fetcher fetches one page of search results from an absolute URL.
type Fetcher interface {
	FetchPage(ctx context.Context, pageURL string) (scryfall.Page, error)
}

// Saver persists a batch of normalized cards.
type Saver interface {
	Save(cards []domain.Card) error
}

// Config holds pipeline settings. Zero values get the production
// defaults: batches of 10, checkpoint every 100 cards, 5-error budget,
// 2s page delay, 8s page-error backoff.
type Config struct {
	Fetcher         Fetcher
	Saver           Saver
	Vectorizer      *embedding.Vectorizer
	FirstPageURL    string
	ProgressPath    string
	BatchSize       int
	CheckpointEvery int
	MaxPageErrors   int
	PageDelay       time.Duration
	ErrorBackoff    time.Duration
	Logger          *zap.Logger
}

// Pipeline is the ingestion state machine: fetch page, process batch,
// advance or retry with backoff, abort after the error budget.
type Pipeline struct {
	cfg Config
}

// Result summarizes a completed run.
type Result struct {
	Pages    int
	Cards    int
	Skipped  int
	Duration time.Duration
}

// New creates a pipeline.
func New(cfg Config) *Pipeline {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.CheckpointEvery <= 0 {
		cfg.CheckpointEvery = 100
	}
	if cfg.MaxPageErrors <= 0 {
		cfg.MaxPageErrors = 5
	}
	if cfg.PageDelay < 0 {
		cfg.PageDelay = 0
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = 8 * time.Second
	}
	if cfg.Vectorizer == nil {
		cfg.Vectorizer = embedding.New(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Pipeline{cfg: cfg}
}

// Run executes the page loop until the server reports no more pages or
// the error budget is exhausted. Resumes from the progress file when
// present: fully processed pages and the leading cards of a partially
// processed page are fetched but not re-saved. On success the progress
// file is removed.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	log := p.cfg.Logger

	track, err := newTracker(p.cfg.ProgressPath, p.cfg.CheckpointEvery, log)
	if err != nil {
		return Result{}, err
	}

	var result Result
	nextPage := p.cfg.FirstPageURL
	pageCount := 0
	pageErrors := 0

	log.Info("Starting card ingestion", zap.String("first_page", p.cfg.FirstPageURL))

	for hasMore := true; hasMore; {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("ingestion canceled: %w", err)
		}
		pageCount++

		page, err := p.processPage(ctx, track, nextPage, pageCount, &result)
		if err != nil {
			pageErrors++
			metrics.IngestPageErrorsTotal.Inc()
			log.Error("Page processing failed",
				zap.Int("page", pageCount),
				zap.Int("error_count", pageErrors),
				zap.Error(err),
			)
			if pageErrors >= p.cfg.MaxPageErrors {
				return result, fmt.Errorf("%w: %d page errors, last: %v",
					domain.ErrIngestAborted, pageErrors, err)
			}
			if serr := sleep(ctx, p.cfg.ErrorBackoff); serr != nil {
				return result, serr
			}
			pageCount-- // retry the same page
			continue
		}

		result.Pages++
		metrics.IngestPagesTotal.Inc()
		track.PageDone(pageCount)

		hasMore = page.HasMore
		if hasMore {
			nextPage = page.NextPage
			if err := sleep(ctx, p.cfg.PageDelay); err != nil {
				return result, err
			}
		}
	}

	if err := track.Clear(); err != nil {
		return result, err
	}

	result.Duration = time.Since(start)
	log.Info("Card ingestion completed",
		zap.Int("pages", result.Pages),
		zap.Int("cards", result.Cards),
		zap.Int("skipped", result.Skipped),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// processPage fetches one page and commits its records in sub-batches.
// The skip count is re-read from the tracker on every attempt so a
// retried page never re-saves cards committed by a previous attempt.
func (p *Pipeline) processPage(
	ctx context.Context,
	track *tracker,
	pageURL string,
	pageCount int,
	result *Result,
) (scryfall.Page, error) {
	log := p.cfg.Logger
	log.Info("Fetching page", zap.Int("page", pageCount))

	page, err := p.cfg.Fetcher.FetchPage(ctx, pageURL)
	if err != nil {
		return scryfall.Page{}, fmt.Errorf("fetch page %d: %w", pageCount, err)
	}

	skip := p.skipCount(track.Get(), pageCount, len(page.Data))
	if skip > 0 {
		log.Debug("Skipping already processed cards",
			zap.Int("page", pageCount),
			zap.Int("skip", skip),
		)
		result.Skipped += skip
	}
	records := page.Data[skip:]
	log.Info("Processing page",
		zap.Int("page", pageCount),
		zap.Int("cards", len(records)),
	)

	offset := skip
	for len(records) > 0 {
		n := p.cfg.BatchSize
		if n > len(records) {
			n = len(records)
		}
		batch, rest := records[:n], records[n:]

		cards, err := p.processBatch(ctx, batch)
		if err != nil {
			return scryfall.Page{}, err
		}
		if err := p.cfg.Saver.Save(cards); err != nil {
			return scryfall.Page{}, fmt.Errorf("save batch: %w", err)
		}

		offset += n
		result.Cards += n
		metrics.IngestCardsTotal.Add(float64(n))
		track.Advance(pageCount-1, offset, n)

		records = rest
	}

	return page, nil
}

// processBatch normalizes and embeds a sub-batch concurrently. Bounded
// by the batch size; sub-batches themselves run serially.
func (p *Pipeline) processBatch(ctx context.Context, raws []scryfall.Card) ([]domain.Card, error) {
	cards := make([]domain.Card, len(raws))
	g, _ := errgroup.WithContext(ctx)
	for i := range raws {
		i := i
		g.Go(func() error {
			cards[i] = normalize(&raws[i], p.cfg.Vectorizer)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("process batch: %w", err)
	}
	return cards, nil
}

// skipCount returns how many leading records of the current page were
// already committed according to saved progress.
func (p *Pipeline) skipCount(prog Progress, pageCount, pageLen int) int {
	switch {
	case pageCount <= prog.Page:
		return pageLen
	case pageCount == prog.Page+1:
		if prog.Offset > pageLen {
			return pageLen
		}
		return prog.Offset
	default:
		return 0
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
