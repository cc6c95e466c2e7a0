// Package scryfall is the read-only client for the Scryfall card API:
// paginated card search and per-card tagger tags, rate limited and
// retried with exponential backoff.
package scryfall

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/deckforge/cardindex/internal/domain"
	"github.com/deckforge/cardindex/internal/metrics"
	"github.com/deckforge/cardindex/internal/ratelimit"
)

const userAgent = "cardindex/1.0"

// Config holds client settings.
type Config struct {
	BaseURL    string
	Timeout    time.Duration // per-request; a timeout retries like a network failure
	MaxRetries int
	RetryDelay time.Duration // backoff base
	Limiter    *ratelimit.Limiter
	Logger     *zap.Logger
}

// Client issues rate-limited, retrying requests against the Scryfall API.
type Client struct {
	base       string
	httpc      *http.Client
	limiter    *ratelimit.Limiter
	logger     *zap.Logger
	maxRetries int
	retryDelay time.Duration
}

// New creates a client. Zero config fields get production defaults:
// 10s timeout, 5 retries, 2s backoff base, 10 req/s limiter.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.scryfall.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.Limiter == nil {
		cfg.Limiter = ratelimit.New(10, time.Second)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Client{
		base:       cfg.BaseURL,
		httpc:      &http.Client{Timeout: cfg.Timeout},
		limiter:    cfg.Limiter,
		logger:     cfg.Logger,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}
}

// Card is the raw API record; ingest normalizes it into domain.Card.
type Card struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	TypeLine        string            `json:"type_line"`
	OracleText      string            `json:"oracle_text"`
	ManaCost        string            `json:"mana_cost"`
	CMC             float64           `json:"cmc"`
	Colors          []string          `json:"colors"`
	ColorIdentity   []string          `json:"color_identity"`
	Keywords        []string          `json:"keywords"`
	Power           string            `json:"power"`
	Toughness       string            `json:"toughness"`
	Loyalty         string            `json:"loyalty"`
	Rarity          string            `json:"rarity"`
	Set             string            `json:"set"`
	SetName         string            `json:"set_name"`
	CollectorNumber string            `json:"collector_number"`
	ScryfallURI     string            `json:"scryfall_uri"`
	ImageURIs       map[string]string `json:"image_uris"`
	ImageURL        string            `json:"image_url"`
	CardFaces       []CardFace        `json:"card_faces"`
	Prices          map[string]string `json:"prices"`
	Legalities      map[string]string `json:"legalities"`
	EDHRECRank      *int              `json:"edhrec_rank"`
}

// CardFace is one raw printed face.
type CardFace struct {
	Name       string            `json:"name"`
	TypeLine   string            `json:"type_line"`
	ManaCost   string            `json:"mana_cost"`
	OracleText string            `json:"oracle_text"`
	ImageURIs  map[string]string `json:"image_uris"`
	ImageURL   string            `json:"image_url"`
}

// Page is one page of paginated search results. NextPage is an opaque
// absolute URL supplied by the server; only the first page URL is
// client-constructed.
type Page struct {
	Data     []Card `json:"data"`
	HasMore  bool   `json:"has_more"`
	NextPage string `json:"next_page"`
	Total    int    `json:"total_cards"`
}

// SearchURL builds the first-page search URL for a query.
func (c *Client) SearchURL(query string) string {
	return c.base + "/cards/search?q=" + url.QueryEscape(query) + "&unique=cards"
}

// FetchPage fetches one page of search results from an absolute URL.
func (c *Client) FetchPage(ctx context.Context, pageURL string) (Page, error) {
	var page Page
	if err := c.getJSON(ctx, pageURL, &page); err != nil {
		return Page{}, err
	}
	return page, nil
}

// Tag is one tagger tag attached to a card.
type Tag struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// TaggerTags fetches the community tags for a card.
func (c *Client) TaggerTags(ctx context.Context, cardID string) ([]Tag, error) {
	var resp struct {
		Data []Tag `json:"data"`
	}
	if err := c.getJSON(ctx, c.base+"/cards/"+url.PathEscape(cardID)+"/tagger-tags", &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// getJSON performs a GET with rate limiting and retry. Transient
// failures (429/500/503, network errors, timeouts) retry up to
// maxRetries with jittered exponential backoff; any other non-2xx
// status propagates immediately as a StatusError.
func (c *Client) getJSON(ctx context.Context, rawURL string, v any) error {
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
		if attempt > 0 {
			metrics.IngestRetriesTotal.Inc()
			delay := c.backoff(attempt)
			c.logger.Info("Retrying request",
				zap.Int("attempt", attempt),
				zap.Int("max_retries", c.maxRetries),
				zap.Duration("delay", delay),
				zap.String("url", rawURL),
			)
			if err := sleep(ctx, delay); err != nil {
				return err
			}
		}

		err := c.doOnce(ctx, rawURL, v)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrTransient) || attempt >= c.maxRetries {
			return err
		}
		c.logger.Warn("Transient request failure",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
}

func (c *Client) doOnce(ctx context.Context, rawURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Network errors and client timeouts retry identically.
		return fmt.Errorf("%w: %v", domain.ErrTransient, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusOK:
	case isRetryableStatus(resp.StatusCode):
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: HTTP %d", domain.ErrTransient, resp.StatusCode)
	default:
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &domain.StatusError{Status: resp.StatusCode, URL: rawURL}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests ||
		status == http.StatusInternalServerError ||
		status == http.StatusServiceUnavailable
}

// backoff returns base * 2^(attempt-1) with up to 30% jitter, capped at 30s.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.retryDelay << (attempt - 1)
	d += time.Duration(rand.Float64() * 0.3 * float64(d))
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
