// Package search ranks corpus cards against free-text queries by
// component-averaged cosine similarity, with commander-specific boosts.
package search

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/deckforge/cardindex/internal/corpus"
	"github.com/deckforge/cardindex/internal/domain"
	"github.com/deckforge/cardindex/internal/embedding"
	"github.com/deckforge/cardindex/internal/metrics"
)

// Commander boost weights, applied on top of the cosine score.
const (
	boostLegendary  = 0.2
	boostExactColor = 0.15
	boostTheme      = 0.2
	boostKeyword    = 0.15
	boostTribal     = 0.25
)

// Embedder turns query text into a vector comparable with stored card
// embeddings.
type Embedder interface {
	Embed(text string) []float32
}

// Match pairs a card with its similarity score.
type Match struct {
	Card       domain.Card `json:"card"`
	Similarity float64     `json:"similarity"`
}

// Engine scores corpus cards against query embeddings.
type Engine struct {
	corpus *corpus.Corpus
	embed  Embedder
	logger *zap.Logger
}

// New creates a search engine over a loaded corpus.
func New(c *corpus.Corpus, e Embedder, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{corpus: c, embed: e, logger: logger}
}

func defaultComponents() []string {
	return []string{
		domain.ComponentName,
		domain.ComponentType,
		domain.ComponentAbilities,
		domain.ComponentTheme,
	}
}

// Search embeds the query and ranks every corpus card by the average
// cosine similarity over the requested components. Components the card
// has no embedding for contribute nothing rather than dragging the
// average down. Results are sorted by score descending, ties kept in
// corpus order, and truncated to the limit.
func (e *Engine) Search(query string, opts Options) []Match {
	start := time.Now()
	opts.applyDefaults()

	searchType := "similarity"
	if opts.CommanderSearch {
		searchType = "commander"
	}
	metrics.SearchRequestsTotal.WithLabelValues(searchType).Inc()
	defer func() {
		metrics.SearchDuration.Observe(time.Since(start).Seconds())
	}()

	queryVec := e.embed.Embed(query)
	queryWords := wordSet(query)

	var matches []Match
	for _, card := range e.corpus.All() {
		if !e.passesFilters(&card, &opts) {
			continue
		}

		score, ok := componentScore(queryVec, card.Embeddings, opts.Components)
		if !ok {
			continue
		}
		if opts.CommanderSearch {
			score += commanderBoost(&card, queryWords, opts.ColorIdentity)
			if score > 1 {
				score = 1
			}
		}
		if score < opts.MinSimilarity {
			continue
		}
		matches = append(matches, Match{Card: card, Similarity: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > opts.Limit {
		matches = matches[:opts.Limit]
	}

	e.logger.Debug("Search completed",
		zap.String("type", searchType),
		zap.Int("results", len(matches)),
		zap.Duration("duration", time.Since(start)),
	)
	return matches
}

// FindSimilar ranks the corpus against a stored card's own embedding for
// one component. The source card itself is excluded from the results.
func (e *Engine) FindSimilar(cardID, component string, limit int) ([]Match, error) {
	source, ok := e.corpus.Get(cardID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrCardNotFound, cardID)
	}
	if component == "" {
		component = domain.ComponentAbilities
	}
	ref, ok := source.Embeddings[component]
	if !ok {
		return nil, fmt.Errorf("%w: card %s has no %q embedding",
			domain.ErrInvalidQuery, cardID, component)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	var matches []Match
	for _, card := range e.corpus.All() {
		if card.ID == cardID {
			continue
		}
		vec, ok := card.Embeddings[component]
		if !ok {
			continue
		}
		score, ok := embedding.Cosine(ref, vec)
		if !ok {
			continue
		}
		matches = append(matches, Match{Card: card, Similarity: score})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (e *Engine) passesFilters(card *domain.Card, opts *Options) bool {
	if opts.CommanderSearch && !card.CommanderEligible() {
		return false
	}
	if len(opts.ColorIdentity) > 0 {
		switch opts.ColorMatch {
		case ColorMatchSubset:
			if !domain.ColorSubset(card.ColorIdentity, opts.ColorIdentity) {
				return false
			}
		default:
			if !domain.SameColorIdentity(card.ColorIdentity, opts.ColorIdentity) {
				return false
			}
		}
	}
	if opts.CardType != "" &&
		!strings.Contains(strings.ToLower(card.TypeLine), strings.ToLower(opts.CardType)) {
		return false
	}
	if opts.CMC != nil && card.CMC != *opts.CMC {
		return false
	}
	if opts.Rarity != "" && !strings.EqualFold(card.Rarity, opts.Rarity) {
		return false
	}
	return true
}

// componentScore averages the cosine similarity over the components the
// card actually has embeddings for. ok is false when no component could
// be scored.
func componentScore(queryVec []float32, embeddings map[string][]float32, components []string) (float64, bool) {
	var total float64
	scored := 0
	for _, comp := range components {
		vec, ok := embeddings[comp]
		if !ok {
			continue
		}
		sim, ok := embedding.Cosine(queryVec, vec)
		if !ok {
			continue
		}
		total += sim
		scored++
	}
	if scored == 0 {
		return 0, false
	}
	return total / float64(scored), true
}

// commanderBoost rewards cards that look like what the query asks for:
// legendary creatures, exact color identity, theme and keyword overlap,
// and tribal hits where the query names one of the card's subtypes.
func commanderBoost(card *domain.Card, queryWords map[string]bool, wantColors []string) float64 {
	var boost float64
	if card.IsLegendaryCreature() {
		boost += boostLegendary
	}
	if len(wantColors) > 0 && domain.SameColorIdentity(card.ColorIdentity, wantColors) {
		boost += boostExactColor
	}
	if overlaps(queryWords, card.Components[domain.ComponentTheme]) {
		boost += boostTheme
	}
	if overlapsList(queryWords, card.Keywords) {
		boost += boostKeyword
	}
	if overlapsList(queryWords, card.Subtypes()) {
		boost += boostTribal
	}
	return boost
}

func wordSet(text string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		words[w] = true
	}
	return words
}

func overlaps(queryWords map[string]bool, text string) bool {
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if queryWords[w] {
			return true
		}
	}
	return false
}

func overlapsList(queryWords map[string]bool, items []string) bool {
	for _, item := range items {
		if queryWords[strings.ToLower(item)] {
			return true
		}
	}
	return false
}
