// Package corpus holds the in-memory card map served at query time.
// The map is loaded once at startup and treated as immutable during
// serving, so reads take no lock.
package corpus

import (
	"math/rand"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/deckforge/cardindex/internal/domain"
)

// Loader produces the card map, typically store.Store.
type Loader interface {
	Load() (map[string]domain.Card, error)
}

// Corpus is the loaded card set with lookup accessors.
type Corpus struct {
	cards map[string]domain.Card
	ids   []string // sorted, for deterministic iteration
}

// Load reads the corpus through the loader and logs its distribution.
func Load(l Loader, logger *zap.Logger) (*Corpus, error) {
	cards, err := l.Load()
	if err != nil {
		return nil, err
	}
	c := New(cards)
	c.logStatistics(logger)
	return c, nil
}

// New wraps an already loaded card map.
func New(cards map[string]domain.Card) *Corpus {
	ids := make([]string, 0, len(cards))
	for id := range cards {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return &Corpus{cards: cards, ids: ids}
}

// Len returns the number of cards.
func (c *Corpus) Len() int { return len(c.cards) }

// Get returns a card by identifier.
func (c *Corpus) Get(id string) (domain.Card, bool) {
	card, ok := c.cards[id]
	return card, ok
}

// All returns every card in deterministic identifier order.
func (c *Corpus) All() []domain.Card {
	out := make([]domain.Card, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.cards[id])
	}
	return out
}

// ByName returns cards whose name contains the given text, case-insensitive.
func (c *Corpus) ByName(name string) []domain.Card {
	needle := strings.ToLower(name)
	return c.filter(func(card *domain.Card) bool {
		return strings.Contains(strings.ToLower(card.Name), needle)
	})
}

// ByType returns cards whose type line contains the given text, case-insensitive.
func (c *Corpus) ByType(typ string) []domain.Card {
	needle := strings.ToLower(typ)
	return c.filter(func(card *domain.Card) bool {
		return strings.Contains(strings.ToLower(card.TypeLine), needle)
	})
}

// ByColorIdentity returns cards whose identity contains every requested
// color ("cards castable within this identity" is the inverse filter,
// exposed by the search engine's subset mode).
func (c *Corpus) ByColorIdentity(colors []string) []domain.Card {
	return c.filter(func(card *domain.Card) bool {
		return domain.ColorSubset(colors, card.ColorIdentity)
	})
}

// ByCMC returns cards with the exact converted mana cost.
func (c *Corpus) ByCMC(cmc float64) []domain.Card {
	return c.filter(func(card *domain.Card) bool {
		return card.CMC == cmc
	})
}

// ByRarity returns cards of the given rarity, case-insensitive.
func (c *Corpus) ByRarity(rarity string) []domain.Card {
	needle := strings.ToLower(rarity)
	return c.filter(func(card *domain.Card) bool {
		return strings.ToLower(card.Rarity) == needle
	})
}

// BySet returns cards from the given set code, case-insensitive.
func (c *Corpus) BySet(set string) []domain.Card {
	needle := strings.ToLower(set)
	return c.filter(func(card *domain.Card) bool {
		return strings.ToLower(card.Set) == needle
	})
}

// ByPopularity returns cards with a popularity rank in [min, max].
// Cards without a rank are excluded.
func (c *Corpus) ByPopularity(min, max int) []domain.Card {
	return c.filter(func(card *domain.Card) bool {
		return card.EDHRECRank != nil && *card.EDHRECRank >= min && *card.EDHRECRank <= max
	})
}

// Random returns up to n cards in random order.
func (c *Corpus) Random(n int) []domain.Card {
	ids := make([]string, len(c.ids))
	copy(ids, c.ids)
	rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	if n > len(ids) {
		n = len(ids)
	}
	out := make([]domain.Card, 0, n)
	for _, id := range ids[:n] {
		out = append(out, c.cards[id])
	}
	return out
}

func (c *Corpus) filter(keep func(*domain.Card) bool) []domain.Card {
	var out []domain.Card
	for _, id := range c.ids {
		card := c.cards[id]
		if keep(&card) {
			out = append(out, card)
		}
	}
	return out
}

// logStatistics logs the type and color-identity distribution after load.
func (c *Corpus) logStatistics(logger *zap.Logger) {
	if logger == nil {
		return
	}
	types := make(map[string]int)
	colors := make(map[string]int)
	for _, card := range c.cards {
		types[card.PrimaryType()]++
		colors[card.ColorKey()]++
	}
	logger.Info("Corpus distribution",
		zap.Int("cards", len(c.cards)),
		zap.Any("types", types),
		zap.Any("color_identities", colors),
	)
}
