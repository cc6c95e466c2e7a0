package search

// Color match modes. Exact requires the card's identity to equal the
// requested colors; Subset accepts any card castable within them.
const (
	ColorMatchExact  = "exact"
	ColorMatchSubset = "subset"
)

// Default query knobs.
const (
	DefaultLimit         = 20
	DefaultMinSimilarity = 0.2
)

// Options controls a similarity search. The zero value gets the
// defaults: limit 20, minimum similarity 0.2, name/type/abilities/theme
// components, exact color matching.
type Options struct {
	Limit           int      `json:"limit"`
	MinSimilarity   float64  `json:"min_similarity"`
	Components      []string `json:"components"`
	ColorIdentity   []string `json:"color_identity"`
	ColorMatch      string   `json:"color_match"`
	CardType        string   `json:"card_type"`
	CMC             *float64 `json:"cmc"`
	Rarity          string   `json:"rarity"`
	CommanderSearch bool     `json:"commander_search"`
}

func (o *Options) applyDefaults() {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.MinSimilarity <= 0 {
		o.MinSimilarity = DefaultMinSimilarity
	}
	if len(o.Components) == 0 {
		o.Components = defaultComponents()
	}
	if o.ColorMatch == "" {
		o.ColorMatch = ColorMatchExact
	}
}
