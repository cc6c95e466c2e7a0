// Package domain holds the card model and the pure component-breakdown
// functions that feed the embedding engine.
package domain

import "strings"

// subtypeDelimiter separates the primary type list from subtypes in a
// type line ("Legendary Creature — Elf Druid").
const subtypeDelimiter = " — "

// Face is one printed face of a double-faced card.
type Face struct {
	Name       string            `json:"name"`
	TypeLine   string            `json:"type_line,omitempty"`
	ManaCost   string            `json:"mana_cost,omitempty"`
	OracleText string            `json:"oracle_text,omitempty"`
	Images     map[string]string `json:"image_uris,omitempty"`
	ImageURL   string            `json:"image_url,omitempty"`
}

// ImageRef is the unified image reference stored per card. Double-faced
// cards carry both faces; single-faced cards only Front.
type ImageRef struct {
	DoubleFaced bool              `json:"is_double_faced"`
	Front       map[string]string `json:"front,omitempty"`
	Back        map[string]string `json:"back,omitempty"`
}

// Card is a card record, immutable once stored. The Components map holds
// the derived text fields and Embeddings one vector per non-empty
// component.
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
	Power           string            `json:"power,omitempty"`
	Toughness       string            `json:"toughness,omitempty"`
	Loyalty         string            `json:"loyalty,omitempty"`
	Rarity          string            `json:"rarity"`
	Set             string            `json:"set"`
	SetName         string            `json:"set_name,omitempty"`
	CollectorNumber string            `json:"collector_number,omitempty"`
	ScryfallURI     string            `json:"scryfall_uri,omitempty"`
	Faces           []Face            `json:"card_faces,omitempty"`
	Images          *ImageRef         `json:"image_uris,omitempty"`
	LegacyImageURL  string            `json:"image_url,omitempty"`
	Prices          map[string]string `json:"prices,omitempty"`
	Legalities      map[string]string `json:"legalities,omitempty"`
	EDHRECRank      *int              `json:"edhrec_rank,omitempty"`

	Tags       map[string][]string  `json:"tags,omitempty"`
	Components Components           `json:"components"`
	Embeddings map[string][]float32 `json:"embeddings"`
}

// PrimaryType returns the first whitespace-delimited token of the type
// line before the subtype delimiter ("Legendary Creature — Elf" -> "Legendary").
func (c *Card) PrimaryType() string {
	head, _, _ := strings.Cut(c.TypeLine, subtypeDelimiter)
	fields := strings.Fields(head)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Subtypes returns the whitespace-split tokens after the subtype delimiter.
func (c *Card) Subtypes() []string {
	_, tail, ok := strings.Cut(c.TypeLine, subtypeDelimiter)
	if !ok {
		return nil
	}
	return strings.Fields(tail)
}

// ColorKey returns the canonical shard key for the card's color identity.
func (c *Card) ColorKey() string {
	return ColorKey(c.ColorIdentity)
}

// IsLegendaryCreature reports whether the type line names a legendary creature.
func (c *Card) IsLegendaryCreature() bool {
	return strings.Contains(strings.ToLower(c.TypeLine), "legendary creature")
}

// CanBeCommander reports whether the oracle text grants commander
// eligibility explicitly.
func (c *Card) CanBeCommander() bool {
	return strings.Contains(strings.ToLower(c.OracleText), "can be your commander")
}

// CommanderLegal reports whether the card is legal in the commander format.
func (c *Card) CommanderLegal() bool {
	return c.Legalities["commander"] == "legal"
}

// CommanderEligible combines the eligibility rule with format legality:
// a legendary creature or an explicit "can be your commander" card that
// is commander-legal.
func (c *Card) CommanderEligible() bool {
	return (c.IsLegendaryCreature() || c.CanBeCommander()) && c.CommanderLegal()
}

// UnifiedImages synthesizes the unified image reference from faces or a
// legacy single URL. Returns nil when the card has no image data at all.
func (c *Card) UnifiedImages() *ImageRef {
	if c.Images != nil {
		return c.Images
	}
	if len(c.Faces) >= 2 {
		ref := &ImageRef{DoubleFaced: true, Front: c.Faces[0].Images, Back: c.Faces[1].Images}
		if ref.Front == nil && c.Faces[0].ImageURL != "" {
			ref.Front = map[string]string{"normal": c.Faces[0].ImageURL}
		}
		if ref.Back == nil && c.Faces[1].ImageURL != "" {
			ref.Back = map[string]string{"normal": c.Faces[1].ImageURL}
		}
		return ref
	}
	if c.LegacyImageURL != "" {
		return &ImageRef{Front: map[string]string{"normal": c.LegacyImageURL}}
	}
	return nil
}
