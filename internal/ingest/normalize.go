package ingest

import (
	"strings"

	"github.com/deckforge/cardindex/internal/domain"
	"github.com/deckforge/cardindex/internal/embedding"
	"github.com/deckforge/cardindex/internal/scryfall"
)

// normalize converts a raw API record into a stored card: oracle text
// and mana cost for double-faced cards come from the faces (texts joined
// with a blank line, cost from the first face), the unified image
// reference is synthesized, and components plus embeddings are derived.
func normalize(raw *scryfall.Card, vec *embedding.Vectorizer) domain.Card {
	card := domain.Card{
		ID:              raw.ID,
		Name:            raw.Name,
		TypeLine:        raw.TypeLine,
		OracleText:      raw.OracleText,
		ManaCost:        raw.ManaCost,
		CMC:             raw.CMC,
		Colors:          orEmpty(raw.Colors),
		ColorIdentity:   orEmpty(raw.ColorIdentity),
		Keywords:        orEmpty(raw.Keywords),
		Power:           raw.Power,
		Toughness:       raw.Toughness,
		Loyalty:         raw.Loyalty,
		Rarity:          raw.Rarity,
		Set:             raw.Set,
		SetName:         raw.SetName,
		CollectorNumber: raw.CollectorNumber,
		ScryfallURI:     raw.ScryfallURI,
		Prices:          raw.Prices,
		Legalities:      raw.Legalities,
		EDHRECRank:      raw.EDHRECRank,
	}

	for _, f := range raw.CardFaces {
		card.Faces = append(card.Faces, domain.Face{
			Name:       f.Name,
			TypeLine:   f.TypeLine,
			ManaCost:   f.ManaCost,
			OracleText: f.OracleText,
			Images:     f.ImageURIs,
			ImageURL:   f.ImageURL,
		})
	}

	// A two-faced card has no single oracle text field: its text is the
	// faces' texts joined, its cost the first face's cost.
	if card.OracleText == "" && len(card.Faces) > 0 {
		texts := make([]string, 0, len(card.Faces))
		for _, f := range card.Faces {
			texts = append(texts, f.OracleText)
		}
		card.OracleText = strings.Join(texts, "\n\n")
	}
	if card.ManaCost == "" && len(card.Faces) > 0 {
		card.ManaCost = card.Faces[0].ManaCost
	}

	card.Images = unifiedImages(raw)
	card.Components = domain.BreakdownCard(&card)
	card.Embeddings = vec.EmbedComponents(card.Components)
	return card
}

func unifiedImages(raw *scryfall.Card) *domain.ImageRef {
	if len(raw.CardFaces) >= 2 {
		return &domain.ImageRef{
			DoubleFaced: true,
			Front:       faceImages(&raw.CardFaces[0]),
			Back:        faceImages(&raw.CardFaces[1]),
		}
	}
	if raw.ImageURIs != nil {
		return &domain.ImageRef{Front: raw.ImageURIs}
	}
	if raw.ImageURL != "" {
		return &domain.ImageRef{Front: map[string]string{"normal": raw.ImageURL}}
	}
	return &domain.ImageRef{}
}

func faceImages(f *scryfall.CardFace) map[string]string {
	if f.ImageURIs != nil {
		return f.ImageURIs
	}
	if f.ImageURL != "" {
		return map[string]string{"normal": f.ImageURL}
	}
	return nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
