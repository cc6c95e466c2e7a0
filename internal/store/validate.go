package store

import (
	"fmt"
	"strings"

	"github.com/deckforge/cardindex/internal/domain"
)

// ValidationReport summarizes an integrity pass over the corpus.
type ValidationReport struct {
	Total   int
	Valid   int
	Invalid int
	Errors  []*domain.IntegrityError
}

// Validate runs a required-field and shape check over every persisted
// card. Failures are collected into the report, never fatal to the pass.
func (s *Store) Validate() (*ValidationReport, error) {
	report := &ValidationReport{}

	err := s.Walk(func(path string, card *domain.Card) error {
		report.Total++
		if reason := checkCard(card); reason != "" {
			report.Invalid++
			report.Errors = append(report.Errors, &domain.IntegrityError{
				CardID: card.ID,
				Name:   card.Name,
				Reason: reason,
			})
			return nil
		}
		report.Valid++
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("validation walk: %w", err)
	}
	return report, nil
}

func checkCard(c *domain.Card) string {
	var missing []string
	if c.ID == "" {
		missing = append(missing, "id")
	}
	if c.Name == "" {
		missing = append(missing, "name")
	}
	if c.TypeLine == "" {
		missing = append(missing, "type_line")
	}
	if c.ColorIdentity == nil {
		missing = append(missing, "color_identity")
	}
	if len(missing) > 0 {
		return "missing required fields: " + strings.Join(missing, ", ")
	}

	if c.Images == nil && len(c.Faces) == 0 {
		return "missing image reference"
	}
	if len(c.Faces) != 0 && len(c.Faces) != 2 {
		return fmt.Sprintf("invalid card faces: expected 2, got %d", len(c.Faces))
	}
	for key := range c.Embeddings {
		if _, ok := c.Components[key]; !ok {
			return fmt.Sprintf("embedding %q has no matching component", key)
		}
	}
	return ""
}
