// Package store persists the card corpus as human-browsable JSON shards:
// one directory per color-identity key, one per primary type, one file
// per card named by its identifier.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/deckforge/cardindex/internal/domain"
)

// progressFile sits at the corpus root while an ingestion run is
// incomplete; its absence means "corpus complete or never started".
const progressFile = "progress.json"

// colorCombos is every color-identity shard key, pre-created by Init so
// a fresh corpus directory is browsable before the first ingest.
var colorCombos = []string{
	"W", "U", "B", "R", "G",
	"WU", "WB", "WR", "WG",
	"UB", "UR", "UG",
	"BR", "BG",
	"RG",
	"WUB", "WUR", "WUG",
	"WBR", "WBG", "WRG",
	"UBR", "UBG", "URG",
	"BRG",
	"WUBR", "WUBG", "WURG", "WBRG", "UBRG",
	"WUBRG",
	domain.ColorlessKey,
}

// Store reads and writes the on-disk corpus under a root directory.
type Store struct {
	root   string
	logger *zap.Logger
}

// New creates a store rooted at dir.
func New(dir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{root: dir, logger: logger}
}

// Root returns the corpus root directory.
func (s *Store) Root() string { return s.root }

// ProgressPath returns the location of the ingestion progress file.
func (s *Store) ProgressPath() string { return filepath.Join(s.root, progressFile) }

// Init pre-creates the corpus root and every color-identity shard
// directory, and writes an empty progress file.
func (s *Store) Init() error {
	for _, combo := range colorCombos {
		if err := os.MkdirAll(filepath.Join(s.root, combo), 0o750); err != nil {
			return fmt.Errorf("create shard dir %s: %w", combo, err)
		}
	}
	empty, err := json.MarshalIndent(map[string]any{
		"page": 0, "offset": 0, "total_cards": 0,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	if err := os.WriteFile(s.ProgressPath(), empty, 0o600); err != nil {
		return fmt.Errorf("write progress: %w", err)
	}
	return nil
}

// cardPath derives the shard path for a card: color key, then the
// lowercased primary type, then "<id>.json".
func (s *Store) cardPath(c *domain.Card) string {
	return filepath.Join(
		s.root,
		c.ColorKey(),
		strings.ToLower(c.PrimaryType()),
		c.ID+".json",
	)
}

// Save writes one JSON file per card, creating shard directories as
// needed. Cards in the same batch that share a shard reuse its directory.
func (s *Store) Save(cards []domain.Card) error {
	made := make(map[string]struct{})
	for i := range cards {
		path := s.cardPath(&cards[i])
		dir := filepath.Dir(path)
		if _, ok := made[dir]; !ok {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return fmt.Errorf("create shard dir: %w", err)
			}
			made[dir] = struct{}{}
		}

		data, err := json.MarshalIndent(&cards[i], "", "  ")
		if err != nil {
			return fmt.Errorf("marshal card %s: %w", cards[i].ID, err)
		}
		if err := os.WriteFile(path, data, 0o600); err != nil {
			return fmt.Errorf("write card %s: %w", cards[i].ID, err)
		}
	}
	return nil
}

// Load walks the two-level shard tree and parses every card file.
// Cards missing a unified image reference get one synthesized from
// faces or a legacy single URL. Returns domain.ErrCorpusNotFound when
// the root directory is absent.
func (s *Store) Load() (map[string]domain.Card, error) {
	if _, err := os.Stat(s.root); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", domain.ErrCorpusNotFound, s.root)
		}
		return nil, fmt.Errorf("stat corpus root: %w", err)
	}

	cards := make(map[string]domain.Card)
	err := s.Walk(func(path string, card *domain.Card) error {
		cards[card.ID] = *card
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Loaded card corpus", zap.Int("cards", len(cards)), zap.String("dir", s.root))
	return cards, nil
}

// Walk visits every card file under the shard tree, parsing each into a
// card (with the unified image reference synthesized) before invoking fn
// with the file path. Used by Load, the validation pass, and the tag
// enrichment utility.
func (s *Store) Walk(fn func(path string, card *domain.Card) error) error {
	colorDirs, err := os.ReadDir(s.root)
	if err != nil {
		return fmt.Errorf("read corpus root: %w", err)
	}

	for _, colorDir := range colorDirs {
		if !colorDir.IsDir() {
			continue
		}
		colorPath := filepath.Join(s.root, colorDir.Name())
		typeDirs, err := os.ReadDir(colorPath)
		if err != nil {
			return fmt.Errorf("read shard %s: %w", colorDir.Name(), err)
		}

		for _, typeDir := range typeDirs {
			if !typeDir.IsDir() {
				continue
			}
			typePath := filepath.Join(colorPath, typeDir.Name())
			files, err := os.ReadDir(typePath)
			if err != nil {
				return fmt.Errorf("read shard %s/%s: %w", colorDir.Name(), typeDir.Name(), err)
			}

			for _, f := range files {
				if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
					continue
				}
				path := filepath.Join(typePath, f.Name())
				card, err := readCard(path)
				if err != nil {
					return err
				}
				if err := fn(path, card); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func readCard(path string) (*domain.Card, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read card file %s: %w", path, err)
	}
	var card domain.Card
	if err := json.Unmarshal(data, &card); err != nil {
		return nil, fmt.Errorf("parse card file %s: %w", path, err)
	}
	if card.Images == nil {
		card.Images = card.UnifiedImages()
	}
	return &card, nil
}

// Rewrite overwrites a single card file in place. Used by the tag
// enrichment utility, the only writer after ingestion.
func (s *Store) Rewrite(path string, card *domain.Card) error {
	data, err := json.MarshalIndent(card, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal card %s: %w", card.ID, err)
	}
	if err := os.WriteFile(filepath.Clean(path), data, 0o600); err != nil {
		return fmt.Errorf("rewrite card %s: %w", card.ID, err)
	}
	return nil
}

// RemoveProgress deletes the progress file. Missing file is not an error.
func (s *Store) RemoveProgress() error {
	if err := os.Remove(s.ProgressPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove progress file: %w", err)
	}
	return nil
}
