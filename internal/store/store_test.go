package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/deckforge/cardindex/internal/domain"
)

func testCard(id, name, typeLine string, identity []string) domain.Card {
	return domain.Card{
		ID:            id,
		Name:          name,
		TypeLine:      typeLine,
		ColorIdentity: identity,
		Images:        &domain.ImageRef{Front: map[string]string{"normal": name + ".jpg"}},
		Components:    domain.Components{"name": name},
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	s := New(t.TempDir(), nil)

	cards := []domain.Card{
		testCard("abc-1", "Serra Angel", "Creature — Angel", []string{"W"}),
		testCard("abc-2", "Llanowar Elves", "Creature — Elf Druid", []string{"G"}),
		testCard("abc-3", "Sol Ring", "Artifact", nil),
	}
	if err := s.Save(cards); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(loaded) != 3 {
		t.Fatalf("expected 3 cards, got %d", len(loaded))
	}
	if loaded["abc-1"].Name != "Serra Angel" {
		t.Errorf("unexpected card: %+v", loaded["abc-1"])
	}
}

func TestSave_ShardLayout(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)

	card := testCard("xyz-9", "Llanowar Elves", "Creature — Elf Druid", []string{"G"})
	if err := s.Save([]domain.Card{card}); err != nil {
		t.Fatalf("save: %v", err)
	}

	want := filepath.Join(dir, "G", "creature", "xyz-9.json")
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("expected card file at %s: %v", want, err)
	}
}

func TestSave_ColorlessShard(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)

	card := testCard("art-1", "Sol Ring", "Artifact", []string{})
	if err := s.Save([]domain.Card{card}); err != nil {
		t.Fatalf("save: %v", err)
	}

	want := filepath.Join(dir, domain.ColorlessKey, "artifact", "art-1.json")
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("expected card file at %s: %v", want, err)
	}
}

func TestLoad_MissingRoot(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "does-not-exist"), nil)

	_, err := s.Load()
	if !errors.Is(err, domain.ErrCorpusNotFound) {
		t.Fatalf("expected ErrCorpusNotFound, got %v", err)
	}
}

func TestLoad_SynthesizesImages(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)

	card := testCard("leg-1", "Old Card", "Sorcery", nil)
	card.Images = nil
	card.LegacyImageURL = "old.jpg"
	if err := s.Save([]domain.Card{card}); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got := loaded["leg-1"]
	if got.Images == nil || got.Images.Front["normal"] != "old.jpg" {
		t.Fatalf("expected synthesized image reference, got %+v", got.Images)
	}
}

func TestInit_CreatesShardsAndProgress(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, nil)

	if err := s.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}

	for _, combo := range []string{"W", "WUBRG", domain.ColorlessKey} {
		if _, err := os.Stat(filepath.Join(dir, combo)); err != nil {
			t.Errorf("expected shard dir %s: %v", combo, err)
		}
	}
	if _, err := os.Stat(s.ProgressPath()); err != nil {
		t.Errorf("expected progress file: %v", err)
	}
}

func TestRemoveProgress_MissingIsNotError(t *testing.T) {
	s := New(t.TempDir(), nil)
	if err := s.RemoveProgress(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_ReportsInvalidCards(t *testing.T) {
	s := New(t.TempDir(), nil)

	good := testCard("ok-1", "Serra Angel", "Creature — Angel", []string{"W"})
	bad := testCard("bad-1", "", "Creature", []string{"R"})
	if err := s.Save([]domain.Card{good, bad}); err != nil {
		t.Fatalf("save: %v", err)
	}

	report, err := s.Validate()
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if report.Total != 2 || report.Valid != 1 || report.Invalid != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(report.Errors) != 1 || report.Errors[0].CardID != "bad-1" {
		t.Fatalf("unexpected errors: %+v", report.Errors)
	}
}

func TestValidate_EmbeddingWithoutComponent(t *testing.T) {
	s := New(t.TempDir(), nil)

	card := testCard("emb-1", "Weird", "Creature — Weird", []string{"U"})
	card.Embeddings = map[string][]float32{"ghost": {1, 0}}
	if err := s.Save([]domain.Card{card}); err != nil {
		t.Fatalf("save: %v", err)
	}

	report, err := s.Validate()
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if report.Invalid != 1 {
		t.Fatalf("expected 1 invalid card, got %+v", report)
	}
}

func TestRewrite_UpdatesFileInPlace(t *testing.T) {
	s := New(t.TempDir(), nil)

	card := testCard("tag-1", "Tagged", "Creature — Human", []string{"W"})
	if err := s.Save([]domain.Card{card}); err != nil {
		t.Fatalf("save: %v", err)
	}

	err := s.Walk(func(path string, c *domain.Card) error {
		c.Tags = map[string][]string{"themes": {"lifegain"}}
		return s.Rewrite(path, c)
	})
	if err != nil {
		t.Fatalf("walk: %v", err)
	}

	loaded, err := s.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := loaded["tag-1"].Tags["themes"]; len(got) != 1 || got[0] != "lifegain" {
		t.Fatalf("expected rewritten tags, got %+v", loaded["tag-1"].Tags)
	}
}
