package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/deckforge/cardindex/internal/domain"
	"github.com/deckforge/cardindex/internal/embedding"
	"github.com/deckforge/cardindex/internal/scryfall"
)

// fakeFetcher serves a fixed sequence of pages and can inject failures.
type fakeFetcher struct {
	pages    map[string]scryfall.Page
	failOnce map[string]bool
	mu       sync.Mutex
	fetches  int
}

func (f *fakeFetcher) FetchPage(ctx context.Context, pageURL string) (scryfall.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.failOnce[pageURL] {
		f.failOnce[pageURL] = false
		return scryfall.Page{}, fmt.Errorf("%w: injected failure", domain.ErrTransient)
	}
	page, ok := f.pages[pageURL]
	if !ok {
		return scryfall.Page{}, fmt.Errorf("%w: no such page", domain.ErrTransient)
	}
	return page, nil
}

// countingSaver records every saved card ID.
type countingSaver struct {
	mu  sync.Mutex
	ids []string
}

func (s *countingSaver) Save(cards []domain.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range cards {
		s.ids = append(s.ids, cards[i].ID)
	}
	return nil
}

func (s *countingSaver) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

func (s *countingSaver) duplicates() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	var dups []string
	for _, id := range s.ids {
		if seen[id] {
			dups = append(dups, id)
		}
		seen[id] = true
	}
	return dups
}

// threePages builds pages of 100, 100 and 50 cards.
func threePages() map[string]scryfall.Page {
	makeCards := func(page, n int) []scryfall.Card {
		cards := make([]scryfall.Card, n)
		for i := range cards {
			cards[i] = scryfall.Card{
				ID:       fmt.Sprintf("p%d-c%d", page, i),
				Name:     fmt.Sprintf("Card %d-%d", page, i),
				TypeLine: "Creature — Test",
			}
		}
		return cards
	}
	return map[string]scryfall.Page{
		"p1": {Data: makeCards(1, 100), HasMore: true, NextPage: "p2"},
		"p2": {Data: makeCards(2, 100), HasMore: true, NextPage: "p3"},
		"p3": {Data: makeCards(3, 50), HasMore: false},
	}
}

func testPipeline(t *testing.T, fetcher *fakeFetcher, saver *countingSaver, progressPath string) *Pipeline {
	t.Helper()
	return New(Config{
		Fetcher:      fetcher,
		Saver:        saver,
		FirstPageURL: "p1",
		ProgressPath: progressPath,
		ErrorBackoff: time.Millisecond,
		Logger:       zap.NewNop(),
	})
}

func TestRun_FullIngestion(t *testing.T) {
	fetcher := &fakeFetcher{pages: threePages()}
	saver := &countingSaver{}
	progressPath := filepath.Join(t.TempDir(), "progress.json")

	result, err := testPipeline(t, fetcher, saver, progressPath).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Pages != 3 || result.Cards != 250 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if saver.count() != 250 {
		t.Fatalf("expected 250 saved cards, got %d", saver.count())
	}
	if _, err := os.Stat(progressPath); !os.IsNotExist(err) {
		t.Fatal("progress file should be removed after a full run")
	}
}

func TestRun_ResumeSkipsCompletedPages(t *testing.T) {
	progressPath := filepath.Join(t.TempDir(), "progress.json")
	writeProgress(t, progressPath, Progress{Page: 1, Offset: 0, TotalCards: 100})

	fetcher := &fakeFetcher{pages: threePages()}
	saver := &countingSaver{}

	result, err := testPipeline(t, fetcher, saver, progressPath).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Skipped != 100 {
		t.Fatalf("expected 100 skipped cards, got %d", result.Skipped)
	}
	if saver.count() != 150 {
		t.Fatalf("expected 150 saved cards, got %d", saver.count())
	}
	for _, id := range saver.ids {
		if id[:2] == "p1" {
			t.Fatalf("page 1 card %s should not have been re-saved", id)
		}
	}
}

func TestRun_ResumeMidPageOffset(t *testing.T) {
	progressPath := filepath.Join(t.TempDir(), "progress.json")
	writeProgress(t, progressPath, Progress{Page: 1, Offset: 75, TotalCards: 175})

	fetcher := &fakeFetcher{pages: threePages()}
	saver := &countingSaver{}

	result, err := testPipeline(t, fetcher, saver, progressPath).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Page 1 fully skipped, first 75 of page 2 skipped.
	if result.Skipped != 175 {
		t.Fatalf("expected 175 skipped cards, got %d", result.Skipped)
	}
	if saver.count() != 75 {
		t.Fatalf("expected 75 saved cards, got %d", saver.count())
	}
}

func TestRun_RetriesFailedPageWithoutDuplicates(t *testing.T) {
	fetcher := &fakeFetcher{
		pages:    threePages(),
		failOnce: map[string]bool{"p2": true},
	}
	saver := &countingSaver{}
	progressPath := filepath.Join(t.TempDir(), "progress.json")

	result, err := testPipeline(t, fetcher, saver, progressPath).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Cards != 250 {
		t.Fatalf("expected 250 cards, got %d", result.Cards)
	}
	if dups := saver.duplicates(); len(dups) > 0 {
		t.Fatalf("retried page produced duplicates: %v", dups)
	}
}

func TestRun_AbortsAfterErrorBudget(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]scryfall.Page{}} // every fetch fails
	saver := &countingSaver{}
	progressPath := filepath.Join(t.TempDir(), "progress.json")

	_, err := testPipeline(t, fetcher, saver, progressPath).Run(context.Background())
	if !errors.Is(err, domain.ErrIngestAborted) {
		t.Fatalf("expected ErrIngestAborted, got %v", err)
	}
	if fetcher.fetches != 5 {
		t.Fatalf("expected 5 attempts before abort, got %d", fetcher.fetches)
	}
}

func TestRun_ContextCancellation(t *testing.T) {
	fetcher := &fakeFetcher{pages: threePages()}
	saver := &countingSaver{}
	progressPath := filepath.Join(t.TempDir(), "progress.json")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := testPipeline(t, fetcher, saver, progressPath).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if saver.count() != 0 {
		t.Fatalf("no cards should be saved after pre-cancellation, got %d", saver.count())
	}
}

func TestNormalize_DoubleFacedCard(t *testing.T) {
	raw := scryfall.Card{
		ID:       "dfc-1",
		Name:     "Delver of Secrets // Insectile Aberration",
		TypeLine: "Creature — Human Wizard // Creature — Human Insect",
		CardFaces: []scryfall.CardFace{
			{
				Name:       "Delver of Secrets",
				ManaCost:   "{U}",
				OracleText: "At the beginning of your upkeep, look at the top card.",
				ImageURIs:  map[string]string{"normal": "front.jpg"},
			},
			{
				Name:       "Insectile Aberration",
				OracleText: "Flying",
				ImageURIs:  map[string]string{"normal": "back.jpg"},
			},
		},
	}

	card := normalize(&raw, embedding.New(0))

	if card.ManaCost != "{U}" {
		t.Errorf("expected first face's mana cost, got %q", card.ManaCost)
	}
	if card.OracleText != "At the beginning of your upkeep, look at the top card.\n\nFlying" {
		t.Errorf("unexpected joined oracle text: %q", card.OracleText)
	}
	if card.Images == nil || !card.Images.DoubleFaced {
		t.Fatal("expected double-faced image reference")
	}
	if card.Images.Front["normal"] != "front.jpg" || card.Images.Back["normal"] != "back.jpg" {
		t.Errorf("unexpected images: %+v", card.Images)
	}
}

func TestNormalize_DerivesComponentsAndEmbeddings(t *testing.T) {
	raw := scryfall.Card{
		ID:       "c1",
		Name:     "Serra Angel",
		TypeLine: "Creature — Angel",
		ManaCost: "{3}{W}{W}",
		Keywords: []string{"Flying", "Vigilance"},
	}

	card := normalize(&raw, embedding.New(0))

	if card.Components[domain.ComponentName] != "Serra Angel" {
		t.Errorf("unexpected name component: %q", card.Components[domain.ComponentName])
	}
	if _, ok := card.Embeddings[domain.ComponentName]; !ok {
		t.Error("expected embedding for name component")
	}
	// No oracle text, so no abilities embedding.
	if _, ok := card.Embeddings[domain.ComponentAbilities]; ok {
		t.Error("empty abilities should not be embedded")
	}
	if card.Colors == nil || card.ColorIdentity == nil {
		t.Error("nil slices should be normalized to empty")
	}
}

func TestTracker_SaveCadenceAndClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")
	tr, err := newTracker(path, 100, zap.NewNop())
	if err != nil {
		t.Fatalf("newTracker: %v", err)
	}

	// 50 cards in: below the boundary, nothing saved yet.
	tr.Advance(0, 50, 50)
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("progress should not be saved before crossing the boundary")
	}

	// 110 cards in: crossed 100, must be on disk.
	tr.Advance(0, 110, 60)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected progress file: %v", err)
	}
	var p Progress
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("parse progress: %v", err)
	}
	if p.TotalCards != 110 || p.Offset != 110 {
		t.Fatalf("unexpected saved progress: %+v", p)
	}

	tr.PageDone(1)
	data, _ = os.ReadFile(path)
	_ = json.Unmarshal(data, &p)
	if p.Page != 1 || p.Offset != 0 {
		t.Fatalf("unexpected progress after PageDone: %+v", p)
	}

	if err := tr.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("progress file should be removed by Clear")
	}
}

func TestTracker_ResumesFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "progress.json")
	writeProgress(t, path, Progress{Page: 2, Offset: 30, TotalCards: 230})

	tr, err := newTracker(path, 100, zap.NewNop())
	if err != nil {
		t.Fatalf("newTracker: %v", err)
	}
	got := tr.Get()
	if got.Page != 2 || got.Offset != 30 || got.TotalCards != 230 {
		t.Fatalf("unexpected resumed progress: %+v", got)
	}
}

func writeProgress(t *testing.T, path string, p Progress) {
	t.Helper()
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
}
