package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/deckforge/cardindex/internal/domain"
	"github.com/deckforge/cardindex/internal/search"
)

func matchSet(ids ...string) []search.Match {
	out := make([]search.Match, len(ids))
	for i, id := range ids {
		out[i] = search.Match{Card: domain.Card{ID: id}, Similarity: 0.9}
	}
	return out
}

func TestGet_ComputesOnceWithinTTL(t *testing.T) {
	c := New(time.Hour)
	var calls atomic.Int32

	fn := func() ([]search.Match, error) {
		calls.Add(1)
		return matchSet("a"), nil
	}

	for i := 0; i < 3; i++ {
		got, err := c.Get("k", fn)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 1 || got[0].Card.ID != "a" {
			t.Fatalf("unexpected result: %+v", got)
		}
	}
	if calls.Load() != 1 {
		t.Fatalf("expected 1 computation, got %d", calls.Load())
	}
}

func TestGet_RecomputesAfterExpiry(t *testing.T) {
	c := New(time.Hour)
	now := time.Now()
	c.now = func() time.Time { return now }

	var calls atomic.Int32
	fn := func() ([]search.Match, error) {
		calls.Add(1)
		return matchSet("a"), nil
	}

	if _, err := c.Get("k", fn); err != nil {
		t.Fatal(err)
	}
	now = now.Add(2 * time.Hour)
	if _, err := c.Get("k", fn); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected recomputation after expiry, got %d calls", calls.Load())
	}
}

func TestGet_ErrorIsNotCached(t *testing.T) {
	c := New(time.Hour)
	var calls atomic.Int32
	boom := errors.New("boom")

	fail := func() ([]search.Match, error) {
		calls.Add(1)
		return nil, boom
	}
	if _, err := c.Get("k", fail); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	ok := func() ([]search.Match, error) {
		calls.Add(1)
		return matchSet("a"), nil
	}
	if _, err := c.Get("k", ok); err != nil {
		t.Fatalf("unexpected error after failed computation: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("failed computation should not be cached, got %d calls", calls.Load())
	}
}

func TestGet_ConcurrentCallersShareOneComputation(t *testing.T) {
	c := New(time.Hour)
	var calls atomic.Int32
	gate := make(chan struct{})

	fn := func() ([]search.Match, error) {
		calls.Add(1)
		<-gate
		return matchSet("a"), nil
	}

	const workers = 10
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := c.Get("k", fn)
			if err != nil || len(got) != 1 {
				t.Errorf("unexpected result: %v %v", got, err)
			}
		}()
	}

	// Give the goroutines time to pile onto the same key, then release.
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	if calls.Load() != 1 {
		t.Fatalf("expected a single shared computation, got %d", calls.Load())
	}
}

func TestKey_CanonicalAcrossOptionOrder(t *testing.T) {
	optsA := search.Options{Limit: 5, CardType: "creature", ColorIdentity: []string{"W", "G"}}
	optsB := search.Options{CardType: "creature", ColorIdentity: []string{"W", "G"}, Limit: 5}

	if Key("angels", optsA) != Key("angels", optsB) {
		t.Fatal("identical options must produce identical keys")
	}
	if Key("angels", optsA) == Key("demons", optsA) {
		t.Fatal("different queries must produce different keys")
	}
	if Key("angels", optsA) == Key("angels", search.Options{Limit: 10}) {
		t.Fatal("different options must produce different keys")
	}
}

func TestSweep_DropsExpiredEntries(t *testing.T) {
	c := New(time.Hour)
	now := time.Now()
	c.now = func() time.Time { return now }

	fn := func() ([]search.Match, error) { return matchSet("a"), nil }
	if _, err := c.Get("k1", fn); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get("k2", fn); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", c.Len())
	}

	now = now.Add(2 * time.Hour)
	c.sweep()
	if c.Len() != 0 {
		t.Fatalf("expected swept cache, got %d entries", c.Len())
	}
}

func TestPurge(t *testing.T) {
	c := New(time.Hour)
	fn := func() ([]search.Match, error) { return matchSet("a"), nil }
	if _, err := c.Get("k", fn); err != nil {
		t.Fatal(err)
	}
	c.Purge()
	if c.Len() != 0 {
		t.Fatalf("expected empty cache after purge, got %d", c.Len())
	}
}
