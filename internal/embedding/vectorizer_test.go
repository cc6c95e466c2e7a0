package embedding

import (
	"math"
	"testing"
)

func TestEmbed_Deterministic(t *testing.T) {
	v := New(0)

	a := v.Embed("flying lifelink angel")
	b := v.Embed("flying lifelink angel")

	if len(a) != DefaultDimensions {
		t.Fatalf("expected %d dimensions, got %d", DefaultDimensions, len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vectors differ at index %d: %v != %v", i, a[i], b[i])
		}
	}
}

func TestEmbed_CaseInsensitive(t *testing.T) {
	v := New(0)

	a := v.Embed("Flying Lifelink")
	b := v.Embed("flying lifelink")

	for i := range a {
		if a[i] != b[i] {
			t.Fatal("case should not affect the embedding")
		}
	}
}

func TestEmbed_Normalized(t *testing.T) {
	v := New(0)
	vec := v.Embed("draw a card then discard a card")

	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	if math.Abs(math.Sqrt(sum)-1) > 1e-6 {
		t.Fatalf("expected unit norm, got %v", math.Sqrt(sum))
	}
}

func TestEmbed_EmptyTextYieldsZeroVector(t *testing.T) {
	v := New(0)
	vec := v.Embed("")

	if len(vec) != DefaultDimensions {
		t.Fatalf("expected %d dimensions, got %d", DefaultDimensions, len(vec))
	}
	for i, x := range vec {
		if x != 0 {
			t.Fatalf("expected zero vector, got %v at index %d", x, i)
		}
	}
}

func TestCosine_SelfSimilarity(t *testing.T) {
	v := New(0)
	vec := v.Embed("sacrifice a creature")

	sim, ok := Cosine(vec, vec)
	if !ok {
		t.Fatal("expected ok for non-zero vector")
	}
	if math.Abs(sim-1) > 1e-6 {
		t.Fatalf("expected self-similarity 1, got %v", sim)
	}
}

func TestCosine_Symmetric(t *testing.T) {
	v := New(0)
	a := v.Embed("destroy target creature")
	b := v.Embed("exile target artifact")

	ab, okA := Cosine(a, b)
	ba, okB := Cosine(b, a)
	if !okA || !okB {
		t.Fatal("expected ok for non-zero vectors")
	}
	if ab != ba {
		t.Fatalf("cosine not symmetric: %v != %v", ab, ba)
	}
}

func TestCosine_ZeroVectorNotOK(t *testing.T) {
	v := New(0)
	zero := v.Embed("")
	nonZero := v.Embed("flying")

	if _, ok := Cosine(zero, nonZero); ok {
		t.Fatal("expected not ok for zero vector")
	}
	if _, ok := Cosine(nonZero, zero); ok {
		t.Fatal("expected not ok for zero vector")
	}
}

func TestCosine_LengthMismatchNotOK(t *testing.T) {
	if _, ok := Cosine([]float32{1, 0}, []float32{1, 0, 0}); ok {
		t.Fatal("expected not ok for mismatched lengths")
	}
}

func TestCosine_RelatedTextScoresHigher(t *testing.T) {
	v := New(0)
	query := v.Embed("flying lifelink angel")
	related := v.Embed("angel with flying and lifelink")
	unrelated := v.Embed("sacrifice a goblin deal damage")

	simRelated, _ := Cosine(query, related)
	simUnrelated, _ := Cosine(query, unrelated)
	if simRelated <= simUnrelated {
		t.Fatalf("related text should score higher: %v <= %v", simRelated, simUnrelated)
	}
}

func TestHashWord_KnownValues(t *testing.T) {
	// Polynomial hash with int32 truncation per step.
	tests := []struct {
		word string
		want int32
	}{
		{"", 0},
		{"a", 97},
		{"ab", 97*31 + 98},
	}
	for _, tt := range tests {
		if got := hashWord(tt.word); got != tt.want {
			t.Errorf("hashWord(%q) = %d, want %d", tt.word, got, tt.want)
		}
	}
}

func TestHashWord_OverflowWraps(t *testing.T) {
	// Long words must overflow int32 and stay in range after wraparound.
	h := hashWord("indestructible")
	if int64(h) > math.MaxInt32 || int64(h) < math.MinInt32 {
		t.Fatalf("hash out of int32 range: %d", h)
	}

	v := New(0)
	b := v.bucket("indestructible")
	if b < 0 || b >= DefaultDimensions {
		t.Fatalf("bucket out of range: %d", b)
	}
}

func TestEmbedComponents_SkipsEmpty(t *testing.T) {
	v := New(0)
	out := v.EmbedComponents(map[string]string{
		"name":  "Serra Angel",
		"stats": "",
	})

	if _, ok := out["name"]; !ok {
		t.Fatal("expected embedding for non-empty component")
	}
	if _, ok := out["stats"]; ok {
		t.Fatal("empty component should not be embedded")
	}
}
