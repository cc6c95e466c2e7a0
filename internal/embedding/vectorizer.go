// Package embedding implements the deterministic bag-of-words vectorizer
// and cosine scorer used for card similarity.
package embedding

import (
	"math"
	"strings"
	"unicode/utf16"
)

// DefaultDimensions is the fixed vector length used across the whole
// system. Stored embeddings and fresh query embeddings are only
// comparable because D never changes.
const DefaultDimensions = 300

// Vectorizer hashes words into a fixed number of buckets and
// L2-normalizes the counts. For a fixed dimension and hash function the
// output is bit-reproducible across processes, which is what lets stored
// card embeddings be compared against freshly computed query embeddings.
type Vectorizer struct {
	dims int
}

// New creates a vectorizer. dims <= 0 falls back to DefaultDimensions.
func New(dims int) *Vectorizer {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &Vectorizer{dims: dims}
}

// Dimensions returns the fixed vector length.
func (v *Vectorizer) Dimensions() int { return v.dims }

// Embed vectorizes text: lowercase, split on whitespace, hash each word
// into a bucket, count, then L2-normalize. Empty text yields the zero
// vector; Cosine treats a zero vector as "no similarity contribution"
// rather than dividing by zero.
func (v *Vectorizer) Embed(text string) []float32 {
	vec := make([]float32, v.dims)

	for _, word := range strings.Fields(strings.ToLower(text)) {
		vec[v.bucket(word)]++
	}

	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return vec
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec
}

func (v *Vectorizer) bucket(word string) int {
	h := int64(hashWord(word))
	if h < 0 {
		h = -h
	}
	return int(h % int64(v.dims))
}

// hashWord is the classic polynomial rolling hash, h = h*31 + unit,
// truncated to a signed 32-bit integer at every step over UTF-16 code
// units. The truncation is load-bearing: it keeps the hash bounded and
// deterministic, so stored reference vectors never diverge.
func hashWord(word string) int32 {
	var h int32
	for _, u := range utf16.Encode([]rune(word)) {
		h = h*31 + int32(u)
	}
	return h
}

// Cosine returns the cosine similarity of two equal-length vectors.
// ok is false when the lengths differ or either vector has zero norm —
// an absent or empty embedding is a distinct, handled case, never a NaN
// silently corrupting an average.
func Cosine(a, b []float32) (float64, bool) {
	if len(a) != len(b) {
		return 0, false
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), true
}

// EmbedComponents embeds every non-empty component text. The returned
// map's keys are always a subset of the input's keys.
func (v *Vectorizer) EmbedComponents(components map[string]string) map[string][]float32 {
	out := make(map[string][]float32, len(components))
	for key, text := range components {
		if text == "" {
			continue
		}
		out[key] = v.Embed(text)
	}
	return out
}
