// Package textindex implements the term weighting shared by the retriever and
// the query classifier.
package textindex

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// SparseVector holds non-zero weights ordered by term index.
type SparseVector struct {
	Indices []int
	Values  []float64
}

func (v SparseVector) Len() int { return len(v.Indices) }

// Dot multiplies two sparse vectors whose indices are sorted.
func (v SparseVector) Dot(other SparseVector) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(v.Indices) && j < len(other.Indices) {
		switch {
		case v.Indices[i] == other.Indices[j]:
			sum += v.Values[i] * other.Values[j]
			i++
			j++
		case v.Indices[i] < other.Indices[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// DotDense multiplies v with a dense weight row.
func (v SparseVector) DotDense(weights []float64) float64 {
	var sum float64
	for k, idx := range v.Indices {
		if idx < len(weights) {
			sum += v.Values[k] * weights[idx]
		}
	}
	return sum
}

// Vectorizer maps text to L2-normalized tf-idf vectors over a vocabulary
// fixed at fit time. Terms are runs of at least two word characters; idf is
// smoothed as ln((1+n)/(1+df)) + 1.
type Vectorizer struct {
	vocabulary map[string]int
	idf        []float64
}

// Fit learns the vocabulary and idf weights of texts.
func Fit(texts []string) *Vectorizer {
	df := make(map[string]int)
	for _, text := range texts {
		seen := make(map[string]struct{})
		for _, term := range Tokenize(text) {
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			df[term]++
		}
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	n := float64(len(texts))
	v := &Vectorizer{
		vocabulary: make(map[string]int, len(terms)),
		idf:        make([]float64, len(terms)),
	}
	for i, term := range terms {
		v.vocabulary[term] = i
		v.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	return v
}

// FitTransform fits on texts and returns one vector per text, index-aligned.
func FitTransform(texts []string) (*Vectorizer, []SparseVector) {
	v := Fit(texts)
	out := make([]SparseVector, len(texts))
	for i, text := range texts {
		out[i] = v.Transform(text)
	}
	return v, out
}

// Dimension is the vocabulary size.
func (v *Vectorizer) Dimension() int { return len(v.idf) }

// Transform projects text into the fitted space. Unknown terms are ignored.
func (v *Vectorizer) Transform(text string) SparseVector {
	counts := make(map[int]float64)
	for _, term := range Tokenize(text) {
		if idx, ok := v.vocabulary[term]; ok {
			counts[idx]++
		}
	}
	if len(counts) == 0 {
		return SparseVector{}
	}

	indices := make([]int, 0, len(counts))
	for idx := range counts {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	values := make([]float64, len(indices))
	var norm float64
	for k, idx := range indices {
		w := counts[idx] * v.idf[idx]
		values[k] = w
		norm += w * w
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for k := range values {
			values[k] /= norm
		}
	}
	return SparseVector{Indices: indices, Values: values}
}

// Tokenize lowercases text and returns its word runs of two or more
// characters. Letters, digits and underscore are word characters.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	out := make([]string, 0, 16)
	var b strings.Builder
	flush := func() {
		if utf8.RuneCountInString(b.String()) >= 2 {
			out = append(out, b.String())
		}
		b.Reset()
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsNumber(r) || r == '_' {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		if b.Len() > 0 {
			flush()
		}
	}
	if b.Len() > 0 {
		flush()
	}
	return out
}

// Normalize trims, lowercases and collapses runs of whitespace to one space.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}
