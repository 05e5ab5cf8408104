package tfidf

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"kbrag/internal/embedding"
)

const (
	// TokenizerName identifies the frozen tokenization rules in persisted snapshots.
	TokenizerName = "lower-word2"
	// StopWordsName identifies the stop word list in persisted snapshots.
	StopWordsName = "english"
	// WeightingName identifies the weighting scheme in persisted snapshots.
	WeightingName = "tf-smoothidf-l2"
)

var (
	// ErrEmptyCorpus is returned by Fit when no texts are given.
	ErrEmptyCorpus = errors.New("tfidf: empty corpus")
	// ErrNoTerms is returned by Fit when every text tokenizes to nothing.
	ErrNoTerms = errors.New("tfidf: no terms in corpus")
)

// Words of two or more letters, digits or underscores.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// Model is a fitted TF-IDF term-weight model. It is immutable after Fit or
// NewModel and safe for concurrent use.
type Model struct {
	vocabulary map[string]int32
	terms      []string
	idf        []float64
}

// Fit builds the vocabulary and smoothed IDF values from the provided corpus.
// Column order is lexicographic so the result only depends on corpus content.
func Fit(corpus []string) (*Model, error) {
	if len(corpus) == 0 {
		return nil, ErrEmptyCorpus
	}
	df := make(map[string]int)
	for _, text := range corpus {
		seen := make(map[string]struct{})
		for _, tok := range Tokenize(text) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	if len(df) == 0 {
		return nil, ErrNoTerms
	}
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	n := float64(len(corpus))
	idf := make([]float64, len(terms))
	for i, term := range terms {
		idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1.0
	}
	return newModel(terms, idf), nil
}

// NewModel restores a model from its persisted terms and IDF values.
// Terms must be strictly ascending and match idf in length.
func NewModel(terms []string, idf []float64) (*Model, error) {
	if len(terms) != len(idf) {
		return nil, fmt.Errorf("tfidf: %d terms but %d idf values", len(terms), len(idf))
	}
	if len(terms) == 0 {
		return nil, ErrNoTerms
	}
	for i := 1; i < len(terms); i++ {
		if terms[i-1] >= terms[i] {
			return nil, fmt.Errorf("tfidf: terms not strictly ascending at %d (%q >= %q)", i, terms[i-1], terms[i])
		}
	}
	for i, v := range idf {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return nil, fmt.Errorf("tfidf: invalid idf %v for term %q", v, terms[i])
		}
	}
	return newModel(append([]string(nil), terms...), append([]float64(nil), idf...)), nil
}

func newModel(terms []string, idf []float64) *Model {
	vocab := make(map[string]int32, len(terms))
	for i, t := range terms {
		vocab[t] = int32(i)
	}
	return &Model{vocabulary: vocab, terms: terms, idf: idf}
}

// Dimension returns the vocabulary size.
func (m *Model) Dimension() int { return len(m.terms) }

// Terms returns the vocabulary in column order. The slice must not be modified.
func (m *Model) Terms() []string { return m.terms }

// IDF returns the per-column IDF values. The slice must not be modified.
func (m *Model) IDF() []float64 { return m.idf }

// Transform computes the L2-normalized TF-IDF vector of text.
// Terms outside the vocabulary are ignored; a text without known terms
// yields the zero vector.
func (m *Model) Transform(text string) embedding.SparseVector {
	counts := make(map[int32]int)
	for _, tok := range Tokenize(text) {
		if idx, ok := m.vocabulary[tok]; ok {
			counts[idx]++
		}
	}
	if len(counts) == 0 {
		return embedding.SparseVector{}
	}
	indices := make([]int32, 0, len(counts))
	for idx := range counts {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool { return indices[i] < indices[j] })

	v := embedding.SparseVector{Indices: indices, Values: make([]float64, len(indices))}
	for k, idx := range indices {
		v.Values[k] = float64(counts[idx]) * m.idf[idx]
	}
	norm := v.Norm()
	for k := range v.Values {
		v.Values[k] /= norm
	}
	return v
}

// WordSpans returns the byte ranges of the words Tokenize would consider in
// text, stop words included, as [start, end) pairs.
func WordSpans(text string) [][]int {
	return tokenPattern.FindAllStringIndex(text, -1)
}

// Tokenize lowercases text, extracts words of at least two characters and
// drops English stop words.
func Tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	if len(raw) == 0 {
		return nil
	}
	out := raw[:0]
	for _, t := range raw {
		if IsStopWord(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}
