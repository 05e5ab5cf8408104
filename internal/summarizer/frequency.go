// Package summarizer builds short extractive digests of the indexed corpus.
package summarizer

import (
	"cmp"
	"math"
	"regexp"
	"slices"
	"strings"

	"kbrag/internal/domain"
	"kbrag/internal/embedding/tfidf"
)

// DefaultMaxSentences is used when a caller asks for zero or fewer sentences.
const DefaultMaxSentences = 5

var sentenceEnd = regexp.MustCompile(`[^.!?]+[.!?]`)

// FrequencySummarizer picks the sentences whose terms recur most across the
// text. It tokenizes with the index tokenizer, so stop words never count.
type FrequencySummarizer struct{}

var _ domain.Summarizer = (*FrequencySummarizer)(nil)

// NewFrequencySummarizer returns a FrequencySummarizer.
func NewFrequencySummarizer() *FrequencySummarizer {
	return &FrequencySummarizer{}
}

type sentence struct {
	pos   int
	text  string
	terms []string
	score float64
}

// Summarize returns at most maxSentences sentences of text, in the order they
// appear. Text without sentence punctuation is returned trimmed.
func (s *FrequencySummarizer) Summarize(text string, maxSentences int) (string, error) {
	if maxSentences <= 0 {
		maxSentences = DefaultMaxSentences
	}
	sents := split(text)
	if len(sents) == 0 {
		return strings.TrimSpace(text), nil
	}

	weights := termWeights(sents)
	for i := range sents {
		sents[i].score = score(sents[i].terms, weights)
	}

	ranked := slices.Clone(sents)
	slices.SortStableFunc(ranked, func(a, b sentence) int { return cmp.Compare(b.score, a.score) })
	picked := ranked[:min(maxSentences, len(ranked))]
	slices.SortFunc(picked, func(a, b sentence) int { return cmp.Compare(a.pos, b.pos) })

	out := make([]string, len(picked))
	for i, p := range picked {
		out[i] = p.text
	}
	return strings.Join(out, " "), nil
}

func split(text string) []sentence {
	raw := sentenceEnd.FindAllString(text, -1)
	out := make([]sentence, 0, len(raw))
	for i, r := range raw {
		out = append(out, sentence{pos: i, text: strings.TrimSpace(r), terms: tfidf.Tokenize(r)})
	}
	return out
}

// termWeights maps each term to its count scaled by the most frequent term.
func termWeights(sents []sentence) map[string]float64 {
	counts := make(map[string]float64)
	var top float64
	for _, s := range sents {
		for _, t := range s.terms {
			counts[t]++
			top = max(top, counts[t])
		}
	}
	if top > 0 {
		for t := range counts {
			counts[t] /= top
		}
	}
	return counts
}

// score damps long sentences by the square root of their term count.
func score(terms []string, weights map[string]float64) float64 {
	if len(terms) == 0 {
		return 0
	}
	var sum float64
	for _, t := range terms {
		sum += weights[t]
	}
	return sum / math.Sqrt(float64(len(terms)))
}
