package tui

import (
	"strings"

	"kbrag/internal/embedding/tfidf"
)

// queryTerms returns the indexable terms of a query, stop words removed.
func queryTerms(query string) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, t := range tfidf.Tokenize(query) {
		terms[t] = struct{}{}
	}
	return terms
}

// highlightTerms wraps every word of text that is one of terms with mark.
// Matching is case-insensitive; the original casing is preserved.
func highlightTerms(text string, terms map[string]struct{}, mark func(string) string) string {
	if len(terms) == 0 {
		return text
	}
	var b strings.Builder
	last := 0
	for _, loc := range tfidf.WordSpans(text) {
		word := text[loc[0]:loc[1]]
		if _, ok := terms[strings.ToLower(word)]; !ok {
			continue
		}
		b.WriteString(text[last:loc[0]])
		b.WriteString(mark(word))
		last = loc[1]
	}
	b.WriteString(text[last:])
	return b.String()
}
