package chunker

import (
	"strings"

	"kbrag/internal/domain"
)

// DefaultMaxChars is the window size used when none is configured.
const DefaultMaxChars = 900

// PageObserver is notified about pages that produced no chunks.
// err is nil when the page was simply empty.
type PageObserver func(source string, page int, err error)

// Window splits page text into fixed-size, non-overlapping character windows.
type Window struct {
	maxChars int
	observer PageObserver
}

// NewWindow creates a window chunker. Non-positive sizes fall back to DefaultMaxChars.
func NewWindow(maxChars int) *Window {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Window{maxChars: maxChars}
}

// OnSkippedPage registers an observer for skipped pages.
func (w *Window) OnSkippedPage(fn PageObserver) *Window {
	w.observer = fn
	return w
}

// MaxChars returns the configured window size.
func (w *Window) MaxChars() int { return w.maxChars }

// Chunk returns the chunks of a single document in page then window order.
func (w *Window) Chunk(doc domain.Document) []domain.Chunk {
	var chunks []domain.Chunk
	for i, p := range doc.Pages {
		page := i + 1
		if p.Err != nil {
			w.skipped(doc.ID, page, p.Err)
			continue
		}
		text := Normalize(p.Text)
		if text == "" {
			w.skipped(doc.ID, page, nil)
			continue
		}
		for _, window := range split(text, w.maxChars) {
			chunks = append(chunks, domain.Chunk{Source: doc.ID, Page: page, Text: window})
		}
	}
	return chunks
}

// ExtractChunks chunks every document in iteration order.
func (w *Window) ExtractChunks(docs []domain.Document) []domain.Chunk {
	var chunks []domain.Chunk
	for _, d := range docs {
		chunks = append(chunks, w.Chunk(d)...)
	}
	return chunks
}

// ExtractChunks is a shorthand for NewWindow(maxChars).ExtractChunks(docs).
func ExtractChunks(docs []domain.Document, maxChars int) []domain.Chunk {
	return NewWindow(maxChars).ExtractChunks(docs)
}

// Normalize collapses every whitespace run into a single space and trims the result.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func (w *Window) skipped(source string, page int, err error) {
	if w.observer != nil {
		w.observer(source, page, err)
	}
}

// split cuts text into windows of at most size characters. The last window may be shorter.
func split(text string, size int) []string {
	runes := []rune(text)
	out := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}
