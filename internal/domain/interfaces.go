package domain

import (
	"context"
	"errors"
	"fmt"
)

// PageText is the raw text extracted from a single document page.
// Err is set when extraction failed; Text is then ignored.
type PageText struct {
	Text string
	Err  error
}

// Document represents a single source file split into its pages.
type Document struct {
	ID    string
	Pages []PageText
}

// Chunk is a bounded span of normalized page text used for indexing.
type Chunk struct {
	Source string `json:"source"`
	Page   int    `json:"page"`
	Text   string `json:"text"`
}

// ScoredChunk represents a matching chunk with its cosine similarity.
type ScoredChunk struct {
	Chunk
	Score float64 `json:"score"`
}

var (
	// ErrEmptyCorpus is returned when a build produced nothing to index.
	ErrEmptyCorpus = errors.New("empty corpus: no chunks to index")

	// ErrIndexNotFound matches any *IndexNotFoundError.
	ErrIndexNotFound = errors.New("index not found")
)

// IndexNotFoundError reports a missing snapshot file. Callers treat it as
// "retrieval disabled", not as a fatal condition.
type IndexNotFoundError struct {
	Path string
}

func (e *IndexNotFoundError) Error() string {
	return fmt.Sprintf("index not found at %s", e.Path)
}

// Is makes errors.Is(err, ErrIndexNotFound) work.
func (e *IndexNotFoundError) Is(target error) bool {
	return target == ErrIndexNotFound
}

// DocumentReader yields documents with per-page raw text.
type DocumentReader interface {
	ReadDir(ctx context.Context, dir string) ([]Document, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}

// Searcher answers ranked top-k retrieval queries.
type Searcher interface {
	Search(query string, topK int) []ScoredChunk
}
