// Package index builds and queries the lexical retrieval index: a TF-IDF
// term-weight model plus one L2-normalized vector per chunk.
//
// A Snapshot is immutable once built or loaded, so Search may be called
// from any number of goroutines without locking.
package index

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"kbrag/internal/domain"
	"kbrag/internal/embedding"
	"kbrag/internal/embedding/tfidf"
	"kbrag/internal/vectorstore/memory"
	"kbrag/internal/vectorstore/sqlite"
)

// DefaultTopK is used when a non-positive topK is requested.
const DefaultTopK = 3

// Snapshot is the (chunks, model, matrix) triple. Row i of the matrix
// belongs to chunk i.
type Snapshot struct {
	model  *tfidf.Model
	matrix *memory.Storage
}

// Build fits the term-weight model over chunks and vectorizes every chunk.
// It returns domain.ErrEmptyCorpus when there is nothing to index.
func Build(chunks []domain.Chunk) (*Snapshot, error) {
	if len(chunks) == 0 {
		return nil, domain.ErrEmptyCorpus
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	model, err := tfidf.Fit(texts)
	if err != nil {
		if errors.Is(err, tfidf.ErrNoTerms) {
			return nil, fmt.Errorf("%w: %v", domain.ErrEmptyCorpus, err)
		}
		return nil, fmt.Errorf("fit term weights: %w", err)
	}
	vectors := make([]embedding.SparseVector, len(texts))
	for i, text := range texts {
		vectors[i] = model.Transform(text)
	}
	matrix, err := memory.NewStorage(model.Dimension(), chunks, vectors)
	if err != nil {
		return nil, fmt.Errorf("build matrix: %w", err)
	}
	return &Snapshot{model: model, matrix: matrix}, nil
}

// Search ranks the snapshot's chunks against query. A nil snapshot or a
// blank query yields no results.
func Search(snap *Snapshot, query string, topK int) []domain.ScoredChunk {
	if snap == nil {
		return nil
	}
	return snap.Search(query, topK)
}

// Search returns up to topK chunks by descending cosine similarity; equal
// scores keep corpus order. Query terms unknown to the model are ignored.
func (s *Snapshot) Search(query string, topK int) []domain.ScoredChunk {
	if s == nil || strings.TrimSpace(query) == "" {
		return nil
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	return s.matrix.Search(s.model.Transform(query), topK)
}

// Len returns the number of chunks.
func (s *Snapshot) Len() int { return s.matrix.Len() }

// VocabSize returns the number of terms in the model.
func (s *Snapshot) VocabSize() int { return s.model.Dimension() }

// Chunks returns a copy of the chunk list in row order.
func (s *Snapshot) Chunks() []domain.Chunk {
	out := make([]domain.Chunk, s.matrix.Len())
	for i := range out {
		out[i] = s.matrix.Chunk(i)
	}
	return out
}

// Vector returns the weight vector of chunk row.
func (s *Snapshot) Vector(row int) embedding.SparseVector { return s.matrix.Row(row) }

// Model returns the fitted term-weight model.
func (s *Snapshot) Model() *tfidf.Model { return s.model }

// Save persists the snapshot at path, replacing any existing file atomically.
func Save(ctx context.Context, snap *Snapshot, path string) error {
	if snap == nil {
		return errors.New("save snapshot: nil snapshot")
	}
	rows := make([]embedding.SparseVector, snap.Len())
	for i := range rows {
		rows[i] = snap.matrix.Row(i)
	}
	return sqlite.Write(ctx, path, &sqlite.Contents{
		Meta:   modelDescriptors(),
		Chunks: snap.Chunks(),
		Terms:  snap.model.Terms(),
		IDF:    snap.model.IDF(),
		Rows:   rows,
	})
}

// Load reads a snapshot saved by Save. A missing file yields an error
// matching domain.ErrIndexNotFound.
func Load(ctx context.Context, path string) (*Snapshot, error) {
	c, err := sqlite.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	for key, want := range modelDescriptors() {
		if got := c.Meta[key]; got != want {
			return nil, fmt.Errorf("%w: %s is %q, want %q", sqlite.ErrUnsupportedSchema, key, got, want)
		}
	}
	if len(c.Chunks) == 0 {
		return nil, fmt.Errorf("%w: snapshot has no chunks", sqlite.ErrCorruptSnapshot)
	}
	model, err := tfidf.NewModel(c.Terms, c.IDF)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sqlite.ErrCorruptSnapshot, err)
	}
	matrix, err := memory.NewStorage(model.Dimension(), c.Chunks, c.Rows)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sqlite.ErrCorruptSnapshot, err)
	}
	return &Snapshot{model: model, matrix: matrix}, nil
}

// modelDescriptors names the tokenizer and weighting rules a snapshot was built with.
func modelDescriptors() map[string]string {
	return map[string]string{
		sqlite.MetaWeighting: tfidf.WeightingName,
		sqlite.MetaTokenizer: tfidf.TokenizerName,
		sqlite.MetaStopWords: tfidf.StopWordsName,
	}
}
