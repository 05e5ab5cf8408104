package memory

import (
	"errors"
	"fmt"
	"sort"

	"kbrag/internal/domain"
	"kbrag/internal/embedding"
	"kbrag/internal/vectorstore"
)

// Storage is an immutable in-memory chunk-vector matrix searched by brute-force
// cosine similarity. Rows are L2-normalized, so the dot product is the cosine.
type Storage struct {
	dimension int
	vectors   []embedding.SparseVector
	chunks    []domain.Chunk
}

var _ vectorstore.Storage = (*Storage)(nil)

// NewStorage validates and wraps the matrix. Row i of vectors belongs to chunk i.
func NewStorage(dimension int, chunks []domain.Chunk, vectors []embedding.SparseVector) (*Storage, error) {
	if dimension <= 0 {
		return nil, errors.New("invalid dimension")
	}
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("chunks and vectors length mismatch: %d != %d", len(chunks), len(vectors))
	}
	for row, v := range vectors {
		if len(v.Indices) != len(v.Values) {
			return nil, fmt.Errorf("row %d: %d indices but %d values", row, len(v.Indices), len(v.Values))
		}
		for k, idx := range v.Indices {
			if idx < 0 || int(idx) >= dimension {
				return nil, fmt.Errorf("row %d: column %d out of range [0,%d)", row, idx, dimension)
			}
			if k > 0 && v.Indices[k-1] >= idx {
				return nil, fmt.Errorf("row %d: columns not ascending", row)
			}
		}
	}
	return &Storage{
		dimension: dimension,
		vectors:   append([]embedding.SparseVector(nil), vectors...),
		chunks:    append([]domain.Chunk(nil), chunks...),
	}, nil
}

// Len returns the number of rows.
func (s *Storage) Len() int { return len(s.chunks) }

// Dimension returns the number of columns.
func (s *Storage) Dimension() int { return s.dimension }

// Chunk returns the chunk stored at row.
func (s *Storage) Chunk(row int) domain.Chunk { return s.chunks[row] }

// Row returns the vector stored at row.
func (s *Storage) Row(row int) embedding.SparseVector { return s.vectors[row] }

// Search returns the topK rows with the highest similarity to query, in
// descending score order. Equal scores keep corpus order. A topK larger
// than the matrix returns every row.
func (s *Storage) Search(query embedding.SparseVector, topK int) []domain.ScoredChunk {
	if topK <= 0 || len(s.vectors) == 0 {
		return nil
	}
	scores := make([]float64, len(s.vectors))
	for i := range s.vectors {
		scores[i] = clamp(s.vectors[i].Dot(query))
	}
	idxs := argsortDesc(scores)
	if topK > len(idxs) {
		topK = len(idxs)
	}
	results := make([]domain.ScoredChunk, 0, topK)
	for _, j := range idxs[:topK] {
		results = append(results, domain.ScoredChunk{Chunk: s.chunks[j], Score: scores[j]})
	}
	return results
}

// clamp keeps rounding error from pushing scores outside [0,1].
func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func argsortDesc(vals []float64) []int {
	idxs := make([]int, len(vals))
	for i := range vals {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool { return vals[idxs[a]] > vals[idxs[b]] })
	return idxs
}
