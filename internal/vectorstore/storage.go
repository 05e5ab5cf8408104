package vectorstore

import (
	"kbrag/internal/domain"
	"kbrag/internal/embedding"
)

// Storage holds chunk vectors row-aligned with their chunks and ranks them
// against a query vector.
type Storage interface {
	Len() int
	Dimension() int
	Chunk(row int) domain.Chunk
	Row(row int) embedding.SparseVector
	Search(query embedding.SparseVector, topK int) []domain.ScoredChunk
}
