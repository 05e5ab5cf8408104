package index

import (
	"context"
	"sync/atomic"

	"kbrag/internal/domain"
)

// Holder owns the serving process's snapshot reference. Snapshots are
// published by swapping the pointer; a published snapshot is never mutated,
// so in-flight searches always see a consistent one.
type Holder struct {
	current    atomic.Pointer[Snapshot]
	generation atomic.Uint64
}

var _ domain.Searcher = (*Holder)(nil)

// NewHolder creates a holder publishing snap, which may be nil.
func NewHolder(snap *Snapshot) *Holder {
	h := &Holder{}
	if snap != nil {
		h.Swap(snap)
	}
	return h
}

// Current returns the published snapshot, or nil when retrieval is disabled.
func (h *Holder) Current() *Snapshot { return h.current.Load() }

// Loaded reports whether a snapshot is published.
func (h *Holder) Loaded() bool { return h.current.Load() != nil }

// Generation increments on every swap.
func (h *Holder) Generation() uint64 { return h.generation.Load() }

// Swap publishes snap and returns the previous snapshot.
func (h *Holder) Swap(snap *Snapshot) *Snapshot {
	old := h.current.Swap(snap)
	h.generation.Add(1)
	return old
}

// Search queries the published snapshot. It returns nothing when no snapshot
// is loaded.
func (h *Holder) Search(query string, topK int) []domain.ScoredChunk {
	return Search(h.current.Load(), query, topK)
}

// Reload loads the snapshot at path and publishes it. On error the previous
// snapshot stays published.
func (h *Holder) Reload(ctx context.Context, path string) error {
	snap, err := Load(ctx, path)
	if err != nil {
		return err
	}
	h.Swap(snap)
	return nil
}
