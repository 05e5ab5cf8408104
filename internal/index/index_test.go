package index

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kbrag/internal/domain"
	"kbrag/internal/embedding"
	"kbrag/internal/vectorstore/sqlite"
)

func hrChunks() []domain.Chunk {
	return []domain.Chunk{
		{Source: "handbook.pdf", Page: 1, Text: "Vacation requests must be submitted two weeks in advance."},
		{Source: "handbook.pdf", Page: 2, Text: "Overtime pay is calculated at one point five times the hourly rate."},
		{Source: "handbook.pdf", Page: 3, Text: "Employees accrue vacation days monthly; unused vacation rolls over."},
		{Source: "benefits.pdf", Page: 1, Text: "Health insurance enrollment opens every November."},
		{Source: "benefits.pdf", Page: 2, Text: "Dental and vision plans are optional add-ons to health insurance."},
		{Source: "conduct.pdf", Page: 1, Text: "Harassment complaints are handled confidentially by HR."},
	}
}

func mustBuild(t *testing.T, chunks []domain.Chunk) *Snapshot {
	t.Helper()
	snap, err := Build(chunks)
	require.NoError(t, err)
	return snap
}

func TestBuild_EmptyCorpus(t *testing.T) {
	_, err := Build(nil)
	assert.ErrorIs(t, err, domain.ErrEmptyCorpus)

	_, err = Build([]domain.Chunk{})
	assert.ErrorIs(t, err, domain.ErrEmptyCorpus)
}

func TestBuild_OnlyStopWords(t *testing.T) {
	_, err := Build([]domain.Chunk{{Source: "a.pdf", Page: 1, Text: "the and of it"}})
	assert.ErrorIs(t, err, domain.ErrEmptyCorpus)
}

func TestSearch_EndToEndScenario(t *testing.T) {
	snap := mustBuild(t, []domain.Chunk{
		{Source: "Doc A", Page: 1, Text: "vacation policy requires two weeks notice"},
		{Source: "Doc B", Page: 1, Text: "overtime pay is calculated at one point five times hourly rate"},
	})

	top := Search(snap, "vacation notice policy", 1)
	require.Len(t, top, 1)
	assert.Equal(t, "Doc A", top[0].Source)
	assert.Equal(t, 1, top[0].Page)

	all := Search(snap, "vacation notice policy", 2)
	require.Len(t, all, 2)
	assert.Equal(t, "Doc B", all[1].Source)
	assert.Greater(t, top[0].Score, all[1].Score)
}

func TestSearch_EmptyInputs(t *testing.T) {
	snap := mustBuild(t, hrChunks())

	assert.Empty(t, Search(nil, "anything", 3))
	assert.Empty(t, Search(snap, "", 3))
	assert.Empty(t, Search(snap, "   ", 3))
	assert.Empty(t, Search(snap, "\n\t", 3))

	var nilSnap *Snapshot
	assert.Empty(t, nilSnap.Search("vacation", 3))
}

func TestSearch_DefaultTopK(t *testing.T) {
	snap := mustBuild(t, hrChunks())

	assert.Len(t, Search(snap, "vacation", 0), DefaultTopK)
	assert.Len(t, Search(snap, "vacation", -2), DefaultTopK)
}

func TestSearch_TopKLargerThanCorpus(t *testing.T) {
	snap := mustBuild(t, hrChunks())

	assert.Len(t, Search(snap, "vacation", 100), len(hrChunks()))
}

func TestSearch_OutOfVocabularyQuery(t *testing.T) {
	snap := mustBuild(t, hrChunks())

	res := Search(snap, "zyzzyva quokka", 2)

	require.Len(t, res, 2)
	for _, r := range res {
		assert.Zero(t, r.Score)
	}
	// ties keep corpus order
	assert.Equal(t, hrChunks()[0], res[0].Chunk)
	assert.Equal(t, hrChunks()[1], res[1].Chunk)
}

func TestSearch_ScoreBoundsAndOrdering(t *testing.T) {
	snap := mustBuild(t, hrChunks())
	queries := []string{
		"vacation", "health insurance", "overtime hourly rate", "HR complaints",
		"vacation vacation vacation", "dental vision health insurance november",
		"unknown words only", "Vacation requests must be submitted two weeks in advance.",
	}
	for _, q := range queries {
		res := Search(snap, q, len(hrChunks()))
		require.Len(t, res, len(hrChunks()), q)
		for i, r := range res {
			assert.GreaterOrEqual(t, r.Score, 0.0, q)
			assert.LessOrEqual(t, r.Score, 1.0, q)
			if i > 0 {
				assert.GreaterOrEqual(t, res[i-1].Score, r.Score, q)
			}
		}
	}
}

func TestSearch_IdenticalTextScoresOne(t *testing.T) {
	chunks := hrChunks()
	snap := mustBuild(t, chunks)

	res := Search(snap, chunks[3].Text, 1)

	require.Len(t, res, 1)
	assert.Equal(t, chunks[3], res[0].Chunk)
	assert.InDelta(t, 1.0, res[0].Score, 1e-9)
}

func TestSearch_TopKPrefixProperty(t *testing.T) {
	snap := mustBuild(t, hrChunks())

	for _, q := range []string{"vacation", "insurance", "nothing matches here", "pay rate"} {
		full := Search(snap, q, 6)
		for k := 1; k <= 6; k++ {
			assert.Equal(t, full[:k], Search(snap, q, k), "query %q k=%d", q, k)
		}
	}
}

func TestSearch_TiesKeepCorpusOrder(t *testing.T) {
	snap := mustBuild(t, []domain.Chunk{
		{Source: "x.pdf", Page: 1, Text: "leave policy"},
		{Source: "y.pdf", Page: 1, Text: "leave policy"},
		{Source: "z.pdf", Page: 1, Text: "leave policy"},
		{Source: "w.pdf", Page: 1, Text: "payroll"},
	})

	res := Search(snap, "leave", 3)

	require.Len(t, res, 3)
	assert.Equal(t, "x.pdf", res[0].Source)
	assert.Equal(t, "y.pdf", res[1].Source)
	assert.Equal(t, "z.pdf", res[2].Source)
	assert.Equal(t, res[0].Score, res[2].Score)
}

func TestBuild_Deterministic(t *testing.T) {
	a := mustBuild(t, hrChunks())
	b := mustBuild(t, hrChunks())

	require.Equal(t, a.Len(), b.Len())
	assert.Equal(t, a.Model().Terms(), b.Model().Terms())
	assert.Equal(t, a.Model().IDF(), b.Model().IDF())
	for i := 0; i < a.Len(); i++ {
		assert.Equal(t, a.Vector(i), b.Vector(i))
	}
	assert.Equal(t, Search(a, "vacation insurance", 6), Search(b, "vacation insurance", 6))
}

func TestBuild_RowCorrespondenceUnderPermutation(t *testing.T) {
	chunks := hrChunks()
	perm := []int{5, 2, 0, 4, 1, 3}
	permuted := make([]domain.Chunk, len(chunks))
	for i, p := range perm {
		permuted[i] = chunks[p]
	}

	a := mustBuild(t, chunks)
	b := mustBuild(t, permuted)

	assert.Equal(t, permuted, b.Chunks())
	for i, p := range perm {
		assert.Equal(t, a.Vector(p), b.Vector(i), "row %d", i)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kb_index.db")
	snap := mustBuild(t, hrChunks())

	require.NoError(t, Save(ctx, snap, path))
	loaded, err := Load(ctx, path)
	require.NoError(t, err)

	assert.Equal(t, snap.Chunks(), loaded.Chunks())
	assert.Equal(t, snap.VocabSize(), loaded.VocabSize())
	for _, q := range []string{"vacation", "health insurance", "overtime", "", "unknown"} {
		assert.Equal(t, Search(snap, q, 4), Search(loaded, q, 4), q)
	}
}

func TestSaveLoad_PathWithReservedCharacters(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "HR #2", "50%41?", "kb_index.db")
	snap := mustBuild(t, hrChunks())

	require.NoError(t, Save(ctx, snap, path))
	loaded, err := Load(ctx, path)
	require.NoError(t, err)

	assert.Equal(t, snap.Chunks(), loaded.Chunks())
	assert.Equal(t, Search(snap, "vacation", 3), Search(loaded, "vacation", 3))
}

func TestSave_NilSnapshot(t *testing.T) {
	assert.Error(t, Save(context.Background(), nil, filepath.Join(t.TempDir(), "x.db")))
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing.db"))

	assert.ErrorIs(t, err, domain.ErrIndexNotFound)
	var nf *domain.IndexNotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestLoad_RejectsForeignModel(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "kb_index.db")
	require.NoError(t, sqlite.Write(ctx, path, &sqlite.Contents{
		Meta:   map[string]string{sqlite.MetaWeighting: "bm25"},
		Chunks: []domain.Chunk{{Source: "a", Page: 1, Text: "abc"}},
		Terms:  []string{"abc"},
		IDF:    []float64{1},
		Rows:   []embedding.SparseVector{{}},
	}))

	_, err := Load(ctx, path)
	assert.ErrorIs(t, err, sqlite.ErrUnsupportedSchema)
}

func TestSearch_ConcurrentReaders(t *testing.T) {
	snap := mustBuild(t, hrChunks())
	want := Search(snap, "vacation insurance", 4)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				assert.Equal(t, want, Search(snap, "vacation insurance", 4))
			}
		}()
	}
	wg.Wait()
}
