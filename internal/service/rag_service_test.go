package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kbrag/internal/domain"
	"kbrag/internal/summarizer"
)

type fakeReader struct {
	docs []domain.Document
	err  error
}

func (f *fakeReader) ReadDir(_ context.Context, _ string) ([]domain.Document, error) {
	return f.docs, f.err
}

func hrDocs() []domain.Document {
	return []domain.Document{
		{ID: "Doc A", Pages: []domain.PageText{{Text: "vacation policy requires two weeks notice."}}},
		{ID: "Doc B", Pages: []domain.PageText{
			{Text: "overtime pay is calculated at one point five times hourly rate."},
			{Err: errors.New("bad xref")},
			{Text: "  "},
		}},
	}
}

func TestBuild_WritesSnapshotAndReport(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out", "kb_index.db")
	svc := New(&fakeReader{docs: hrDocs()}, summarizer.NewFrequencySummarizer(), nil, Options{MaxChars: 900})

	report, err := svc.Build(context.Background(), "kb", dest)

	require.NoError(t, err)
	assert.Equal(t, 2, report.Documents)
	assert.Equal(t, 4, report.Pages)
	assert.Equal(t, 2, report.SkippedPages)
	assert.Equal(t, 2, report.Chunks)
	assert.Positive(t, report.VocabSize)
	assert.NotEmpty(t, report.Summary)
	assert.FileExists(t, dest)

	require.NoError(t, svc.Load(context.Background(), dest))
	assert.True(t, svc.Loaded())
	results := svc.Query("vacation notice policy", 1)
	require.Len(t, results, 1)
	assert.Equal(t, "Doc A", results[0].Source)
}

func TestBuild_EmptyCorpusWritesNothing(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "kb_index.db")
	svc := New(&fakeReader{}, nil, nil, Options{})

	_, err := svc.Build(context.Background(), "kb", dest)

	require.ErrorIs(t, err, domain.ErrEmptyCorpus)
	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestBuild_ReaderError(t *testing.T) {
	svc := New(&fakeReader{err: os.ErrNotExist}, nil, nil, Options{})

	_, err := svc.Build(context.Background(), "missing", filepath.Join(t.TempDir(), "kb.db"))

	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBuild_RejectsConcurrentBuild(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "kb_index.db")
	other := flock.New(dest + ".lock")
	locked, err := other.TryLock()
	require.NoError(t, err)
	require.True(t, locked)
	defer func() { _ = other.Unlock() }()

	svc := New(&fakeReader{docs: hrDocs()}, nil, nil, Options{})
	_, err = svc.Build(context.Background(), "kb", dest)

	assert.ErrorIs(t, err, ErrBuildInProgress)
}

func TestLoad_MissingDisablesRetrieval(t *testing.T) {
	svc := New(&fakeReader{}, nil, nil, Options{})

	err := svc.Load(context.Background(), filepath.Join(t.TempDir(), "none.db"))

	require.ErrorIs(t, err, domain.ErrIndexNotFound)
	assert.Empty(t, svc.Query("vacation", 3))
	assert.False(t, svc.Holder().Loaded())
	assert.False(t, svc.Loaded())
}

func TestQuery_MinScoreFilters(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "kb_index.db")
	svc := New(&fakeReader{docs: hrDocs()}, nil, nil, Options{MinScore: 0.01})
	_, err := svc.Build(context.Background(), "kb", dest)
	require.NoError(t, err)
	require.NoError(t, svc.Load(context.Background(), dest))

	results := svc.Query("vacation notice", 5)

	require.Len(t, results, 1)
	assert.Equal(t, "Doc A", results[0].Source)
}
