package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"kbrag/internal/chunker"
	"kbrag/internal/domain"
	"kbrag/internal/index"
)

// ErrBuildInProgress is returned when another process holds the build lock
// for the same snapshot path.
var ErrBuildInProgress = errors.New("another index build is in progress")

// BuildReport describes a finished build.
type BuildReport struct {
	Documents    int
	Pages        int
	SkippedPages int
	Chunks       int
	VocabSize    int
	Summary      string
	Duration     time.Duration
}

// Options configures a Service.
type Options struct {
	MaxChars            int
	SummaryMaxSentences int
	MinScore            float64
	Logger              *slog.Logger
}

// Service ties the document reader, chunker and index together.
type Service struct {
	reader     domain.DocumentReader
	summarizer domain.Summarizer
	holder     *index.Holder
	opts       Options
	logger     *slog.Logger
}

// New creates a service. holder may be nil for build-only use.
func New(reader domain.DocumentReader, summarizer domain.Summarizer, holder *index.Holder, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if holder == nil {
		holder = index.NewHolder(nil)
	}
	return &Service{reader: reader, summarizer: summarizer, holder: holder, opts: opts, logger: logger}
}

// Holder returns the snapshot holder queried by the service.
func (s *Service) Holder() *index.Holder { return s.holder }

// Build reads every document in dir, indexes it and saves the snapshot at
// dest. Nothing is written when the corpus is empty.
func (s *Service) Build(ctx context.Context, dir, dest string) (*BuildReport, error) {
	start := time.Now()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}
	lock := flock.New(dest + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire build lock: %w", err)
	}
	if !locked {
		return nil, ErrBuildInProgress
	}
	defer func() { _ = lock.Unlock() }()

	docs, err := s.reader.ReadDir(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("read documents: %w", err)
	}

	report := &BuildReport{Documents: len(docs)}
	for _, d := range docs {
		report.Pages += len(d.Pages)
	}
	w := chunker.NewWindow(s.opts.MaxChars).OnSkippedPage(func(source string, page int, err error) {
		report.SkippedPages++
		if err != nil {
			s.logger.Warn("page extraction failed",
				slog.String("source", source),
				slog.Int("page", page),
				slog.String("error", err.Error()))
		}
	})
	chunks := w.ExtractChunks(docs)
	report.Chunks = len(chunks)
	s.logger.Info("documents chunked",
		slog.Int("documents", report.Documents),
		slog.Int("pages", report.Pages),
		slog.Int("chunks", report.Chunks))

	snap, err := index.Build(chunks)
	if err != nil {
		return nil, err
	}
	report.VocabSize = snap.VocabSize()

	if err := index.Save(ctx, snap, dest); err != nil {
		return nil, fmt.Errorf("save index: %w", err)
	}

	if s.summarizer != nil {
		texts := make([]string, len(chunks))
		for i, ch := range chunks {
			texts[i] = ch.Text
		}
		summary, err := s.summarizer.Summarize(strings.Join(texts, " "), s.opts.SummaryMaxSentences)
		if err != nil {
			return nil, fmt.Errorf("summarize corpus: %w", err)
		}
		report.Summary = summary
	}
	report.Duration = time.Since(start)
	s.logger.Info("index saved",
		slog.String("path", dest),
		slog.Int("vocab_size", report.VocabSize),
		slog.Duration("duration", report.Duration))
	return report, nil
}

// Load publishes the snapshot at path. A missing snapshot leaves retrieval
// disabled and is returned as an error matching domain.ErrIndexNotFound.
func (s *Service) Load(ctx context.Context, path string) error {
	if err := s.holder.Reload(ctx, path); err != nil {
		return err
	}
	snap := s.holder.Current()
	s.logger.Info("index loaded",
		slog.String("path", path),
		slog.Int("chunks", snap.Len()),
		slog.Int("vocab_size", snap.VocabSize()))
	return nil
}

// Query returns the best matching chunks, dropping those scoring below the
// configured minimum. It is empty when no index is loaded.
func (s *Service) Query(query string, topK int) []domain.ScoredChunk {
	results := s.holder.Search(query, topK)
	if s.opts.MinScore <= 0 {
		return results
	}
	out := results[:0]
	for _, r := range results {
		if r.Score >= s.opts.MinScore {
			out = append(out, r)
		}
	}
	return out
}

// Loaded reports whether a snapshot is available for queries.
func (s *Service) Loaded() bool { return s.holder.Loaded() }

// Search implements domain.Searcher.
func (s *Service) Search(query string, topK int) []domain.ScoredChunk {
	return s.Query(query, topK)
}

var _ domain.Searcher = (*Service)(nil)
