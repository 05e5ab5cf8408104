// Package pdf reads a directory of PDF files into per-page raw text.
package pdf

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	lpdf "github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"

	"kbrag/internal/domain"
)

// DefaultPattern selects the files read from a knowledge base directory.
const DefaultPattern = "*.pdf"

// ExtractFunc extracts the pages of one file. Page-level failures belong in
// PageText.Err; a returned error means the file could not be read at all.
type ExtractFunc func(path string) ([]domain.PageText, error)

// Reader reads PDF documents from a directory.
type Reader struct {
	pattern     string
	concurrency int
	extract     ExtractFunc
	logger      *slog.Logger
}

var _ domain.DocumentReader = (*Reader)(nil)

// Option configures a Reader.
type Option func(*Reader)

// WithPattern sets the glob matched against file names.
func WithPattern(pattern string) Option {
	return func(r *Reader) {
		if pattern != "" {
			r.pattern = pattern
		}
	}
}

// WithConcurrency bounds the number of files extracted in parallel.
func WithConcurrency(n int) Option {
	return func(r *Reader) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithExtractor replaces the PDF extraction function.
func WithExtractor(fn ExtractFunc) Option {
	return func(r *Reader) { r.extract = fn }
}

// WithLogger sets the logger used for skipped files.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reader) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewReader creates a reader using github.com/ledongthuc/pdf for extraction.
func NewReader(opts ...Option) *Reader {
	r := &Reader{
		pattern:     DefaultPattern,
		concurrency: runtime.GOMAXPROCS(0),
		extract:     ExtractPages,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReadDir extracts every matching file in dir. Documents are returned sorted
// by file name regardless of extraction order. Files that cannot be opened
// are logged and skipped.
func (r *Reader) ReadDir(ctx context.Context, dir string) ([]domain.Document, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("knowledge base directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("knowledge base path %s is not a directory", dir)
	}
	paths, err := filepath.Glob(filepath.Join(dir, r.pattern))
	if err != nil {
		return nil, fmt.Errorf("match %s: %w", r.pattern, err)
	}
	sort.Strings(paths)

	docs := make([]*domain.Document, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pages, err := r.extract(path)
			if err != nil {
				r.logger.Warn("skipping unreadable document",
					slog.String("path", path),
					slog.String("error", err.Error()))
				return nil
			}
			docs[i] = &domain.Document{ID: filepath.Base(path), Pages: pages}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]domain.Document, 0, len(docs))
	for _, d := range docs {
		if d != nil {
			out = append(out, *d)
		}
	}
	return out, nil
}

// ExtractPages returns the plain text of every page of the PDF at path.
func ExtractPages(path string) (pages []domain.PageText, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("open %s: %v", path, p)
		}
	}()
	f, reader, err := lpdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	n := reader.NumPage()
	pages = make([]domain.PageText, n)
	for i := 1; i <= n; i++ {
		pages[i-1] = extractPage(reader, i)
	}
	return pages, nil
}

// extractPage converts panics from malformed page content into page errors.
func extractPage(reader *lpdf.Reader, num int) (pt domain.PageText) {
	defer func() {
		if p := recover(); p != nil {
			pt = domain.PageText{Err: fmt.Errorf("page %d: %v", num, p)}
		}
	}()
	page := reader.Page(num)
	if page.V.IsNull() {
		return domain.PageText{}
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return domain.PageText{Err: fmt.Errorf("page %d: %w", num, err)}
	}
	return domain.PageText{Text: text}
}
