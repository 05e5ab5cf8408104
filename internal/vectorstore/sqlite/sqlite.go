// Package sqlite persists index snapshots as a versioned SQLite container.
//
// Layout (schema version 1):
//
//	meta(key, value)              schema_version, weighting, tokenizer, stop_words,
//	                              chunk_count, vocab_size
//	chunks(row, source, page, text)
//	terms(col, term, idf)
//	matrix(row, cols, weights)    cols: LE uint32, weights: LE float64
//
// The file can be inspected with any SQLite client.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"kbrag/internal/domain"
	"kbrag/internal/embedding"
)

// SchemaVersion is the container version written by this package.
const SchemaVersion = 1

// Meta keys.
const (
	MetaSchemaVersion = "schema_version"
	MetaWeighting     = "weighting"
	MetaTokenizer     = "tokenizer"
	MetaStopWords     = "stop_words"
	MetaChunkCount    = "chunk_count"
	MetaVocabSize     = "vocab_size"
)

var (
	// ErrUnsupportedSchema is returned for containers written by an unknown version.
	ErrUnsupportedSchema = errors.New("unsupported snapshot schema version")
	// ErrCorruptSnapshot is returned when the container contents are inconsistent.
	ErrCorruptSnapshot = errors.New("corrupt snapshot")
)

const schema = `
CREATE TABLE meta (key TEXT PRIMARY KEY, value TEXT NOT NULL);
CREATE TABLE chunks (row INTEGER PRIMARY KEY, source TEXT NOT NULL, page INTEGER NOT NULL, text TEXT NOT NULL);
CREATE TABLE terms (col INTEGER PRIMARY KEY, term TEXT NOT NULL UNIQUE, idf REAL NOT NULL);
CREATE TABLE matrix (row INTEGER PRIMARY KEY, cols BLOB NOT NULL, weights BLOB NOT NULL);
`

// Contents is the persisted form of a snapshot.
type Contents struct {
	// Meta holds free-form model descriptors (weighting, tokenizer, stop_words).
	// Counts and the schema version are maintained by this package.
	Meta   map[string]string
	Chunks []domain.Chunk
	Terms  []string
	IDF    []float64
	Rows   []embedding.SparseVector
}

// Write stores c at path. The container is written to a temporary file in the
// same directory and renamed into place, so readers never observe a partial file.
func Write(ctx context.Context, path string, c *Contents) (err error) {
	if len(c.Chunks) != len(c.Rows) {
		return fmt.Errorf("write snapshot: %d chunks but %d rows", len(c.Chunks), len(c.Rows))
	}
	if len(c.Terms) != len(c.IDF) {
		return fmt.Errorf("write snapshot: %d terms but %d idf values", len(c.Terms), len(c.IDF))
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	tmp := filepath.Join(dir, "."+filepath.Base(path)+".tmp-"+strconv.Itoa(os.Getpid()))
	_ = os.Remove(tmp)
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	dsn, err := fileDSN(tmp, "")
	if err != nil {
		return err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open snapshot for write: %w", err)
	}
	if err := writeContents(ctx, db, c); err != nil {
		_ = db.Close()
		return err
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("publish snapshot: %w", err)
	}
	slog.Debug("snapshot written",
		slog.String("path", path),
		slog.Int("chunks", len(c.Chunks)),
		slog.Int("terms", len(c.Terms)))
	return nil
}

func writeContents(ctx context.Context, db *sql.DB, c *Contents) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	meta := map[string]string{}
	for k, v := range c.Meta {
		meta[k] = v
	}
	meta[MetaSchemaVersion] = strconv.Itoa(SchemaVersion)
	meta[MetaChunkCount] = strconv.Itoa(len(c.Chunks))
	meta[MetaVocabSize] = strconv.Itoa(len(c.Terms))
	for k, v := range meta {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("insert meta %s: %w", k, err)
		}
	}

	chunkStmt, err := tx.PrepareContext(ctx, `INSERT INTO chunks (row, source, page, text) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare chunks: %w", err)
	}
	defer chunkStmt.Close()
	for i, ch := range c.Chunks {
		if _, err := chunkStmt.ExecContext(ctx, i, ch.Source, ch.Page, ch.Text); err != nil {
			return fmt.Errorf("insert chunk %d: %w", i, err)
		}
	}

	termStmt, err := tx.PrepareContext(ctx, `INSERT INTO terms (col, term, idf) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare terms: %w", err)
	}
	defer termStmt.Close()
	for i, term := range c.Terms {
		if _, err := termStmt.ExecContext(ctx, i, term, c.IDF[i]); err != nil {
			return fmt.Errorf("insert term %q: %w", term, err)
		}
	}

	rowStmt, err := tx.PrepareContext(ctx, `INSERT INTO matrix (row, cols, weights) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare matrix: %w", err)
	}
	defer rowStmt.Close()
	for i, v := range c.Rows {
		if _, err := rowStmt.ExecContext(ctx, i, encodeColumns(v.Indices), encodeWeights(v.Values)); err != nil {
			return fmt.Errorf("insert matrix row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Read loads the container at path. A missing file yields *domain.IndexNotFoundError.
func Read(ctx context.Context, path string) (*Contents, error) {
	db, err := openReadOnly(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	meta, err := readMeta(ctx, db)
	if err != nil {
		return nil, err
	}
	c := &Contents{Meta: meta}

	if c.Chunks, err = readChunks(ctx, db); err != nil {
		return nil, err
	}
	if c.Terms, c.IDF, err = readTerms(ctx, db); err != nil {
		return nil, err
	}
	if c.Rows, err = readMatrix(ctx, db); err != nil {
		return nil, err
	}
	if len(c.Rows) != len(c.Chunks) {
		return nil, fmt.Errorf("%w: %d chunks but %d matrix rows", ErrCorruptSnapshot, len(c.Chunks), len(c.Rows))
	}
	if n, _ := strconv.Atoi(meta[MetaChunkCount]); n != len(c.Chunks) {
		return nil, fmt.Errorf("%w: chunk_count %q does not match %d chunks", ErrCorruptSnapshot, meta[MetaChunkCount], len(c.Chunks))
	}
	return c, nil
}

// ReadMeta loads only the meta table, for inspection.
func ReadMeta(ctx context.Context, path string) (map[string]string, error) {
	db, err := openReadOnly(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return readMeta(ctx, db)
}

func openReadOnly(path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &domain.IndexNotFoundError{Path: path}
		}
		return nil, fmt.Errorf("stat snapshot: %w", err)
	}
	dsn, err := fileDSN(path, "mode=ro")
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	return db, nil
}

// fileDSN returns an escaped file: URI for path, so '#', '?' and '%' in
// directory names reach SQLite verbatim.
func fileDSN(path, query string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve snapshot path: %w", err)
	}
	u := &url.URL{Scheme: "file", Path: filepath.ToSlash(abs), RawQuery: query}
	return u.String(), nil
}

func readMeta(ctx context.Context, db *sql.DB) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return nil, fmt.Errorf("%w: read meta: %v", ErrCorruptSnapshot, err)
	}
	defer rows.Close()
	meta := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan meta: %w", err)
		}
		meta[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read meta: %w", err)
	}
	version, ok := meta[MetaSchemaVersion]
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrCorruptSnapshot, MetaSchemaVersion)
	}
	if version != strconv.Itoa(SchemaVersion) {
		return nil, fmt.Errorf("%w: %s (want %d)", ErrUnsupportedSchema, version, SchemaVersion)
	}
	return meta, nil
}

func readChunks(ctx context.Context, db *sql.DB) ([]domain.Chunk, error) {
	rows, err := db.QueryContext(ctx, `SELECT row, source, page, text FROM chunks ORDER BY row`)
	if err != nil {
		return nil, fmt.Errorf("read chunks: %w", err)
	}
	defer rows.Close()
	var out []domain.Chunk
	for rows.Next() {
		var row int
		var ch domain.Chunk
		if err := rows.Scan(&row, &ch.Source, &ch.Page, &ch.Text); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if row != len(out) {
			return nil, fmt.Errorf("%w: chunk row %d out of sequence", ErrCorruptSnapshot, row)
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

func readTerms(ctx context.Context, db *sql.DB) ([]string, []float64, error) {
	rows, err := db.QueryContext(ctx, `SELECT col, term, idf FROM terms ORDER BY col`)
	if err != nil {
		return nil, nil, fmt.Errorf("read terms: %w", err)
	}
	defer rows.Close()
	var terms []string
	var idf []float64
	for rows.Next() {
		var col int
		var term string
		var w float64
		if err := rows.Scan(&col, &term, &w); err != nil {
			return nil, nil, fmt.Errorf("scan term: %w", err)
		}
		if col != len(terms) {
			return nil, nil, fmt.Errorf("%w: term column %d out of sequence", ErrCorruptSnapshot, col)
		}
		terms = append(terms, term)
		idf = append(idf, w)
	}
	return terms, idf, rows.Err()
}

func readMatrix(ctx context.Context, db *sql.DB) ([]embedding.SparseVector, error) {
	rows, err := db.QueryContext(ctx, `SELECT row, cols, weights FROM matrix ORDER BY row`)
	if err != nil {
		return nil, fmt.Errorf("read matrix: %w", err)
	}
	defer rows.Close()
	var out []embedding.SparseVector
	for rows.Next() {
		var row int
		var colsBlob, weightsBlob []byte
		if err := rows.Scan(&row, &colsBlob, &weightsBlob); err != nil {
			return nil, fmt.Errorf("scan matrix row: %w", err)
		}
		if row != len(out) {
			return nil, fmt.Errorf("%w: matrix row %d out of sequence", ErrCorruptSnapshot, row)
		}
		cols, err := decodeColumns(colsBlob)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrCorruptSnapshot, row, err)
		}
		weights, err := decodeWeights(weightsBlob)
		if err != nil {
			return nil, fmt.Errorf("%w: row %d: %v", ErrCorruptSnapshot, row, err)
		}
		if len(cols) != len(weights) {
			return nil, fmt.Errorf("%w: row %d has %d columns but %d weights", ErrCorruptSnapshot, row, len(cols), len(weights))
		}
		v := embedding.SparseVector{}
		if len(cols) > 0 {
			v = embedding.SparseVector{Indices: cols, Values: weights}
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
