// Package server exposes the retrieval index over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"kbrag/internal/domain"
	"kbrag/internal/index"
)

// RequestIDHeader carries the per-request identifier.
const RequestIDHeader = "X-Request-ID"

// maxBodyBytes bounds search request bodies.
const maxBodyBytes = 64 << 10

// Config configures the HTTP server.
type Config struct {
	Addr            string
	DefaultTopK     int
	MinScore        float64
	CacheSize       int
	RateLimit       float64
	Burst           int
	ShutdownTimeout time.Duration
}

// SearchRequest is the body of POST /api/search.
type SearchRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k,omitempty"`
}

// SearchResponse is returned by POST /api/search.
type SearchResponse struct {
	Results          []domain.ScoredChunk `json:"results"`
	RetrievalEnabled bool                 `json:"retrieval_enabled"`
}

// IndexInfo is returned by GET /api/index.
type IndexInfo struct {
	Loaded     bool   `json:"loaded"`
	Chunks     int    `json:"chunks"`
	VocabSize  int    `json:"vocab_size"`
	Generation uint64 `json:"generation"`
}

type cacheKey struct {
	generation uint64
	topK       int
	query      string
}

// Server serves retrieval queries against a snapshot holder.
type Server struct {
	cfg     Config
	holder  *index.Holder
	cache   *lru.Cache[cacheKey, []domain.ScoredChunk]
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates a server. A zero RateLimit disables rate limiting and a zero
// CacheSize disables the results cache.
func New(cfg Config, holder *index.Holder, logger *slog.Logger) (*Server, error) {
	if holder == nil {
		return nil, errors.New("server: nil holder")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = index.DefaultTopK
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	s := &Server{cfg: cfg, holder: holder, logger: logger}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[cacheKey, []domain.ScoredChunk](cfg.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("create results cache: %w", err)
		}
		s.cache = cache
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return s, nil
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/index", s.handleIndex)
	mux.HandleFunc("POST /api/search", s.handleSearch)
	return s.withRequestID(s.withAccessLog(s.withRateLimit(mux)))
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", slog.String("addr", s.cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	info := IndexInfo{Generation: s.holder.Generation()}
	if snap := s.holder.Current(); snap != nil {
		info.Loaded = true
		info.Chunks = snap.Len()
		info.VocabSize = snap.VocabSize()
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TopK < 0 {
		writeError(w, http.StatusBadRequest, "top_k must be positive")
		return
	}
	if req.TopK == 0 {
		req.TopK = s.cfg.DefaultTopK
	}
	writeJSON(w, http.StatusOK, SearchResponse{
		Results:          s.search(req.Query, req.TopK),
		RetrievalEnabled: s.holder.Loaded(),
	})
}

// search consults the cache first. Keys include the holder generation, so a
// reloaded snapshot never serves stale entries.
func (s *Server) search(query string, topK int) []domain.ScoredChunk {
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.ScoredChunk{}
	}
	key := cacheKey{generation: s.holder.Generation(), topK: topK, query: query}
	if s.cache != nil {
		if hit, ok := s.cache.Get(key); ok {
			return hit
		}
	}
	results := filterScore(s.holder.Search(query, topK), s.cfg.MinScore)
	if s.cache != nil && s.holder.Loaded() {
		s.cache.Add(key, results)
	}
	return results
}

func filterScore(results []domain.ScoredChunk, minScore float64) []domain.ScoredChunk {
	out := make([]domain.ScoredChunk, 0, len(results))
	for _, r := range results {
		if r.Score >= minScore {
			out = append(out, r)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
