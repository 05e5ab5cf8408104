package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// KnowledgeBaseConfig locates the source documents.
type KnowledgeBaseConfig struct {
	Dir         string `yaml:"dir"`
	Pattern     string `yaml:"pattern"`
	Concurrency int    `yaml:"concurrency"`
}

// ChunkerConfig configures how page text is split into chunks.
type ChunkerConfig struct {
	MaxChars int `yaml:"max_chars"`
}

// IndexConfig locates the persisted snapshot.
type IndexConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// SearchConfig holds query defaults.
type SearchConfig struct {
	TopK      int     `yaml:"top_k"`
	MinScore  float64 `yaml:"min_score"`
	CacheSize int     `yaml:"cache_size"`
}

// ServerConfig configures the HTTP retrieval endpoint.
type ServerConfig struct {
	Addr         string  `yaml:"addr"`
	RateLimit    float64 `yaml:"rate_limit"`
	Burst        int     `yaml:"burst"`
	ShutdownSecs int     `yaml:"shutdown_secs"`
}

// SummarizerConfig configures the build report summary.
type SummarizerConfig struct {
	MaxSentences int `yaml:"max_sentences"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	KnowledgeBase KnowledgeBaseConfig `yaml:"knowledge_base"`
	Chunker       ChunkerConfig       `yaml:"chunker"`
	Index         IndexConfig         `yaml:"index"`
	Search        SearchConfig        `yaml:"search"`
	Server        ServerConfig        `yaml:"server"`
	Summarizer    SummarizerConfig    `yaml:"summarizer"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// Environment variables that override file values.
const (
	EnvKBDir     = "KBRAG_KB_DIR"
	EnvIndexPath = "KBRAG_INDEX_PATH"
	EnvAddr      = "KBRAG_ADDR"
	EnvLogLevel  = "KBRAG_LOG_LEVEL"
	EnvTopK      = "KBRAG_TOP_K"
)

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			if err := applyEnvOverrides(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(cfg)
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadDefault tries ./kbrag.yaml first, then ~/.config/kbrag/config.yaml.
// If neither exists, defaults are returned without writing anything.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "kbrag.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, "", err
	}
	return cfg, "", nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Default returns the built-in configuration.
func Default() *AppConfig { return defaultConfig() }

// Validate rejects values no component can work with.
func (c *AppConfig) Validate() error {
	if c.Chunker.MaxChars < 0 {
		return fmt.Errorf("chunker.max_chars must not be negative (got %d)", c.Chunker.MaxChars)
	}
	if c.Search.TopK < 0 {
		return fmt.Errorf("search.top_k must not be negative (got %d)", c.Search.TopK)
	}
	if c.Search.MinScore < 0 || c.Search.MinScore > 1 {
		return fmt.Errorf("search.min_score must be within [0,1] (got %v)", c.Search.MinScore)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must not be negative (got %v)", c.Server.RateLimit)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json (got %q)", c.Logging.Format)
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "kbrag", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		KnowledgeBase: KnowledgeBaseConfig{Dir: "knowledge_base", Pattern: "*.pdf"},
		Chunker:       ChunkerConfig{MaxChars: 900},
		Index:         IndexConfig{Path: "kb_index.db", Watch: true},
		Search:        SearchConfig{TopK: 3, CacheSize: 256},
		Server:        ServerConfig{Addr: ":5000", RateLimit: 20, Burst: 40, ShutdownSecs: 10},
		Summarizer:    SummarizerConfig{MaxSentences: 5},
		Logging:       LoggingConfig{Level: "info", Format: "text"},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	def := defaultConfig()
	if cfg.KnowledgeBase.Dir == "" {
		cfg.KnowledgeBase.Dir = def.KnowledgeBase.Dir
	}
	if cfg.KnowledgeBase.Pattern == "" {
		cfg.KnowledgeBase.Pattern = def.KnowledgeBase.Pattern
	}
	if cfg.Chunker.MaxChars == 0 {
		cfg.Chunker.MaxChars = def.Chunker.MaxChars
	}
	if cfg.Index.Path == "" {
		cfg.Index.Path = def.Index.Path
	}
	if cfg.Search.TopK == 0 {
		cfg.Search.TopK = def.Search.TopK
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = def.Server.Addr
	}
	if cfg.Server.Burst == 0 {
		cfg.Server.Burst = def.Server.Burst
	}
	if cfg.Server.ShutdownSecs == 0 {
		cfg.Server.ShutdownSecs = def.Server.ShutdownSecs
	}
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = def.Summarizer.MaxSentences
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = def.Logging.Format
	}
}

func applyEnvOverrides(cfg *AppConfig) error {
	if v := os.Getenv(EnvKBDir); v != "" {
		cfg.KnowledgeBase.Dir = v
	}
	if v := os.Getenv(EnvIndexPath); v != "" {
		cfg.Index.Path = v
	}
	if v := os.Getenv(EnvAddr); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv(EnvTopK); v != "" {
		k, err := strconv.Atoi(v)
		if err != nil || k <= 0 {
			return fmt.Errorf("%s must be a positive integer (got %q)", EnvTopK, v)
		}
		cfg.Search.TopK = k
	}
	return nil
}
