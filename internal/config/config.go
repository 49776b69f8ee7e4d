// Package config loads the application configuration for the ragcache
// CLI: defaults, then a TOML file, then environment variables (env wins).
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"

	ragcache "github.com/fnusatvik07/rag-project2"
	"github.com/fnusatvik07/rag-project2/ingest"
)

type Config struct {
	Embedding EmbeddingConfig `toml:"embedding"`
	Generator GeneratorConfig `toml:"generator"`
	Chunking  ChunkingConfig  `toml:"chunking"`
	Cache     CacheConfig     `toml:"cache"`
	Database  DatabaseConfig  `toml:"database"`
	Observer  ObserverConfig  `toml:"observer"`
}

type EmbeddingConfig struct {
	Model      string `toml:"model"`
	BaseURL    string `toml:"base_url"`
	APIKey     string `toml:"api_key"`
	Dimensions int    `toml:"dimensions"`
}

type GeneratorConfig struct {
	Model   string `toml:"model"`
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
}

type ChunkingConfig struct {
	Strategy      string `toml:"strategy"`
	ParentTokens  int    `toml:"parent_chunk_size"`
	ChildTokens   int    `toml:"child_chunk_size"`
	OverlapTokens int    `toml:"child_overlap"`
	WindowTokens  int    `toml:"window_size"`
	GroupSize     int    `toml:"window_group_size"`
}

type CacheConfig struct {
	SemanticThreshold  float64 `toml:"semantic_threshold"`
	RetrievalThreshold float64 `toml:"retrieval_threshold"`
	ExactTTLSeconds    int64   `toml:"exact_ttl_seconds"`
	SemanticTTLSeconds int64   `toml:"semantic_ttl_seconds"`
	RetrievalTTL       int64   `toml:"retrieval_ttl_seconds"`
	NoContextTTL       int64   `toml:"no_context_ttl_seconds"`
	MaxEntriesPerTier  int     `toml:"max_entries_per_tier"`
	TopK               int     `toml:"top_k"`
}

type DatabaseConfig struct {
	// Backend is "sqlite", "postgres", or "redis" (redis caches only).
	Backend     string `toml:"backend"`
	Path        string `toml:"path"`
	PostgresURL string `toml:"postgres_url"`
	RedisAddr   string `toml:"redis_addr"`
}

type ObserverConfig struct {
	Enabled     bool   `toml:"enabled"`
	ServiceName string `toml:"service_name"`
}

// Default returns a Config with all defaults applied.
func Default() Config {
	return Config{
		Embedding: EmbeddingConfig{Model: "text-embedding-3-small", BaseURL: "https://api.openai.com/v1", Dimensions: 1536},
		Generator: GeneratorConfig{Model: "gpt-4o-mini", BaseURL: "https://api.openai.com/v1"},
		Chunking: ChunkingConfig{
			Strategy:      ingest.StrategyParentChild,
			ParentTokens:  400,
			ChildTokens:   100,
			OverlapTokens: 20,
			WindowTokens:  100,
			GroupSize:     4,
		},
		Cache: CacheConfig{
			SemanticThreshold:  0.92,
			RetrievalThreshold: 0.80,
			ExactTTLSeconds:    24 * 3600,
			SemanticTTLSeconds: 12 * 3600,
			RetrievalTTL:       6 * 3600,
			NoContextTTL:       600,
			MaxEntriesPerTier:  1024,
			TopK:               10,
		},
		Database: DatabaseConfig{Backend: "sqlite", Path: "ragcache.db"},
		Observer: ObserverConfig{ServiceName: "ragcache"},
	}
}

// Load reads config: defaults -> TOML file -> env vars (env wins).
func Load(path string) Config {
	cfg := Default()

	if path == "" {
		path = "ragcache.toml"
	}
	if data, err := os.ReadFile(path); err == nil {
		_ = toml.Unmarshal(data, &cfg)
	}

	if v := os.Getenv("RAGCACHE_EMBEDDING_API_KEY"); v != "" {
		cfg.Embedding.APIKey = v
	}
	if v := os.Getenv("RAGCACHE_GENERATOR_API_KEY"); v != "" {
		cfg.Generator.APIKey = v
	}
	if v := os.Getenv("RAGCACHE_POSTGRES_URL"); v != "" {
		cfg.Database.PostgresURL = v
	}
	if v := os.Getenv("RAGCACHE_REDIS_ADDR"); v != "" {
		cfg.Database.RedisAddr = v
	}
	if v := os.Getenv("RAGCACHE_SEMANTIC_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Cache.SemanticThreshold = f
		}
	}
	if v := os.Getenv("RAGCACHE_OBSERVER_ENABLED"); v == "true" || v == "1" {
		cfg.Observer.Enabled = true
	}

	// Fallbacks
	if cfg.Generator.APIKey == "" {
		cfg.Generator.APIKey = cfg.Embedding.APIKey
	}

	return cfg
}

// Validate rejects values that would produce a broken cascade. Called once
// at startup; any error is fatal.
func (c Config) Validate() error {
	if _, err := ingest.ForStrategy(c.Chunking.Strategy); err != nil {
		return &ragcache.ErrInvalidConfig{Field: "chunking.strategy", Reason: err.Error()}
	}
	if c.Chunking.ParentTokens <= 0 || c.Chunking.ChildTokens <= 0 {
		return &ragcache.ErrInvalidConfig{Field: "chunking", Reason: "chunk sizes must be positive"}
	}
	if c.Chunking.ChildTokens > c.Chunking.ParentTokens {
		return &ragcache.ErrInvalidConfig{Field: "chunking.child_chunk_size",
			Reason: fmt.Sprintf("child size %d exceeds parent size %d", c.Chunking.ChildTokens, c.Chunking.ParentTokens)}
	}
	if c.Chunking.OverlapTokens < 0 || c.Chunking.OverlapTokens >= c.Chunking.ChildTokens {
		return &ragcache.ErrInvalidConfig{Field: "chunking.child_overlap", Reason: "overlap must be smaller than child size"}
	}
	if c.Cache.SemanticThreshold <= 0 || c.Cache.SemanticThreshold > 1 {
		return &ragcache.ErrInvalidConfig{Field: "cache.semantic_threshold", Reason: "must be in (0, 1]"}
	}
	if c.Cache.RetrievalThreshold <= 0 || c.Cache.RetrievalThreshold > 1 {
		return &ragcache.ErrInvalidConfig{Field: "cache.retrieval_threshold", Reason: "must be in (0, 1]"}
	}
	if c.Cache.RetrievalThreshold > c.Cache.SemanticThreshold {
		return &ragcache.ErrInvalidConfig{Field: "cache.retrieval_threshold",
			Reason: "must not exceed cache.semantic_threshold"}
	}
	for field, ttl := range map[string]int64{
		"cache.exact_ttl_seconds":      c.Cache.ExactTTLSeconds,
		"cache.semantic_ttl_seconds":   c.Cache.SemanticTTLSeconds,
		"cache.retrieval_ttl_seconds":  c.Cache.RetrievalTTL,
		"cache.no_context_ttl_seconds": c.Cache.NoContextTTL,
	} {
		if ttl <= 0 {
			return &ragcache.ErrInvalidConfig{Field: field, Reason: "must be positive"}
		}
	}
	if c.Cache.MaxEntriesPerTier <= 0 {
		return &ragcache.ErrInvalidConfig{Field: "cache.max_entries_per_tier", Reason: "must be positive"}
	}
	if c.Cache.TopK <= 0 {
		return &ragcache.ErrInvalidConfig{Field: "cache.top_k", Reason: "must be positive"}
	}
	if c.Embedding.Dimensions <= 0 {
		return &ragcache.ErrInvalidConfig{Field: "embedding.dimensions", Reason: "must be positive"}
	}
	switch c.Database.Backend {
	case "sqlite", "postgres", "redis":
	default:
		return &ragcache.ErrInvalidConfig{Field: "database.backend",
			Reason: fmt.Sprintf("unknown backend %q", c.Database.Backend)}
	}
	return nil
}
