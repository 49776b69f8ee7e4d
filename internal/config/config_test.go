package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	ragcache "github.com/fnusatvik07/rag-project2"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("default config fails validation: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{"unknown strategy", func(c *Config) { c.Chunking.Strategy = "recursive" }, "chunking.strategy"},
		{"zero parent size", func(c *Config) { c.Chunking.ParentTokens = 0 }, "chunking"},
		{"child exceeds parent", func(c *Config) { c.Chunking.ChildTokens = 500 }, "chunking.child_chunk_size"},
		{"overlap too large", func(c *Config) { c.Chunking.OverlapTokens = 100 }, "chunking.child_overlap"},
		{"semantic threshold zero", func(c *Config) { c.Cache.SemanticThreshold = 0 }, "cache.semantic_threshold"},
		{"semantic threshold above one", func(c *Config) { c.Cache.SemanticThreshold = 1.01 }, "cache.semantic_threshold"},
		{"retrieval threshold negative", func(c *Config) { c.Cache.RetrievalThreshold = -0.1 }, "cache.retrieval_threshold"},
		{"retrieval above semantic", func(c *Config) {
			c.Cache.SemanticThreshold = 0.8
			c.Cache.RetrievalThreshold = 0.9
		}, "cache.retrieval_threshold"},
		{"zero exact ttl", func(c *Config) { c.Cache.ExactTTLSeconds = 0 }, "cache.exact_ttl_seconds"},
		{"negative no-context ttl", func(c *Config) { c.Cache.NoContextTTL = -1 }, "cache.no_context_ttl_seconds"},
		{"zero max entries", func(c *Config) { c.Cache.MaxEntriesPerTier = 0 }, "cache.max_entries_per_tier"},
		{"zero top k", func(c *Config) { c.Cache.TopK = 0 }, "cache.top_k"},
		{"zero dimensions", func(c *Config) { c.Embedding.Dimensions = 0 }, "embedding.dimensions"},
		{"unknown backend", func(c *Config) { c.Database.Backend = "dynamo" }, "database.backend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			var invalid *ragcache.ErrInvalidConfig
			if !errors.As(err, &invalid) {
				t.Fatalf("err = %v, want *ErrInvalidConfig", err)
			}
			if invalid.Field != tt.wantField {
				t.Errorf("field = %q, want %q", invalid.Field, tt.wantField)
			}
		})
	}
}

func TestLoadReadsTOMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ragcache.toml")
	body := `
[embedding]
model = "custom-embed"
dimensions = 768

[chunking]
strategy = "window"
window_size = 80

[cache]
semantic_threshold = 0.95
top_k = 5

[database]
backend = "postgres"
postgres_url = "postgres://localhost/rag"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Load(path)
	if cfg.Embedding.Model != "custom-embed" || cfg.Embedding.Dimensions != 768 {
		t.Errorf("embedding = %+v", cfg.Embedding)
	}
	if cfg.Chunking.Strategy != "window" || cfg.Chunking.WindowTokens != 80 {
		t.Errorf("chunking = %+v", cfg.Chunking)
	}
	if cfg.Cache.SemanticThreshold != 0.95 || cfg.Cache.TopK != 5 {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.Database.Backend != "postgres" || cfg.Database.PostgresURL != "postgres://localhost/rag" {
		t.Errorf("database = %+v", cfg.Database)
	}
	// Untouched fields keep their defaults.
	if cfg.Generator.Model != "gpt-4o-mini" {
		t.Errorf("generator model = %q, want default", cfg.Generator.Model)
	}
	if cfg.Cache.ExactTTLSeconds != 24*3600 {
		t.Errorf("exact ttl = %d, want default", cfg.Cache.ExactTTLSeconds)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if cfg.Chunking.Strategy != Default().Chunking.Strategy {
		t.Error("missing file did not fall back to defaults")
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ragcache.toml")
	body := `
[embedding]
api_key = "file-key"

[cache]
semantic_threshold = 0.9
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RAGCACHE_EMBEDDING_API_KEY", "env-key")
	t.Setenv("RAGCACHE_SEMANTIC_THRESHOLD", "0.85")
	t.Setenv("RAGCACHE_OBSERVER_ENABLED", "true")

	cfg := Load(path)
	if cfg.Embedding.APIKey != "env-key" {
		t.Errorf("api key = %q, want env value", cfg.Embedding.APIKey)
	}
	if cfg.Cache.SemanticThreshold != 0.85 {
		t.Errorf("semantic threshold = %v, want env value", cfg.Cache.SemanticThreshold)
	}
	if !cfg.Observer.Enabled {
		t.Error("observer not enabled by env")
	}
	// The generator key falls back to the embedding key when unset.
	if cfg.Generator.APIKey != "env-key" {
		t.Errorf("generator key = %q, want embedding fallback", cfg.Generator.APIKey)
	}
}
