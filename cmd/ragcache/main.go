// Command ragcache ingests documents and answers queries through the
// three-tier cache cascade.
//
// Usage:
//
//	ragcache ingest <file>...
//	ragcache query <text>
//
// Configuration comes from ragcache.toml (override with RAGCACHE_CONFIG)
// plus RAGCACHE_* environment variables.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	ragcache "github.com/fnusatvik07/rag-project2"
	"github.com/fnusatvik07/rag-project2/ingest"
	"github.com/fnusatvik07/rag-project2/internal/config"
	"github.com/fnusatvik07/rag-project2/observer"
	"github.com/fnusatvik07/rag-project2/provider/openaicompat"
	"github.com/fnusatvik07/rag-project2/store/postgres"
	"github.com/fnusatvik07/rag-project2/store/redis"
	"github.com/fnusatvik07/rag-project2/store/sqlite"
)

func main() {
	if len(os.Args) < 3 {
		usage()
	}

	cfg := config.Load(os.Getenv("RAGCACHE_CONFIG"))
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	defer app.close()

	switch os.Args[1] {
	case "ingest":
		err = app.runIngest(ctx, os.Args[2:])
	case "query":
		err = app.runQuery(ctx, os.Args[2])
	default:
		usage()
	}
	if err != nil {
		log.Fatal(err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: ragcache ingest <file>... | ragcache query <text>")
	os.Exit(2)
}

type app struct {
	cascade  *ragcache.Cascade
	pipeline *ingest.Pipeline
	shutdown []func()
}

func (a *app) close() {
	a.cascade.Close()
	for i := len(a.shutdown) - 1; i >= 0; i-- {
		a.shutdown[i]()
	}
}

func buildApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	a := &app{}

	embedder := ragcache.WithEmbeddingRetry(
		openaicompat.NewEmbedder(cfg.Embedding.APIKey, cfg.Embedding.Model, cfg.Embedding.BaseURL, cfg.Embedding.Dimensions),
		ragcache.RetryLogger(logger))
	generator := ragcache.WithGeneratorRetry(
		openaicompat.NewGenerator(cfg.Generator.APIKey, cfg.Generator.Model, cfg.Generator.BaseURL),
		ragcache.RetryLogger(logger))

	cacheStore, hierStore, err := openStores(ctx, cfg, logger, a)
	if err != nil {
		return nil, err
	}

	table := ragcache.NewHierarchyTable()

	builder, err := ingest.ForStrategy(cfg.Chunking.Strategy,
		ingest.WithParentTokens(cfg.Chunking.ParentTokens),
		ingest.WithChildTokens(cfg.Chunking.ChildTokens),
		ingest.WithOverlapTokens(cfg.Chunking.OverlapTokens),
		ingest.WithWindowTokens(cfg.Chunking.WindowTokens),
		ingest.WithGroupSize(cfg.Chunking.GroupSize))
	if err != nil {
		return nil, err
	}

	pipeOpts := []ingest.PipelineOption{ingest.WithBuilder(builder), ingest.WithLogger(logger)}
	if hierStore != nil {
		pipeOpts = append(pipeOpts, ingest.WithHierarchyStore(hierStore))
	}
	a.pipeline = ingest.NewPipeline(table, embedder, pipeOpts...)
	if err := a.pipeline.Restore(ctx); err != nil {
		return nil, err
	}

	cascadeOpts := []ragcache.CascadeOption{
		ragcache.WithSemanticThreshold(float32(cfg.Cache.SemanticThreshold)),
		ragcache.WithRetrievalThreshold(float32(cfg.Cache.RetrievalThreshold)),
		ragcache.WithTopK(cfg.Cache.TopK),
		ragcache.WithTTLs(
			time.Duration(cfg.Cache.ExactTTLSeconds)*time.Second,
			time.Duration(cfg.Cache.SemanticTTLSeconds)*time.Second,
			time.Duration(cfg.Cache.RetrievalTTL)*time.Second),
		ragcache.WithNoContextTTL(time.Duration(cfg.Cache.NoContextTTL) * time.Second),
		ragcache.WithMaxEntriesPerTier(cfg.Cache.MaxEntriesPerTier),
		ragcache.WithLogger(logger),
	}
	if cacheStore != nil {
		cascadeOpts = append(cascadeOpts, ragcache.WithPersistence(cacheStore))
	}
	if cfg.Observer.Enabled {
		inst, otelShutdown, err := observer.Init(ctx, cfg.Observer.ServiceName)
		if err != nil {
			return nil, fmt.Errorf("observer init: %w", err)
		}
		a.shutdown = append(a.shutdown, func() {
			shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shCtx)
		})
		cascadeOpts = append(cascadeOpts, ragcache.WithObserver(observer.NewQueryObserver(inst)))
	}

	a.cascade = ragcache.New(table, embedder,
		ragcache.NewTableRetriever(table),
		ragcache.NewScoreReranker(0),
		generator,
		cascadeOpts...)

	if cacheStore != nil {
		if err := a.cascade.Restore(ctx); err != nil {
			logger.Warn("cache restore failed", "error", err)
		}
	}
	return a, nil
}

// openStores opens the configured backend. Redis handles cache entries
// only, so hierarchies stay in memory on that backend.
func openStores(ctx context.Context, cfg config.Config, logger *slog.Logger, a *app) (ragcache.CacheStore, ragcache.HierarchyStore, error) {
	switch cfg.Database.Backend {
	case "sqlite":
		s := sqlite.New(cfg.Database.Path, sqlite.WithLogger(logger))
		if err := s.Init(ctx); err != nil {
			return nil, nil, err
		}
		a.shutdown = append(a.shutdown, func() { _ = s.Close() })
		return s, s, nil
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Database.PostgresURL)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres connect: %w", err)
		}
		a.shutdown = append(a.shutdown, pool.Close)
		s := postgres.New(pool)
		if err := s.Init(ctx); err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "redis":
		client := goredis.NewClient(&goredis.Options{Addr: cfg.Database.RedisAddr})
		a.shutdown = append(a.shutdown, func() { _ = client.Close() })
		s := redis.New(client, redis.WithLogger(logger))
		if err := s.Init(ctx); err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	}
	return nil, nil, nil
}

func (a *app) runIngest(ctx context.Context, paths []string) error {
	for _, path := range paths {
		h, err := a.pipeline.IngestFile(ctx, path)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", path, err)
		}
		fmt.Printf("%s: %d parents, %d children\n", path, len(h.Parents), len(h.Children))
	}
	return nil
}

func (a *app) runQuery(ctx context.Context, query string) error {
	res, err := a.cascade.Query(ctx, query)
	if err != nil {
		return err
	}
	fmt.Println(res.Response)
	fmt.Printf("\n[tier=%s no_context=%v", res.Tier, res.NoContext)
	t := res.Timings
	for _, stage := range []struct {
		name string
		us   int64
	}{
		{"lookup", t.Lookup}, {"embed", t.Embed}, {"retrieve", t.Retrieve},
		{"rerank", t.Rerank}, {"generate", t.Generate}, {"writeback", t.WriteBack},
	} {
		if stage.us > 0 {
			fmt.Printf(" %s=%.1fms", stage.name, float64(stage.us)/1000)
		}
	}
	fmt.Println("]")
	return nil
}
