package ragcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fnusatvik07/rag-project2/cache"
)

// QueryObserver receives the outcome of every cascade traversal. The
// observer subpackage provides an OTEL-backed implementation.
type QueryObserver interface {
	ObserveQuery(ctx context.Context, res QueryResult, err error)
}

// CascadeOption configures a Cascade.
type CascadeOption func(*Cascade)

type cascadeConfig struct {
	semanticThreshold  float32
	retrievalThreshold float32
	topK               int
	maxEntries         int
	exactTTL           time.Duration
	semanticTTL        time.Duration
	retrievalTTL       time.Duration
	noContextTTL       time.Duration
	callTimeout        time.Duration
	sweepInterval      time.Duration
	clock              func() time.Time
}

// WithSemanticThreshold sets the tier-2 cosine-similarity decision
// boundary. Similarity at or above it is a hit. Default: 0.92.
func WithSemanticThreshold(t float32) CascadeOption {
	return func(c *Cascade) { c.cfg.semanticThreshold = t }
}

// WithRetrievalThreshold sets the tier-3 embedding-neighborhood boundary.
// Intentionally looser than the semantic threshold: a match only gates
// which chunks feed the generator, not the final answer. Default: 0.80.
func WithRetrievalThreshold(t float32) CascadeOption {
	return func(c *Cascade) { c.cfg.retrievalThreshold = t }
}

// WithTopK sets how many child-chunk candidates the retriever fetches on a
// full pipeline run. Default: 10.
func WithTopK(k int) CascadeOption {
	return func(c *Cascade) { c.cfg.topK = k }
}

// WithTTLs sets the per-tier entry lifetimes. Default: 24h, 12h, 6h.
func WithTTLs(exact, semantic, retrieval time.Duration) CascadeOption {
	return func(c *Cascade) {
		c.cfg.exactTTL = exact
		c.cfg.semanticTTL = semantic
		c.cfg.retrievalTTL = retrieval
	}
}

// WithNoContextTTL sets the shorter lifetime used when retrieval produced
// zero candidates and the answer was generated without context.
// Default: 10m.
func WithNoContextTTL(d time.Duration) CascadeOption {
	return func(c *Cascade) { c.cfg.noContextTTL = d }
}

// WithCallTimeout bounds each collaborator call (embedding, retrieval,
// reranking, generation). A timeout surfaces as a provider failure, never
// a hang. Default: 30s.
func WithCallTimeout(d time.Duration) CascadeOption {
	return func(c *Cascade) { c.cfg.callTimeout = d }
}

// WithMaxEntriesPerTier bounds each cache store; inserting past the bound
// evicts the least-recently-accessed entry. Default: 1024.
func WithMaxEntriesPerTier(n int) CascadeOption {
	return func(c *Cascade) { c.cfg.maxEntries = n }
}

// WithSweepInterval sets how often expired entries are swept in the
// background. Zero disables the sweeper (lazy expiry still applies).
// Default: 5m.
func WithSweepInterval(d time.Duration) CascadeOption {
	return func(c *Cascade) { c.cfg.sweepInterval = d }
}

// WithClock replaces the cache stores' time source. Tests use it to cross
// TTL boundaries without sleeping.
func WithClock(fn func() time.Time) CascadeOption {
	return func(c *Cascade) { c.cfg.clock = fn }
}

// WithLogger sets a structured logger for cascade events.
func WithLogger(l *slog.Logger) CascadeOption {
	return func(c *Cascade) { c.logger = l }
}

// WithPersistence adds best-effort write-through of cache entries to a
// durable store. Call Restore after New to seed the tiers from it. The
// caller owns the store's lifecycle.
func WithPersistence(s CacheStore) CascadeOption {
	return func(c *Cascade) { c.persist = s }
}

// WithObserver registers an observer notified after every query.
func WithObserver(o QueryObserver) CascadeOption {
	return func(c *Cascade) { c.observer = o }
}

// Cascade is the tier-fallthrough orchestrator. It owns the three cache
// stores for its lifetime and holds read-only references to the shared
// hierarchy table and the collaborators. A Cascade is stateless per call
// apart from those shared stores, so concurrent Query calls are safe.
type Cascade struct {
	exact     *cache.ExactStore
	semantic  *cache.SemanticIndex
	retrieval *cache.RetrievalStore

	table     *HierarchyTable
	embedding EmbeddingProvider
	retriever Retriever
	reranker  Reranker
	generator Generator

	persist  CacheStore
	observer QueryObserver
	logger   *slog.Logger
	cfg      cascadeConfig

	stopSweep func()
}

// New creates a Cascade with freshly constructed cache tiers. No global
// state is involved; tests construct independent instances per case.
func New(table *HierarchyTable, embedding EmbeddingProvider, retriever Retriever, reranker Reranker, generator Generator, opts ...CascadeOption) *Cascade {
	c := &Cascade{
		table:     table,
		embedding: embedding,
		retriever: retriever,
		reranker:  reranker,
		generator: generator,
		logger:    nopLogger,
		cfg: cascadeConfig{
			semanticThreshold:  0.92,
			retrievalThreshold: 0.80,
			topK:               10,
			maxEntries:         1024,
			exactTTL:           24 * time.Hour,
			semanticTTL:        12 * time.Hour,
			retrievalTTL:       6 * time.Hour,
			noContextTTL:       10 * time.Minute,
			callTimeout:        30 * time.Second,
			sweepInterval:      5 * time.Minute,
			clock:              time.Now,
		},
	}
	for _, o := range opts {
		o(c)
	}

	storeOpts := []cache.Option{cache.WithMaxEntries(c.cfg.maxEntries), cache.WithClock(c.cfg.clock)}
	c.exact = cache.NewExactStore(storeOpts...)
	c.semantic = cache.NewSemanticIndex(c.cfg.semanticThreshold, storeOpts...)
	c.retrieval = cache.NewRetrievalStore(c.cfg.retrievalThreshold, storeOpts...)

	if c.cfg.sweepInterval > 0 {
		c.stopSweep = cache.StartSweeper(c.cfg.sweepInterval, c.exact, c.semantic, c.retrieval)
	}
	return c
}

// Close stops the background sweeper. It does not close the persistence
// store, which the caller constructed and owns.
func (c *Cascade) Close() {
	if c.stopSweep != nil {
		c.stopSweep()
		c.stopSweep = nil
	}
}

// TierStats is a snapshot of all three cache tiers.
type TierStats struct {
	Exact     cache.Stats
	Semantic  cache.Stats
	Retrieval cache.Stats
}

// Stats returns current per-tier cache counters.
func (c *Cascade) Stats() TierStats {
	return TierStats{
		Exact:     c.exact.Stats(),
		Semantic:  c.semantic.Stats(),
		Retrieval: c.retrieval.Stats(),
	}
}

// Query runs one cascade traversal: tier 1 → tier 2 → tier 3 → full
// pipeline, short-circuiting on the first hit. Tier checks are strictly
// ordered and never parallelized — an earlier hit must always preempt a
// later, more expensive stage. On a full-pipeline run the result is
// written back to every tier.
//
// Callers always get either a result or a structured error; a canceled
// context aborts the in-flight collaborator call and skips write-back.
func (c *Cascade) Query(ctx context.Context, query string) (QueryResult, error) {
	res := QueryResult{
		RunID:       NewID(),
		Fingerprint: Fingerprint(query),
	}
	err := c.run(ctx, query, &res)
	if c.observer != nil {
		c.observer.ObserveQuery(ctx, res, err)
	}
	c.logger.Debug("query served",
		"run_id", res.RunID,
		"tier", res.Tier.String(),
		"no_context", res.NoContext,
		"error", err != nil)
	return res, err
}

func (c *Cascade) run(ctx context.Context, query string, res *QueryResult) error {
	fp := res.Fingerprint

	// Tier 1: exact fingerprint match. No collaborator calls.
	lookupStart := time.Now()
	if resp, ok := c.exact.Get(fp); ok {
		res.Tier = TierExact
		res.Response = resp
		res.Timings.Lookup = micros(lookupStart)
		return nil
	}

	// Tier 2 needs the query embedding.
	embedStart := time.Now()
	vec, err := c.embed(ctx, fp)
	if err != nil {
		return err
	}
	res.Timings.Embed = micros(embedStart)

	if m, ok := c.semantic.Query(vec); ok {
		res.Tier = TierSemantic
		res.Response = m.Response
		// Backfill tier 1 so a repeated literal query short-circuits
		// before the embedding call next time.
		c.exact.Put(fp, m.Response, c.cfg.exactTTL)
		c.persistEntry(ctx, EntryRecord{
			Tier:        TierExact.String(),
			Key:         fp,
			Fingerprint: fp,
			Response:    m.Response,
			CreatedAt:   c.cfg.clock().Unix(),
			TTLSeconds:  int64(c.cfg.exactTTL.Seconds()),
		})
		res.Timings.Lookup = micros(lookupStart) - res.Timings.Embed
		return nil
	}

	// Tier 3: fingerprint lookup first (cheap), then the embedding
	// neighborhood, reusing the vector computed above.
	childIDs, ok := c.retrieval.GetByFingerprint(fp)
	if !ok {
		childIDs, _, ok = c.retrieval.GetByEmbedding(vec)
	}
	if ok {
		parents := c.table.ExpandParents(childIDs)
		if len(parents) > 0 {
			res.Timings.Lookup = micros(lookupStart) - res.Timings.Embed
			genStart := time.Now()
			resp, err := c.generate(ctx, query, parentTexts(parents))
			if err != nil {
				return err
			}
			res.Timings.Generate = micros(genStart)
			res.Tier = TierRetrieval
			res.Response = resp
			res.ContextIDs = childIDs
			c.writeBack(ctx, res, vec)
			return nil
		}
		// Cached chunk refs no longer resolve (document re-ingested or
		// removed) — treat as a miss.
		c.logger.Debug("retrieval entry unresolvable, falling through", "fingerprint", fp)
	}
	res.Timings.Lookup = micros(lookupStart) - res.Timings.Embed

	return c.fullPipeline(ctx, query, vec, res)
}

// fullPipeline runs retrieve → rerank → expand → generate, then writes the
// result back to all tiers.
func (c *Cascade) fullPipeline(ctx context.Context, query string, vec []float32, res *QueryResult) error {
	retrieveStart := time.Now()
	candidates, err := c.search(ctx, vec)
	if err != nil {
		return err
	}
	res.Timings.Retrieve = micros(retrieveStart)

	var contexts []string
	if len(candidates) == 0 {
		// Not fatal: generation runs with an explicit no-context signal
		// and the answer is cached with a shorter TTL.
		res.NoContext = true
		c.logger.Debug("empty retrieval", "run_id", res.RunID, "reason", ErrEmptyRetrieval)
	} else {
		rerankStart := time.Now()
		candidates, err = c.rerank(ctx, query, candidates)
		if err != nil {
			return err
		}
		res.Timings.Rerank = micros(rerankStart)

		ids := make([]string, len(candidates))
		for i, cand := range candidates {
			ids[i] = cand.ChildID
		}
		res.ContextIDs = ids
		contexts = parentTexts(c.table.ExpandParents(ids))
		if len(contexts) == 0 {
			res.NoContext = true
		}
	}

	genStart := time.Now()
	resp, err := c.generate(ctx, query, contexts)
	if err != nil {
		return err
	}
	res.Timings.Generate = micros(genStart)

	res.Tier = TierMiss
	res.Response = resp
	c.writeBack(ctx, res, vec)
	return nil
}

// writeBack populates all tiers with fresh created-at stamps. Best-effort:
// a failure to persist one tier never invalidates the response already
// being returned. A canceled caller skips write-back entirely so partial
// results are never committed.
func (c *Cascade) writeBack(ctx context.Context, res *QueryResult, vec []float32) {
	if ctx.Err() != nil {
		c.logger.Debug("write-back skipped", "run_id", res.RunID, "reason", ctx.Err())
		return
	}
	start := time.Now()

	exactTTL, semanticTTL := c.cfg.exactTTL, c.cfg.semanticTTL
	if res.NoContext {
		exactTTL, semanticTTL = c.cfg.noContextTTL, c.cfg.noContextTTL
	}
	now := c.cfg.clock().Unix()
	fp := res.Fingerprint

	c.exact.Put(fp, res.Response, exactTTL)
	c.persistEntry(ctx, EntryRecord{
		Tier:        TierExact.String(),
		Key:         fp,
		Fingerprint: fp,
		Response:    res.Response,
		CreatedAt:   now,
		TTLSeconds:  int64(exactTTL.Seconds()),
	})

	c.semantic.Put(vec, fp, res.Response, semanticTTL)
	c.persistEntry(ctx, EntryRecord{
		Tier:        TierSemantic.String(),
		Key:         fp,
		Fingerprint: fp,
		Response:    res.Response,
		Embedding:   vec,
		CreatedAt:   now,
		TTLSeconds:  int64(semanticTTL.Seconds()),
	})

	// A no-context answer has no chunk set worth replaying.
	if len(res.ContextIDs) > 0 {
		c.retrieval.Put(fp, vec, res.ContextIDs, c.cfg.retrievalTTL)
		c.persistEntry(ctx, EntryRecord{
			Tier:        TierRetrieval.String(),
			Key:         fp,
			Fingerprint: fp,
			Embedding:   vec,
			ChildIDs:    res.ContextIDs,
			CreatedAt:   now,
			TTLSeconds:  int64(c.cfg.retrievalTTL.Seconds()),
		})
	}

	res.Timings.WriteBack = micros(start)
}

// Restore seeds the cache tiers from the persistence store. Records that
// fail validation are corrupt: deleted and skipped, never fatal.
func (c *Cascade) Restore(ctx context.Context) error {
	if c.persist == nil {
		return nil
	}
	for _, tier := range []Tier{TierExact, TierSemantic, TierRetrieval} {
		recs, err := c.persist.LoadEntries(ctx, tier.String())
		if err != nil {
			return fmt.Errorf("load %s entries: %w", tier, err)
		}
		for _, rec := range recs {
			if err := c.validRecord(tier, rec); err != nil {
				c.logger.Warn("dropping cache entry",
					"error", &ErrCacheCorrupt{Tier: tier.String(), Key: rec.Key, Err: err})
				if derr := c.persist.DeleteEntry(ctx, tier.String(), rec.Key); derr != nil {
					c.logger.Warn("delete corrupt entry failed", "key", rec.Key, "error", derr)
				}
				continue
			}
			createdAt := time.Unix(rec.CreatedAt, 0)
			ttl := time.Duration(rec.TTLSeconds) * time.Second
			hits := uint64(rec.HitCount)
			switch tier {
			case TierExact:
				c.exact.Restore(rec.Key, rec.Response, createdAt, ttl, hits)
			case TierSemantic:
				c.semantic.Restore(rec.Embedding, rec.Fingerprint, rec.Response, createdAt, ttl, hits)
			case TierRetrieval:
				c.retrieval.Restore(rec.Key, rec.Embedding, rec.ChildIDs, createdAt, ttl, hits)
			}
		}
	}
	return nil
}

func (c *Cascade) validRecord(tier Tier, rec EntryRecord) error {
	if rec.Key == "" {
		return fmt.Errorf("empty key")
	}
	if rec.TTLSeconds <= 0 || rec.CreatedAt <= 0 {
		return fmt.Errorf("bad timestamps (created_at=%d ttl=%d)", rec.CreatedAt, rec.TTLSeconds)
	}
	switch tier {
	case TierExact:
		if rec.Response == "" {
			return fmt.Errorf("empty response")
		}
	case TierSemantic:
		if len(rec.Embedding) == 0 {
			return fmt.Errorf("missing embedding")
		}
		if dim := c.embedding.Dimensions(); dim > 0 && len(rec.Embedding) != dim {
			return fmt.Errorf("embedding dimension %d, want %d", len(rec.Embedding), dim)
		}
	case TierRetrieval:
		if len(rec.ChildIDs) == 0 {
			return fmt.Errorf("empty child id set")
		}
	}
	return nil
}

// --- collaborator calls, each bounded by the configured timeout ---

func (c *Cascade) embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()
	vecs, err := c.embedding.Embed(ctx, []string{text})
	if err != nil {
		return nil, providerErr(c.embedding.Name(), "embed", err)
	}
	if len(vecs) == 0 {
		return nil, &ErrProvider{Provider: c.embedding.Name(), Op: "embed", Message: "no embedding returned"}
	}
	return vecs[0], nil
}

func (c *Cascade) search(ctx context.Context, vec []float32) ([]ScoredChild, error) {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()
	candidates, err := c.retriever.Search(ctx, vec, c.cfg.topK)
	if err != nil {
		return nil, providerErr("retriever", "search", err)
	}
	return candidates, nil
}

func (c *Cascade) rerank(ctx context.Context, query string, candidates []ScoredChild) ([]ScoredChild, error) {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()
	reranked, err := c.reranker.Rerank(ctx, query, candidates)
	if err != nil {
		return nil, providerErr("reranker", "rerank", err)
	}
	return reranked, nil
}

func (c *Cascade) generate(ctx context.Context, query string, contexts []string) (string, error) {
	ctx, cancel := c.callCtx(ctx)
	defer cancel()
	resp, err := c.generator.Generate(ctx, query, contexts)
	if err != nil {
		return "", providerErr(c.generator.Name(), "generate", err)
	}
	return resp, nil
}

func (c *Cascade) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.callTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.cfg.callTimeout)
}

func (c *Cascade) persistEntry(ctx context.Context, rec EntryRecord) {
	if c.persist == nil {
		return
	}
	if err := c.persist.SaveEntry(ctx, rec); err != nil {
		c.logger.Warn("cache persist failed", "tier", rec.Tier, "key", rec.Key, "error", err)
	}
}

func providerErr(name, op string, err error) error {
	var pe *ErrProvider
	if errors.As(err, &pe) {
		return err
	}
	return &ErrProvider{Provider: name, Op: op, Message: err.Error(), Err: err}
}

func parentTexts(parents []ParentChunk) []string {
	texts := make([]string, len(parents))
	for i, p := range parents {
		texts[i] = p.Text
	}
	return texts
}

func micros(start time.Time) int64 {
	return time.Since(start).Microseconds()
}
