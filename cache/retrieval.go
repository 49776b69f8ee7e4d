package cache

import (
	"sync"
	"time"
)

// RetrievalStore is tier 3: query → the child-chunk IDs previously judged
// relevant. A hit skips vector search and reranking but not generation.
// Lookup is by fingerprint first (cheap), then by embedding neighborhood
// with a threshold that is intentionally looser than the semantic tier's,
// since a match only gates which chunks feed the generator.
type RetrievalStore struct {
	mu        sync.Mutex
	cfg       config
	threshold float32
	byFP      map[string]*retrievalEntry
	entries   []*retrievalEntry
	stats     Stats
}

type retrievalEntry struct {
	fingerprint string
	vec         []float32 // unit-normalized; nil when no embedding was available
	childIDs    []string
	createdAt   time.Time
	lastAccess  time.Time
	ttl         time.Duration
	hits        uint64
}

// NewRetrievalStore creates an empty tier-3 store with the given
// embedding-neighborhood threshold.
func NewRetrievalStore(threshold float32, opts ...Option) *RetrievalStore {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &RetrievalStore{
		cfg:       cfg,
		threshold: threshold,
		byFP:      make(map[string]*retrievalEntry),
	}
}

// Put inserts or replaces the entry for a fingerprint. embedding may be
// nil; the entry is then reachable only by fingerprint.
func (s *RetrievalStore) Put(fingerprint string, embedding []float32, childIDs []string, ttl time.Duration) {
	s.put(fingerprint, embedding, childIDs, s.cfg.clock(), ttl, 0)
}

// Restore seeds an entry from durable storage, preserving creation time
// and hit count.
func (s *RetrievalStore) Restore(fingerprint string, embedding []float32, childIDs []string, createdAt time.Time, ttl time.Duration, hits uint64) {
	if expired(s.cfg.clock(), createdAt, ttl) {
		return
	}
	s.put(fingerprint, embedding, childIDs, createdAt, ttl, hits)
}

func (s *RetrievalStore) put(fingerprint string, embedding []float32, childIDs []string, createdAt time.Time, ttl time.Duration, hits uint64) {
	var vec []float32
	if len(embedding) > 0 {
		vec = normalize(embedding)
	}
	ids := make([]string, len(childIDs))
	copy(ids, childIDs)

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.byFP[fingerprint]; ok {
		s.removeLocked(old)
	}
	e := &retrievalEntry{
		fingerprint: fingerprint,
		vec:         vec,
		childIDs:    ids,
		createdAt:   createdAt,
		lastAccess:  s.cfg.clock(),
		ttl:         ttl,
		hits:        hits,
	}
	s.byFP[fingerprint] = e
	s.entries = append(s.entries, e)
	s.evictLocked()
}

// GetByFingerprint returns the cached child-chunk IDs for an exact
// fingerprint match.
func (s *RetrievalStore) GetByFingerprint(fingerprint string) ([]string, bool) {
	now := s.cfg.clock()
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byFP[fingerprint]
	if !ok {
		s.stats.Misses++
		return nil, false
	}
	if expired(now, e.createdAt, e.ttl) {
		s.removeLocked(e)
		s.stats.Expired++
		s.stats.Misses++
		return nil, false
	}
	e.hits++
	e.lastAccess = now
	s.stats.Hits++
	return append([]string(nil), e.childIDs...), true
}

// GetByEmbedding scans live embedded entries for the nearest neighbor at
// or above the store's threshold. Ties within float tolerance of the
// maximum resolve to the most recently created entry.
func (s *RetrievalStore) GetByEmbedding(embedding []float32) ([]string, float32, bool) {
	q := normalize(embedding)
	now := s.cfg.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	var best *retrievalEntry
	var bestSim float32
	for _, e := range s.entries {
		if expired(now, e.createdAt, e.ttl) || e.vec == nil {
			continue
		}
		sim := dot(q, e.vec)
		switch {
		case best == nil || sim > bestSim+simEpsilon:
			best = e
			bestSim = sim
		case sim >= bestSim-simEpsilon && e.createdAt.After(best.createdAt):
			best = e
			if sim > bestSim {
				bestSim = sim
			}
		}
	}

	if best == nil || bestSim < s.threshold {
		s.stats.Misses++
		return nil, 0, false
	}
	best.hits++
	best.lastAccess = now
	s.stats.Hits++
	return append([]string(nil), best.childIDs...), bestSim, true
}

// removeLocked drops e from both the map and the scan slice. Caller holds s.mu.
func (s *RetrievalStore) removeLocked(e *retrievalEntry) {
	delete(s.byFP, e.fingerprint)
	for i, cand := range s.entries {
		if cand == e {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return
		}
	}
}

// evictLocked removes least-recently-accessed entries past the bound.
// Caller holds s.mu.
func (s *RetrievalStore) evictLocked() {
	for len(s.entries) > s.cfg.maxEntries {
		oldest := s.entries[0]
		for _, e := range s.entries[1:] {
			if e.lastAccess.Before(oldest.lastAccess) {
				oldest = e
			}
		}
		s.removeLocked(oldest)
		s.stats.Evictions++
	}
}

// Sweep purges all expired entries and returns how many were removed.
func (s *RetrievalStore) Sweep() int {
	now := s.cfg.clock()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for _, e := range append([]*retrievalEntry(nil), s.entries...) {
		if expired(now, e.createdAt, e.ttl) {
			s.removeLocked(e)
			removed++
		}
	}
	s.stats.Expired += uint64(removed)
	return removed
}

// Len returns the current entry count, expired entries included.
func (s *RetrievalStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Stats returns a snapshot of the store's counters.
func (s *RetrievalStore) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.Entries = len(s.entries)
	return st
}
