package cache

import (
	"sync"
	"time"
)

// SemanticIndex is tier 2: query embedding → cached response, matched by
// cosine similarity at or above a threshold. Internally a linear scan over
// unit-normalized vectors; fine for bounded cache sizes, and an
// approximate index can replace it without changing the contract.
type SemanticIndex struct {
	mu        sync.Mutex
	cfg       config
	threshold float32
	entries   []*semanticEntry
	stats     Stats
}

type semanticEntry struct {
	vec         []float32 // unit-normalized at insert
	fingerprint string
	response    string
	createdAt   time.Time
	lastAccess  time.Time
	ttl         time.Duration
	hits        uint64
}

// Match is a successful semantic lookup.
type Match struct {
	Response    string
	Fingerprint string // fingerprint recorded when the entry was created
	Similarity  float32
}

// NewSemanticIndex creates an empty tier-2 index. Similarity at or above
// threshold counts as a hit; strictly below does not.
func NewSemanticIndex(threshold float32, opts ...Option) *SemanticIndex {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &SemanticIndex{cfg: cfg, threshold: threshold}
}

// Put inserts an entry with a fresh created-at timestamp. The embedding is
// copied and unit-normalized.
func (s *SemanticIndex) Put(embedding []float32, fingerprint, response string, ttl time.Duration) {
	now := s.cfg.clock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, &semanticEntry{
		vec:         normalize(embedding),
		fingerprint: fingerprint,
		response:    response,
		createdAt:   now,
		lastAccess:  now,
		ttl:         ttl,
	})
	s.evictLocked()
}

// Restore seeds an entry from durable storage, preserving creation time
// and hit count.
func (s *SemanticIndex) Restore(embedding []float32, fingerprint, response string, createdAt time.Time, ttl time.Duration, hits uint64) {
	now := s.cfg.clock()
	if expired(now, createdAt, ttl) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, &semanticEntry{
		vec:         normalize(embedding),
		fingerprint: fingerprint,
		response:    response,
		createdAt:   createdAt,
		lastAccess:  now,
		ttl:         ttl,
		hits:        hits,
	})
	s.evictLocked()
}

// Query scans all live entries for the nearest neighbor. A hit requires
// similarity >= threshold. Entries within float tolerance of the maximum
// are tied; the most recently created one wins. Expired entries found
// during the scan are purged.
func (s *SemanticIndex) Query(embedding []float32) (Match, bool) {
	q := normalize(embedding)
	now := s.cfg.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	var best *semanticEntry
	var bestSim float32
	live := s.entries[:0]
	for _, e := range s.entries {
		if expired(now, e.createdAt, e.ttl) {
			s.stats.Expired++
			continue
		}
		live = append(live, e)
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
	s.entries = live

	if best == nil || bestSim < s.threshold {
		s.stats.Misses++
		return Match{}, false
	}
	best.hits++
	best.lastAccess = now
	s.stats.Hits++
	return Match{Response: best.response, Fingerprint: best.fingerprint, Similarity: bestSim}, true
}

// evictLocked removes least-recently-accessed entries past the bound.
// Caller holds s.mu.
func (s *SemanticIndex) evictLocked() {
	for len(s.entries) > s.cfg.maxEntries {
		oldest := 0
		for i, e := range s.entries {
			if e.lastAccess.Before(s.entries[oldest].lastAccess) {
				oldest = i
			}
		}
		s.entries = append(s.entries[:oldest], s.entries[oldest+1:]...)
		s.stats.Evictions++
	}
}

// Sweep purges all expired entries and returns how many were removed.
func (s *SemanticIndex) Sweep() int {
	now := s.cfg.clock()
	s.mu.Lock()
	defer s.mu.Unlock()
	live := s.entries[:0]
	removed := 0
	for _, e := range s.entries {
		if expired(now, e.createdAt, e.ttl) {
			removed++
			continue
		}
		live = append(live, e)
	}
	s.entries = live
	s.stats.Expired += uint64(removed)
	return removed
}

// Len returns the current entry count, expired entries included.
func (s *SemanticIndex) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Stats returns a snapshot of the index's counters.
func (s *SemanticIndex) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.Entries = len(s.entries)
	return st
}
