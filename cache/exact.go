package cache

import (
	"sync"
	"time"
)

// ExactStore is tier 1: normalized-query fingerprint → cached response.
type ExactStore struct {
	mu      sync.Mutex
	cfg     config
	entries map[string]*exactEntry
	stats   Stats
}

type exactEntry struct {
	response   string
	createdAt  time.Time
	lastAccess time.Time
	ttl        time.Duration
	hits       uint64
}

// NewExactStore creates an empty tier-1 store.
func NewExactStore(opts ...Option) *ExactStore {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return &ExactStore{cfg: cfg, entries: make(map[string]*exactEntry)}
}

// Get returns the cached response for a fingerprint. An expired entry is
// purged and reported as a miss.
func (s *ExactStore) Get(fingerprint string) (string, bool) {
	now := s.cfg.clock()
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[fingerprint]
	if !ok {
		s.stats.Misses++
		return "", false
	}
	if expired(now, e.createdAt, e.ttl) {
		delete(s.entries, fingerprint)
		s.stats.Expired++
		s.stats.Misses++
		return "", false
	}
	e.hits++
	e.lastAccess = now
	s.stats.Hits++
	return e.response, true
}

// Put inserts or replaces the entry for a fingerprint with a fresh
// created-at timestamp.
func (s *ExactStore) Put(fingerprint, response string, ttl time.Duration) {
	now := s.cfg.clock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[fingerprint] = &exactEntry{
		response:   response,
		createdAt:  now,
		lastAccess: now,
		ttl:        ttl,
	}
	s.evictLocked()
}

// Restore seeds an entry from durable storage, preserving its original
// creation time and hit count.
func (s *ExactStore) Restore(fingerprint, response string, createdAt time.Time, ttl time.Duration, hits uint64) {
	now := s.cfg.clock()
	if expired(now, createdAt, ttl) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[fingerprint] = &exactEntry{
		response:   response,
		createdAt:  createdAt,
		lastAccess: now,
		ttl:        ttl,
		hits:       hits,
	}
	s.evictLocked()
}

// evictLocked removes least-recently-accessed entries until the store fits
// its bound. Caller holds s.mu.
func (s *ExactStore) evictLocked() {
	for len(s.entries) > s.cfg.maxEntries {
		var oldestKey string
		var oldest time.Time
		for k, e := range s.entries {
			if oldestKey == "" || e.lastAccess.Before(oldest) {
				oldestKey = k
				oldest = e.lastAccess
			}
		}
		delete(s.entries, oldestKey)
		s.stats.Evictions++
	}
}

// Sweep purges all expired entries and returns how many were removed.
func (s *ExactStore) Sweep() int {
	now := s.cfg.clock()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for k, e := range s.entries {
		if expired(now, e.createdAt, e.ttl) {
			delete(s.entries, k)
			removed++
		}
	}
	s.stats.Expired += uint64(removed)
	return removed
}

// Len returns the current entry count, expired entries included.
func (s *ExactStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Stats returns a snapshot of the store's counters.
func (s *ExactStore) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.Entries = len(s.entries)
	return st
}
