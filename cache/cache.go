// Package cache implements the three query-cache tiers: exact
// (fingerprint map), semantic (linear nearest-neighbor index over unit
// vectors), and retrieval (cached child-chunk ID sets).
//
// All stores share the same policy: TTL expiry checked lazily at lookup
// plus an optional periodic sweep, and size-bounded least-recently-used
// eviction by last access. Hit counts are analytics only, never policy.
// Each store guards its state with a single mutex; lookups and inserts
// are individually atomic and safe for concurrent use.
package cache

import "time"

// Option configures a tier store.
type Option func(*config)

type config struct {
	maxEntries int
	clock      func() time.Time
}

func defaultConfig() config {
	return config{maxEntries: 1024, clock: time.Now}
}

// WithMaxEntries bounds the store size; inserting past the bound evicts
// the least-recently-accessed entry. Default: 1024.
func WithMaxEntries(n int) Option {
	return func(c *config) { c.maxEntries = n }
}

// WithClock replaces the time source. Tests use it to cross TTL
// boundaries without sleeping.
func WithClock(fn func() time.Time) Option {
	return func(c *config) { c.clock = fn }
}

// Stats is a point-in-time snapshot of one store's counters.
type Stats struct {
	Entries   int
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Expired   uint64
}

// expired reports whether an entry created at createdAt with the given TTL
// is past expiry at now. Expiry is inclusive: an entry is gone at exactly
// createdAt + ttl.
func expired(now, createdAt time.Time, ttl time.Duration) bool {
	return !now.Before(createdAt.Add(ttl))
}
