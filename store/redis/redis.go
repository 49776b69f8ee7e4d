// Package redis persists cache entries in Redis with native TTL
// expiration. It implements ragcache.CacheStore only; chunk hierarchies
// belong in a durable store.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	ragcache "github.com/fnusatvik07/rag-project2"
)

const keyPrefix = "ragcache"

// StoreOption configures a redis Store.
type StoreOption func(*Store)

// WithLogger sets a structured logger for the store. If not set, no logs
// are emitted.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// Store implements ragcache.CacheStore backed by Redis. Each entry is a
// JSON value under ragcache:{tier}:{key} with a Redis TTL mirroring the
// entry's, so Redis reclaims expired entries on its own.
type Store struct {
	client *redis.Client
	logger *slog.Logger
}

var _ ragcache.CacheStore = (*Store)(nil)

// New creates a Store using an existing Redis client. The caller owns the
// client; Close is a no-op.
func New(client *redis.Client, opts ...StoreOption) *Store {
	s := &Store{client: client, logger: slog.New(slog.DiscardHandler)}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Init verifies connectivity.
func (s *Store) Init(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close is a no-op; the client is owned by the caller.
func (s *Store) Close() error { return nil }

// SaveEntry stores one cache entry with the remaining TTL as the Redis
// expiration. An already-expired entry is not written.
func (s *Store) SaveEntry(ctx context.Context, rec ragcache.EntryRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal cache entry: %w", err)
	}
	expiresAt := time.Unix(rec.CreatedAt+rec.TTLSeconds, 0)
	remaining := time.Until(expiresAt)
	if remaining <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, entryKey(rec.Tier, rec.Key), payload, remaining).Err(); err != nil {
		return fmt.Errorf("save cache entry: %w", err)
	}
	return nil
}

// LoadEntries scans all live entries for a tier. Values that fail to
// decode are deleted and skipped.
func (s *Store) LoadEntries(ctx context.Context, tier string) ([]ragcache.EntryRecord, error) {
	var recs []ragcache.EntryRecord
	iter := s.client.Scan(ctx, 0, entryKey(tier, "*"), 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := s.client.Get(ctx, key).Bytes()
		if err == redis.Nil {
			continue // expired between SCAN and GET
		}
		if err != nil {
			return nil, fmt.Errorf("load cache entry %s: %w", key, err)
		}
		var rec ragcache.EntryRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			s.logger.Warn("redis: dropping corrupt cache entry", "key", key, "error", err)
			_ = s.client.Del(ctx, key).Err()
			continue
		}
		recs = append(recs, rec)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan cache entries: %w", err)
	}
	return recs, nil
}

// DeleteEntry removes one cache entry. Deleting a missing entry is not an
// error.
func (s *Store) DeleteEntry(ctx context.Context, tier, key string) error {
	if err := s.client.Del(ctx, entryKey(tier, key)).Err(); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

func entryKey(tier, key string) string {
	return strings.Join([]string{keyPrefix, tier, key}, ":")
}
