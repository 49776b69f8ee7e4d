package ragcache

import "context"

// EntryRecord is the serialized, tier-discriminated form of one cache
// entry, used by durable CacheStore backings. Embedding is set for
// semantic and retrieval entries, ChildIDs only for retrieval entries.
type EntryRecord struct {
	Tier        string    `json:"tier"` // "exact", "semantic", or "retrieval"
	Key         string    `json:"key"`  // fingerprint, or entry ID for semantic
	Fingerprint string    `json:"fingerprint"`
	Response    string    `json:"response,omitempty"`
	Embedding   []float32 `json:"embedding,omitempty"`
	ChildIDs    []string  `json:"child_ids,omitempty"`
	CreatedAt   int64     `json:"created_at"`
	TTLSeconds  int64     `json:"ttl_seconds"`
	HitCount    int64     `json:"hit_count"`
}

// CacheStore persists cache entries across process restarts. The in-memory
// tiers remain authoritative; writes are best-effort write-through and
// LoadEntries seeds the tiers at startup.
//
// Implementations must skip and delete records that fail to deserialize
// (a corrupt entry is a miss, never a fault).
type CacheStore interface {
	SaveEntry(ctx context.Context, rec EntryRecord) error
	LoadEntries(ctx context.Context, tier string) ([]EntryRecord, error)
	DeleteEntry(ctx context.Context, tier, key string) error
	Init(ctx context.Context) error
	Close() error
}

// HierarchyStore persists documents with their parent and child chunk
// records, keyed by document ID, each record carrying its link field.
type HierarchyStore interface {
	SaveHierarchy(ctx context.Context, doc Document, parents []ParentChunk, children []ChildChunk) error
	LoadHierarchy(ctx context.Context, docID string) (Document, []ParentChunk, []ChildChunk, error)
	ListDocuments(ctx context.Context) ([]Document, error)
	DeleteDocument(ctx context.Context, docID string) error
	Init(ctx context.Context) error
	Close() error
}
