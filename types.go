package ragcache

// --- Domain types ---

// Document is an opaque source text plus metadata. Immutable once ingested.
type Document struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Source    string `json:"source"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at"`
}

// ParentChunk is a large context-bearing span of a document. Parents own an
// ordered list of child-chunk IDs; children hold only a non-owning ID
// back-reference, so the hierarchy is acyclic.
//
// Start and End are byte offsets into the document content. For the
// parent-child strategy, parent spans partition the document: non-overlapping,
// in order, no gaps.
type ParentChunk struct {
	ID         string   `json:"id"`
	DocumentID string   `json:"document_id"`
	Text       string   `json:"text"`
	OrderIndex int      `json:"order_index"`
	Strategy   string   `json:"strategy"`
	ChildIDs   []string `json:"child_ids"`
	Start      int      `json:"start"`
	End        int      `json:"end"`
}

// ChildChunk is a small span nested within a parent, used as the retrieval
// unit. Its text is a sub-span of the parent's text and Start/End are byte
// offsets into the document content. Embedding is populated at ingest time
// and is nil for parents-only flows.
type ChildChunk struct {
	ID         string    `json:"id"`
	ParentID   string    `json:"parent_id"`
	DocumentID string    `json:"document_id"`
	Text       string    `json:"text"`
	OrderIndex int       `json:"order_index"`
	Start      int       `json:"start"`
	End        int       `json:"end"`
	Embedding  []float32 `json:"-"`
}

// ScoredChild is a child-chunk reference with a retrieval score in [0, 1].
type ScoredChild struct {
	ChildID string  `json:"child_id"`
	Score   float32 `json:"score"`
}

// --- Query results ---

// Tier identifies which cache tier served a query.
type Tier int

const (
	// TierMiss means no tier hit; the full pipeline ran.
	TierMiss Tier = 0
	// TierExact is a fingerprint match (tier 1).
	TierExact Tier = 1
	// TierSemantic is an embedding-similarity match (tier 2).
	TierSemantic Tier = 2
	// TierRetrieval is a cached-retrieval match (tier 3): retrieval and
	// reranking were skipped, generation still ran.
	TierRetrieval Tier = 3
)

func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierSemantic:
		return "semantic"
	case TierRetrieval:
		return "retrieval"
	default:
		return "miss"
	}
}

// StageTimings records wall-clock duration per pipeline stage. Stages that
// did not run are zero.
type StageTimings struct {
	Lookup    int64 `json:"lookup_us"`    // cache-tier checks, microseconds
	Embed     int64 `json:"embed_us"`     // embedding provider call
	Retrieve  int64 `json:"retrieve_us"`  // vector search
	Rerank    int64 `json:"rerank_us"`    // reranker call
	Generate  int64 `json:"generate_us"`  // generator call
	WriteBack int64 `json:"writeback_us"` // cache population
}

// QueryResult is the outcome of a single cascade traversal.
type QueryResult struct {
	// RunID uniquely identifies this traversal (UUIDv7, time-sortable).
	RunID string `json:"run_id"`
	// Response is the answer text, possibly served from cache.
	Response string `json:"response"`
	// Tier reports which cache tier served the response.
	Tier Tier `json:"tier"`
	// Fingerprint is the normalized form of the query.
	Fingerprint string `json:"fingerprint"`
	// ContextIDs are the child-chunk IDs whose parents fed generation.
	// Empty for tier-1 and tier-2 hits.
	ContextIDs []string `json:"context_ids,omitempty"`
	// NoContext is true when retrieval produced zero candidates and the
	// generator was asked to answer without context.
	NoContext bool `json:"no_context,omitempty"`
	// Timings holds per-stage latency.
	Timings StageTimings `json:"timings"`
}
