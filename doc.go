// Package ragcache is a query-cache cascade for retrieval-augmented
// generation pipelines.
//
// Three cache tiers sit in front of the full retrieve → rerank → generate
// pipeline, each cheaper than the next stage:
//
//   - Tier 1: exact match on a normalized query fingerprint
//   - Tier 2: semantic match by cosine similarity over query embeddings
//   - Tier 3: cached retrieval results (child-chunk IDs), skipping vector
//     search and reranking but not generation
//
// A miss on all three tiers runs the full pipeline and writes the result
// back to every tier.
//
// The retrieval tier depends on a hierarchical chunk store: documents are
// split into large parent chunks (context for the generator) and small
// child chunks (the retrieval unit), with stable bidirectional ID links.
// The ingest subpackage builds hierarchies under several splitting
// strategies; the [HierarchyTable] publishes completed builds for
// concurrent query-time reads.
//
// # Quick start
//
//	table := ragcache.NewHierarchyTable()
//	pipeline := ingest.NewPipeline(table, embedding)
//	pipeline.IngestText(ctx, "guide", "Guide", "local", text)
//
//	cascade := ragcache.New(table, embedding,
//		ragcache.NewTableRetriever(table),
//		ragcache.NewScoreReranker(0.2),
//		generator,
//	)
//	res, err := cascade.Query(ctx, "what is X?")
//	fmt.Println(res.Tier, res.Response)
//
// # Core interfaces
//
//   - [EmbeddingProvider] — text-to-vector embedding
//   - [Retriever] — vector search over child chunks
//   - [Reranker] — candidate reordering/filtering
//   - [Generator] — response generation from query + parent contexts
//   - [CacheStore], [HierarchyStore] — optional durable backing
//
// Durable implementations live in store/sqlite, store/postgres, and
// store/redis. OpenAI-compatible providers live in provider/openaicompat.
package ragcache
