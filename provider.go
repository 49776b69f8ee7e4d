package ragcache

import "context"

// EmbeddingProvider abstracts text embedding.
type EmbeddingProvider interface {
	// Embed returns one vector per input text, in order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions returns the embedding vector size.
	Dimensions() int
	// Name returns the provider name.
	Name() string
}

// Retriever searches the child-chunk space by embedding and returns ranked
// references with scores in [0, 1], highest first.
type Retriever interface {
	Search(ctx context.Context, embedding []float32, topK int) ([]ScoredChild, error)
}

// Reranker re-scores retrieval candidates for improved precision. The
// returned slice must be sorted by Score descending; it may be a filtered
// subset of the input.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []ScoredChild) ([]ScoredChild, error)
}

// Generator produces a response from a query plus parent-chunk context
// texts. An empty contexts slice is the explicit no-context signal: the
// generator should answer from its own knowledge or say nothing relevant
// was found.
type Generator interface {
	Generate(ctx context.Context, query string, contexts []string) (string, error)
	// Name returns the provider name.
	Name() string
}
