package openaicompat

import (
	"context"
	"fmt"

	ragcache "github.com/fnusatvik07/rag-project2"
)

// Embedder implements ragcache.EmbeddingProvider against the /embeddings
// endpoint.
type Embedder struct {
	client
	model      string
	dimensions int
}

var _ ragcache.EmbeddingProvider = (*Embedder)(nil)

// NewEmbedder creates an embedding provider. baseURL is the API base
// (e.g. "https://api.openai.com/v1"); the /embeddings path is appended.
// dimensions must match what the model emits; the cascade rejects
// mismatched vectors when restoring persisted entries.
func NewEmbedder(apiKey, model, baseURL string, dimensions int, opts ...Option) *Embedder {
	return &Embedder{
		client:     newClient(apiKey, baseURL, opts...),
		model:      model,
		dimensions: dimensions,
	}
}

// Dimensions returns the embedding vector width.
func (e *Embedder) Dimensions() int { return e.dimensions }

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns one vector per input text, in input order.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var resp embeddingResponse
	if err := e.post(ctx, "embed", "/embeddings", embeddingRequest{Model: e.model, Input: texts}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, e.err("embed", fmt.Sprintf("got %d embeddings for %d inputs", len(resp.Data), len(texts)), nil)
	}
	// The API is allowed to reorder; Index restores input order.
	vecs := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			return nil, e.err("embed", fmt.Sprintf("embedding index %d out of range", d.Index), nil)
		}
		vecs[d.Index] = d.Embedding
	}
	return vecs, nil
}
