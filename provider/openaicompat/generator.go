package openaicompat

import (
	"context"
	"strings"

	ragcache "github.com/fnusatvik07/rag-project2"
)

const systemPrompt = "You are a helpful assistant. Answer the question using the provided context. " +
	"If the context does not contain the answer, say so."

const noContextPrompt = "You are a helpful assistant. No reference material was found for this " +
	"question; answer from general knowledge and say that no supporting context was available."

// Generator implements ragcache.Generator against the /chat/completions
// endpoint.
type Generator struct {
	client
	model string
}

var _ ragcache.Generator = (*Generator)(nil)

// NewGenerator creates a chat-based generator. baseURL is the API base;
// the /chat/completions path is appended.
func NewGenerator(apiKey, model, baseURL string, opts ...Option) *Generator {
	return &Generator{client: newClient(apiKey, baseURL, opts...), model: model}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate answers the query grounded on contexts. An empty contexts
// slice switches to the no-context prompt instead of fabricating
// grounding.
func (g *Generator) Generate(ctx context.Context, query string, contexts []string) (string, error) {
	messages := []chatMessage{
		{Role: "system", Content: buildSystem(contexts)},
		{Role: "user", Content: query},
	}
	var resp chatResponse
	if err := g.post(ctx, "generate", "/chat/completions", chatRequest{Model: g.model, Messages: messages}, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", g.err("generate", "response has no choices", nil)
	}
	return resp.Choices[0].Message.Content, nil
}

func buildSystem(contexts []string) string {
	if len(contexts) == 0 {
		return noContextPrompt
	}
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\nContext:\n")
	for i, c := range contexts {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		b.WriteString(c)
	}
	return b.String()
}
