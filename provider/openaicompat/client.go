// Package openaicompat implements the embedding and generation providers
// against any OpenAI-compatible API.
//
// Works with OpenAI, OpenRouter, Groq, Together, Fireworks, DeepSeek,
// Mistral, Ollama, vLLM, LM Studio, Azure OpenAI, and any other provider
// that implements the /embeddings and /chat/completions endpoints.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	ragcache "github.com/fnusatvik07/rag-project2"
)

// client is the shared HTTP plumbing for the embedder and generator.
type client struct {
	apiKey  string
	baseURL string
	name    string
	http    *http.Client
}

// Option configures an Embedder or Generator.
type Option func(*client)

// WithHTTPClient replaces the default http.Client, e.g. to set timeouts
// or a proxy.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithName overrides the provider name reported in errors and metrics.
// Defaults to "openai".
func WithName(name string) Option {
	return func(c *client) { c.name = name }
}

func newClient(apiKey, baseURL string, opts ...Option) client {
	c := client{
		apiKey:  apiKey,
		baseURL: baseURL,
		name:    "openai",
		http:    &http.Client{},
	}
	for _, o := range opts {
		o(&c)
	}
	return c
}

// post sends a JSON request to path and decodes a JSON response into out.
// Non-200 responses become *ragcache.ErrHTTP so retry middleware can
// inspect the status and Retry-After header.
func (c *client) post(ctx context.Context, op, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return c.err(op, fmt.Sprintf("marshal request: %v", err), err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return c.err(op, fmt.Sprintf("create request: %v", err), err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return c.err(op, fmt.Sprintf("send request: %v", err), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		httpErr := &ragcache.ErrHTTP{
			Status:     resp.StatusCode,
			Body:       string(raw),
			RetryAfter: ragcache.ParseRetryAfter(resp.Header.Get("Retry-After")),
		}
		return c.err(op, httpErr.Error(), httpErr)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return c.err(op, fmt.Sprintf("decode response: %v", err), err)
	}
	return nil
}

// Name returns the provider name.
func (c *client) Name() string { return c.name }

func (c *client) err(op, msg string, cause error) error {
	return &ragcache.ErrProvider{Provider: c.name, Op: op, Message: msg, Err: cause}
}
