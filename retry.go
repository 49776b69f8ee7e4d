package ragcache

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"
)

// RetryOption configures the retry wrappers.
type RetryOption func(*retryConfig)

type retryConfig struct {
	maxAttempts int
	baseDelay   time.Duration
	timeout     time.Duration // overall timeout across all attempts; 0 = no limit
	logger      *slog.Logger
}

// RetryMaxAttempts sets the maximum number of attempts (default: 2 — one
// retry). Provider failures must not block a query indefinitely.
func RetryMaxAttempts(n int) RetryOption {
	return func(c *retryConfig) { c.maxAttempts = n }
}

// RetryBaseDelay sets the initial backoff delay before the second attempt
// (default: 500ms). Each subsequent delay doubles.
func RetryBaseDelay(d time.Duration) RetryOption {
	return func(c *retryConfig) { c.baseDelay = d }
}

// RetryTimeout bounds the entire retry sequence. The zero value (default)
// disables the bound.
func RetryTimeout(d time.Duration) RetryOption {
	return func(c *retryConfig) { c.timeout = d }
}

// RetryLogger sets the structured logger for retry events. Retries log at
// WARN, exhaustion at ERROR. Unset means no output.
func RetryLogger(l *slog.Logger) RetryOption {
	return func(c *retryConfig) { c.logger = l }
}

func newRetryConfig(opts []RetryOption) retryConfig {
	cfg := retryConfig{maxAttempts: 2, baseDelay: 500 * time.Millisecond}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = nopLogger
	}
	return cfg
}

// WithEmbeddingRetry wraps p with bounded retry on transient HTTP errors
// (429, 503), exponential backoff with jitter, and the server's Retry-After
// as a delay floor.
func WithEmbeddingRetry(p EmbeddingProvider, opts ...RetryOption) EmbeddingProvider {
	return &retryEmbedding{inner: p, cfg: newRetryConfig(opts)}
}

// WithGeneratorRetry wraps g with the same bounded-retry policy as
// WithEmbeddingRetry.
func WithGeneratorRetry(g Generator, opts ...RetryOption) Generator {
	return &retryGenerator{inner: g, cfg: newRetryConfig(opts)}
}

type retryEmbedding struct {
	inner EmbeddingProvider
	cfg   retryConfig
}

func (r *retryEmbedding) Name() string    { return r.inner.Name() }
func (r *retryEmbedding) Dimensions() int { return r.inner.Dimensions() }

func (r *retryEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := r.cfg.withTimeout(ctx)
	defer cancel()
	return retryCall(ctx, r.cfg, r.inner.Name(), func() ([][]float32, error) {
		return r.inner.Embed(ctx, texts)
	})
}

type retryGenerator struct {
	inner Generator
	cfg   retryConfig
}

func (r *retryGenerator) Name() string { return r.inner.Name() }

func (r *retryGenerator) Generate(ctx context.Context, query string, contexts []string) (string, error) {
	ctx, cancel := r.cfg.withTimeout(ctx)
	defer cancel()
	return retryCall(ctx, r.cfg, r.inner.Name(), func() (string, error) {
		return r.inner.Generate(ctx, query, contexts)
	})
}

// withTimeout returns a child context with a deadline if cfg.timeout is set
// and ctx has no earlier one.
func (c retryConfig) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return ctx, func() {}
	}
	deadline := time.Now().Add(c.timeout)
	if existing, ok := ctx.Deadline(); ok && existing.Before(deadline) {
		return ctx, func() {}
	}
	return context.WithDeadline(ctx, deadline)
}

// retryCall calls fn up to cfg.maxAttempts times, sleeping between
// transient failures.
func retryCall[T any](ctx context.Context, cfg retryConfig, name string, fn func() (T, error)) (T, error) {
	var zero T
	var last error
	for i := 0; i < cfg.maxAttempts; i++ {
		result, err := fn()
		if err == nil || !isTransient(err) {
			return result, err
		}
		last = err
		cfg.logger.Warn("retrying transient error",
			"provider", name,
			"status", statusOf(err),
			"attempt", i+1,
			"max_attempts", cfg.maxAttempts)
		if i < cfg.maxAttempts-1 {
			timer := time.NewTimer(retryDelay(cfg.baseDelay, i, err))
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
		}
	}
	cfg.logger.Error("all retry attempts exhausted",
		"provider", name,
		"attempts", cfg.maxAttempts,
		"error", last)
	return zero, last
}

// isTransient reports whether err is a retryable HTTP error (429 or 503).
func isTransient(err error) bool {
	var e *ErrHTTP
	return errors.As(err, &e) && (e.Status == 429 || e.Status == 503)
}

// statusOf extracts the HTTP status code from an ErrHTTP, or 0.
func statusOf(err error) int {
	var e *ErrHTTP
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

// retryDelay computes the delay before retry attempt i: exponential backoff
// with up to 50% jitter, floored at the server's Retry-After when present.
func retryDelay(base time.Duration, i int, err error) time.Duration {
	exp := base * (1 << i)
	backoff := exp + time.Duration(rand.Int63n(int64(exp)/2+1))
	var e *ErrHTTP
	if errors.As(err, &e) && e.RetryAfter > backoff {
		return e.RetryAfter
	}
	return backoff
}

var (
	_ EmbeddingProvider = (*retryEmbedding)(nil)
	_ Generator         = (*retryGenerator)(nil)
)
