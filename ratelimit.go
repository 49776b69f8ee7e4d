package ragcache

import (
	"context"
	"sync"
	"time"
)

// rpmLimiter is a sliding one-minute window of request timestamps shared
// by the rate-limit wrappers. Requests block until the window has room.
type rpmLimiter struct {
	mu     sync.Mutex
	rpm    int
	window []time.Time
}

// wait blocks until the request budget allows another call. Returns
// ctx.Err() if the context is cancelled while waiting.
func (r *rpmLimiter) wait(ctx context.Context) error {
	for {
		r.mu.Lock()
		now := time.Now()
		cutoff := now.Add(-time.Minute)
		i := 0
		for i < len(r.window) && r.window[i].Before(cutoff) {
			i++
		}
		r.window = r.window[i:]

		if r.rpm <= 0 {
			r.mu.Unlock()
			return nil
		}
		if len(r.window) < r.rpm {
			r.window = append(r.window, now)
			r.mu.Unlock()
			return nil
		}
		wait := r.window[0].Add(time.Minute).Sub(now)
		r.mu.Unlock()

		if wait <= 0 {
			wait = 10 * time.Millisecond
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// WithEmbeddingRateLimit wraps p so at most rpm Embed calls start per
// minute. Compose with retry:
//
//	embedder = ragcache.WithEmbeddingRateLimit(ragcache.WithEmbeddingRetry(provider), 60)
func WithEmbeddingRateLimit(p EmbeddingProvider, rpm int) EmbeddingProvider {
	return &rateLimitEmbedding{inner: p, limiter: rpmLimiter{rpm: rpm}}
}

// WithGeneratorRateLimit wraps g so at most rpm Generate calls start per
// minute.
func WithGeneratorRateLimit(g Generator, rpm int) Generator {
	return &rateLimitGenerator{inner: g, limiter: rpmLimiter{rpm: rpm}}
}

type rateLimitEmbedding struct {
	inner   EmbeddingProvider
	limiter rpmLimiter
}

func (r *rateLimitEmbedding) Name() string    { return r.inner.Name() }
func (r *rateLimitEmbedding) Dimensions() int { return r.inner.Dimensions() }

func (r *rateLimitEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if err := r.limiter.wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.Embed(ctx, texts)
}

type rateLimitGenerator struct {
	inner   Generator
	limiter rpmLimiter
}

func (r *rateLimitGenerator) Name() string { return r.inner.Name() }

func (r *rateLimitGenerator) Generate(ctx context.Context, query string, contexts []string) (string, error) {
	if err := r.limiter.wait(ctx); err != nil {
		return "", err
	}
	return r.inner.Generate(ctx, query, contexts)
}

var (
	_ EmbeddingProvider = (*rateLimitEmbedding)(nil)
	_ Generator         = (*rateLimitGenerator)(nil)
)
