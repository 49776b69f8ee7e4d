package ragcache

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrProvider reports a collaborator failure (embedding, retrieval,
// reranking, or generation): network fault, timeout, or quota exhaustion.
type ErrProvider struct {
	Provider string // provider name, e.g. "openai"
	Op       string // failing operation, e.g. "embed", "generate"
	Message  string
	Err      error
}

func (e *ErrProvider) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Op, e.Message)
}

func (e *ErrProvider) Unwrap() error { return e.Err }

// ErrHTTP is a raw HTTP failure from a provider endpoint. Retry middleware
// inspects Status and RetryAfter to decide whether and when to retry.
type ErrHTTP struct {
	Status     int
	Body       string
	RetryAfter time.Duration
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

// ErrCacheCorrupt reports a stored cache entry that failed to deserialize.
// The entry is treated as a miss and evicted; the error is never fatal.
type ErrCacheCorrupt struct {
	Tier string
	Key  string
	Err  error
}

func (e *ErrCacheCorrupt) Error() string {
	return fmt.Sprintf("corrupt %s cache entry %q: %v", e.Tier, e.Key, e.Err)
}

func (e *ErrCacheCorrupt) Unwrap() error { return e.Err }

// ErrInvalidConfig reports a configuration value rejected at startup.
// It is fatal at startup and never raised at query time.
type ErrInvalidConfig struct {
	Field  string
	Reason string
}

func (e *ErrInvalidConfig) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}

// ErrEmptyRetrieval signals that the retriever returned zero candidates.
// The cascade does not fail on it: generation runs with an explicit
// no-context signal and the result is cached with a shorter TTL.
var ErrEmptyRetrieval = errors.New("retrieval returned no candidates")

// ParseRetryAfter parses an HTTP Retry-After header value in seconds.
// Returns 0 when the value is empty or not a positive integer.
func ParseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
