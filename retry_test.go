package ragcache

import (
	"context"
	"testing"
	"time"
)

type countingGenerator struct {
	calls  int
	errs   []error // error per call, nil past the end
	answer string
}

func (g *countingGenerator) Name() string { return "counting" }

func (g *countingGenerator) Generate(context.Context, string, []string) (string, error) {
	g.calls++
	if g.calls <= len(g.errs) && g.errs[g.calls-1] != nil {
		return "", g.errs[g.calls-1]
	}
	return g.answer, nil
}

func TestRetryRecoversFromTransientError(t *testing.T) {
	inner := &countingGenerator{answer: "ok", errs: []error{&ErrHTTP{Status: 429}}}
	g := WithGeneratorRetry(inner, RetryBaseDelay(time.Millisecond))

	got, err := g.Generate(context.Background(), "q", nil)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "ok" || inner.calls != 2 {
		t.Errorf("got %q after %d calls, want ok after 2", got, inner.calls)
	}
}

func TestRetryDoesNotRetryPermanentError(t *testing.T) {
	inner := &countingGenerator{errs: []error{&ErrHTTP{Status: 400}}}
	g := WithGeneratorRetry(inner, RetryBaseDelay(time.Millisecond))

	if _, err := g.Generate(context.Background(), "q", nil); err == nil {
		t.Fatal("want error")
	}
	if inner.calls != 1 {
		t.Errorf("calls = %d, want 1 for a permanent error", inner.calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	transient := &ErrHTTP{Status: 503}
	inner := &countingGenerator{errs: []error{transient, transient, transient}}
	g := WithGeneratorRetry(inner, RetryMaxAttempts(3), RetryBaseDelay(time.Millisecond))

	_, err := g.Generate(context.Background(), "q", nil)
	if err == nil {
		t.Fatal("want error after exhaustion")
	}
	if inner.calls != 3 {
		t.Errorf("calls = %d, want 3", inner.calls)
	}
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	transient := &ErrHTTP{Status: 429}
	inner := &countingGenerator{errs: []error{transient, transient, transient, transient}}
	g := WithGeneratorRetry(inner, RetryMaxAttempts(4), RetryBaseDelay(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := g.Generate(ctx, "q", nil)
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("retry loop ignored cancellation")
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"5", 5 * time.Second},
		{"0", 0},
		{"-3", 0},
		{"soon", 0},
	}
	for _, tt := range tests {
		if got := ParseRetryAfter(tt.in); got != tt.want {
			t.Errorf("ParseRetryAfter(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
