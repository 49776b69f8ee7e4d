package cache

import (
	"testing"
	"time"
)

func TestRetrievalFingerprintLookup(t *testing.T) {
	clock, _ := testClock()
	s := NewRetrievalStore(0.8, clock)
	s.Put("fp", []float32{0, 1, 0}, []string{"c1", "c2"}, time.Hour)

	ids, ok := s.GetByFingerprint("fp")
	if !ok {
		t.Fatal("miss for stored fingerprint")
	}
	if len(ids) != 2 || ids[0] != "c1" || ids[1] != "c2" {
		t.Errorf("ids = %v", ids)
	}
	if _, ok := s.GetByFingerprint("other"); ok {
		t.Error("hit for unknown fingerprint")
	}
}

func TestRetrievalEmbeddingLookup(t *testing.T) {
	clock, _ := testClock()
	s := NewRetrievalStore(0.8, clock)
	s.Put("fp", []float32{0, 1, 0}, []string{"c1"}, time.Hour)

	ids, sim, ok := s.GetByEmbedding([]float32{0, 1, 0})
	if !ok {
		t.Fatal("miss for identical embedding")
	}
	if sim < 0.99 {
		t.Errorf("similarity = %v", sim)
	}
	if len(ids) != 1 || ids[0] != "c1" {
		t.Errorf("ids = %v", ids)
	}

	// Orthogonal query: below threshold.
	if _, _, ok := s.GetByEmbedding([]float32{1, 0, 0}); ok {
		t.Error("hit below threshold")
	}
}

func TestRetrievalNilEmbeddingIsFingerprintOnly(t *testing.T) {
	clock, _ := testClock()
	s := NewRetrievalStore(0.8, clock)
	s.Put("fp", nil, []string{"c1"}, time.Hour)

	if _, ok := s.GetByFingerprint("fp"); !ok {
		t.Error("fingerprint lookup failed")
	}
	if _, _, ok := s.GetByEmbedding([]float32{0, 1, 0}); ok {
		t.Error("embedding lookup matched an entry with no embedding")
	}
}

func TestRetrievalPutReplacesByFingerprint(t *testing.T) {
	clock, _ := testClock()
	s := NewRetrievalStore(0.8, clock)
	s.Put("fp", []float32{0, 1, 0}, []string{"old"}, time.Hour)
	s.Put("fp", []float32{0, 1, 0}, []string{"new"}, time.Hour)

	if s.Len() != 1 {
		t.Fatalf("len = %d, want 1 after replace", s.Len())
	}
	ids, _ := s.GetByFingerprint("fp")
	if len(ids) != 1 || ids[0] != "new" {
		t.Errorf("ids = %v, want replacement", ids)
	}
}

func TestRetrievalExpiryBoundary(t *testing.T) {
	clock, now := testClock()
	s := NewRetrievalStore(0.8, clock)
	s.Put("fp", []float32{0, 1, 0}, []string{"c1"}, time.Hour)

	*now = now.Add(time.Hour)
	if _, ok := s.GetByFingerprint("fp"); ok {
		t.Error("hit at exact expiry boundary")
	}
	if _, _, ok := s.GetByEmbedding([]float32{0, 1, 0}); ok {
		t.Error("embedding hit on expired entry")
	}
}

func TestRetrievalReturnedIDsAreCopies(t *testing.T) {
	clock, _ := testClock()
	s := NewRetrievalStore(0.8, clock)
	s.Put("fp", nil, []string{"c1"}, time.Hour)

	ids, _ := s.GetByFingerprint("fp")
	ids[0] = "mutated"

	again, _ := s.GetByFingerprint("fp")
	if again[0] != "c1" {
		t.Error("caller mutation leaked into the store")
	}
}

func TestSweeperRunsAllStores(t *testing.T) {
	clock, now := testClock()
	exact := NewExactStore(clock)
	retrieval := NewRetrievalStore(0.8, clock)
	exact.Put("fp", "x", time.Minute)
	retrieval.Put("fp", nil, []string{"c1"}, time.Minute)

	*now = now.Add(2 * time.Minute)
	stop := StartSweeper(time.Millisecond, exact, retrieval)
	defer stop()

	deadline := time.After(2 * time.Second)
	for exact.Len() > 0 || retrieval.Len() > 0 {
		select {
		case <-deadline:
			t.Fatalf("sweeper did not purge: exact=%d retrieval=%d", exact.Len(), retrieval.Len())
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}
