package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"soul-journal-be/internal/pkg/logger"
)

func newTestService(capacity int, ttl time.Duration) *Service {
	return NewWithConfigs(map[string]Config{
		NamespaceEmbedding: {Capacity: capacity, TTL: ttl, MaxEntrySize: 1024, EvictFraction: 0.25, HitWeight: 1.0, AgeWeight: 0.001},
	}, logger.NewNopLogger())
}

func TestGetOrComputeIdempotence(t *testing.T) {
	svc := newTestService(10, time.Hour)

	calls := 0
	compute := func(ctx context.Context) (interface{}, int, error) {
		calls++
		return []float32{0.1, 0.2}, 8, nil
	}

	key := EmbeddingKey("How did I feel last week?")

	first, err := svc.GetOrCompute(context.Background(), NamespaceEmbedding, key, compute)
	if err != nil {
		t.Fatalf("first GetOrCompute: %v", err)
	}
	second, err := svc.GetOrCompute(context.Background(), NamespaceEmbedding, key, compute)
	if err != nil {
		t.Fatalf("second GetOrCompute: %v", err)
	}

	if calls != 1 {
		t.Errorf("compute called %d times, want 1", calls)
	}
	if fmt.Sprint(first) != fmt.Sprint(second) {
		t.Errorf("second call returned %v, want cached %v", second, first)
	}
}

func TestBatchEvictionRemovesLowestScored(t *testing.T) {
	const capacity = 10
	svc := newTestService(capacity, time.Hour)

	for i := 0; i < capacity; i++ {
		svc.Set(NamespaceEmbedding, fmt.Sprintf("key-%d", i), i, 4)
	}

	// Raise the score of the last seven keys so the three oldest untouched
	// keys are the eviction candidates.
	for i := 3; i < capacity; i++ {
		for j := 0; j < 5; j++ {
			svc.Get(NamespaceEmbedding, fmt.Sprintf("key-%d", i))
		}
	}

	// Overflow triggers one batched pass: ceil(0.25 * 11) = 3 entries.
	svc.Set(NamespaceEmbedding, "key-overflow", 99, 4)

	if got := svc.Len(NamespaceEmbedding); got != capacity+1-3 {
		t.Fatalf("Len = %d after eviction, want %d", got, capacity+1-3)
	}

	for i := 0; i < 3; i++ {
		if _, ok := svc.Get(NamespaceEmbedding, fmt.Sprintf("key-%d", i)); ok {
			t.Errorf("low-scored key-%d survived eviction", i)
		}
	}
	for i := 3; i < capacity; i++ {
		if _, ok := svc.Get(NamespaceEmbedding, fmt.Sprintf("key-%d", i)); !ok {
			t.Errorf("high-scored key-%d was evicted", i)
		}
	}
}

func TestTTLExpiry(t *testing.T) {
	svc := newTestService(10, time.Minute)

	base := time.Now()
	svc.now = func() time.Time { return base }

	svc.Set(NamespaceEmbedding, "k", "v", 1)
	if _, ok := svc.Get(NamespaceEmbedding, "k"); !ok {
		t.Fatal("entry missing before TTL")
	}

	svc.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, ok := svc.Get(NamespaceEmbedding, "k"); ok {
		t.Error("entry outlived its TTL class")
	}
	if got := svc.Len(NamespaceEmbedding); got != 0 {
		t.Errorf("expired entry not dropped, Len = %d", got)
	}
}

func TestOversizedEntryRejected(t *testing.T) {
	svc := newTestService(10, time.Hour)

	if ok := svc.Set(NamespaceEmbedding, "big", "v", 4096); ok {
		t.Fatal("oversized entry accepted")
	}
	if _, ok := svc.Get(NamespaceEmbedding, "big"); ok {
		t.Error("oversized entry stored")
	}
	if got := svc.Len(NamespaceEmbedding); got != 0 {
		t.Errorf("Len = %d, want 0", got)
	}
}

func TestFlushEmptiesNamespace(t *testing.T) {
	svc := newTestService(10, time.Hour)

	for i := 0; i < 5; i++ {
		svc.Set(NamespaceEmbedding, fmt.Sprintf("key-%d", i), i, 4)
	}

	svc.Flush(NamespaceEmbedding)

	if got := svc.Len(NamespaceEmbedding); got != 0 {
		t.Fatalf("Len = %d after flush, want 0", got)
	}
	if _, ok := svc.Get(NamespaceEmbedding, "key-0"); ok {
		t.Error("flushed entry still readable")
	}

	// Unknown namespaces are a no-op, not a panic.
	svc.Flush("no-such-space")

	if ok := svc.Set(NamespaceEmbedding, "fresh", "v", 4); !ok {
		t.Error("namespace unusable after flush")
	}
}

func TestRequestKeyStability(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)

	a := RequestKey("How did I  Feel last week?", "owner-1", []string{"p=1", "q=2"}, now, time.Hour)
	b := RequestKey("how did i feel last week?", "owner-1", []string{"q=2", "p=1"}, now.Add(10*time.Minute), time.Hour)
	if a != b {
		t.Errorf("normalized keys differ: %s vs %s", a, b)
	}

	otherOwner := RequestKey("how did i feel last week?", "owner-2", []string{"p=1", "q=2"}, now, time.Hour)
	if a == otherOwner {
		t.Error("keys must not collide across owners")
	}

	otherBucket := RequestKey("how did i feel last week?", "owner-1", []string{"p=1", "q=2"}, now.Add(2*time.Hour), time.Hour)
	if a == otherBucket {
		t.Error("keys must not collide across time buckets")
	}
}
