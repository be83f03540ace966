package service

import (
	"context"
	"testing"
	"time"

	"soul-journal-be/internal/pkg/logger"
	"soul-journal-be/pkg/cache"
	"soul-journal-be/pkg/events"
)

func TestJournalEventFlushesDerivedCaches(t *testing.T) {
	cacheService := cache.New(logger.NewNopLogger())
	cacheService.Set(cache.NamespaceResult, "task-1", "rows", 8)
	cacheService.Set(cache.NamespaceResponse, "req-1", "answer", 8)
	cacheService.Set(cache.NamespaceEmbedding, "q-1", []float32{0.1}, 8)

	consumer := &eventConsumerService{
		cache:  cacheService,
		logger: logger.NewNopLogger(),
	}

	event := events.BaseEvent{
		Type:       "journal.JOURNAL_ENTRY_CREATED",
		Data:       map[string]interface{}{"entry_id": "e-1", "owner_id": "o-1"},
		OccurredAt: time.Now().UTC(),
	}
	if err := consumer.handleJournalEvent(context.Background(), event); err != nil {
		t.Fatalf("handleJournalEvent: %v", err)
	}

	if got := cacheService.Len(cache.NamespaceResult); got != 0 {
		t.Errorf("result cache Len = %d after corpus change, want 0", got)
	}
	if got := cacheService.Len(cache.NamespaceResponse); got != 0 {
		t.Errorf("response cache Len = %d after corpus change, want 0", got)
	}

	// Query embeddings do not depend on the corpus; they survive.
	if _, ok := cacheService.Get(cache.NamespaceEmbedding, "q-1"); !ok {
		t.Error("embedding cache flushed on corpus change")
	}
}
