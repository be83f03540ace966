package service

import (
	"context"

	"soul-journal-be/internal/pkg/logger"
	"soul-journal-be/pkg/cache"
	"soul-journal-be/pkg/events"
	pktNats "soul-journal-be/pkg/nats"
)

const journalEventsDurable = "journal-cache-invalidator"

type IEventConsumerService interface {
	Start() error
}

// eventConsumerService invalidates derived answers when the corpus changes.
// Entry writes on any instance publish a journal event; every instance
// listening here drops its result and response caches so stale answers
// never outlive the entries they were built from.
type eventConsumerService struct {
	subscriber *pktNats.Subscriber
	cache      *cache.Service
	logger     logger.ILogger
}

func NewEventConsumerService(
	subscriber *pktNats.Subscriber,
	cacheService *cache.Service,
	log logger.ILogger,
) IEventConsumerService {
	return &eventConsumerService{
		subscriber: subscriber,
		cache:      cacheService,
		logger:     log,
	}
}

func (s *eventConsumerService) Start() error {
	return s.subscriber.Subscribe("journal.>", journalEventsDurable, s.handleJournalEvent)
}

func (s *eventConsumerService) handleJournalEvent(ctx context.Context, event events.Event) error {
	s.cache.Flush(cache.NamespaceResult)
	s.cache.Flush(cache.NamespaceResponse)

	s.logger.Info("event_consumer", "derived caches flushed", map[string]interface{}{
		"event": event.EventType(),
	})
	return nil
}
