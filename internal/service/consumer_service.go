package service

import (
	"context"
	"encoding/json"
	"fmt"

	"soul-journal-be/internal/dto"
	"soul-journal-be/internal/entity"
	"soul-journal-be/internal/pkg/logger"
	"soul-journal-be/internal/repository/specification"
	"soul-journal-be/internal/repository/unitofwork"
	"soul-journal-be/pkg/embedding"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService embeds journal entries off the write path. Entry writes
// return immediately; the vector lands when this consumer catches up.
type consumerService struct {
	pubSub            *gochannel.GoChannel
	topicName         string
	uowFactory        unitofwork.RepositoryFactory
	embeddingProvider embedding.EmbeddingProvider
	logger            logger.ILogger
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	embeddingProvider embedding.EmbeddingProvider,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub:            pubSub,
		topicName:         topicName,
		uowFactory:        uowFactory,
		embeddingProvider: embeddingProvider,
		logger:            log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PublishEmbedEntryMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("consumer", "unmarshal failed, dropping message", map[string]interface{}{"error": err.Error()})
		msg.Ack() // malformed messages retry forever otherwise
		return
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)

	entry, err := uow.JournalRepository().FindOne(ctx, specification.ByID{ID: payload.EntryId})
	if err != nil {
		cs.logger.Error("consumer", "entry fetch failed", map[string]interface{}{
			"entry_id": payload.EntryId.String(),
			"error":    err.Error(),
		})
		msg.Nack()
		return
	}
	if entry == nil {
		// Entry deleted before we got to it.
		msg.Ack()
		return
	}

	document := buildEmbeddingDocument(entry)
	vector, err := cs.embeddingProvider.Generate(ctx, document, embedding.TaskDocument)
	if err != nil {
		cs.logger.Error("consumer", "embedding generation failed", map[string]interface{}{
			"entry_id": entry.Id.String(),
			"error":    err.Error(),
		})
		msg.Nack()
		return
	}

	embeddings := uow.JournalEmbeddingRepository()
	if err := embeddings.DeleteByEntryId(ctx, entry.Id); err != nil {
		cs.logger.Error("consumer", "stale embedding delete failed", map[string]interface{}{"error": err.Error()})
		msg.Nack()
		return
	}
	err = embeddings.Create(ctx, &entity.JournalEmbedding{
		EntryId:   entry.Id,
		Document:  document,
		Embedding: vector,
	})
	if err != nil {
		cs.logger.Error("consumer", "embedding store failed", map[string]interface{}{"error": err.Error()})
		msg.Nack()
		return
	}

	cs.logger.Info("consumer", "entry embedded", map[string]interface{}{"entry_id": entry.Id.String()})
	msg.Ack()
}

// buildEmbeddingDocument folds the entry's annotations into the embedded
// text so thematic queries land near annotated entries.
func buildEmbeddingDocument(entry *entity.JournalEntry) string {
	doc := entry.Content
	if len(entry.Themes) > 0 {
		doc += "\n\nThemes:"
		for _, t := range entry.Themes {
			doc += " " + t
		}
	}
	if len(entry.Emotions) > 0 {
		doc += "\nEmotions:"
		for e := range entry.Emotions {
			doc += " " + e
		}
	}
	doc += fmt.Sprintf("\nDate: %s", entry.CreatedAt.Format("2006-01-02"))
	return doc
}
