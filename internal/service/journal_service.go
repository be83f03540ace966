package service

import (
	"context"
	"encoding/json"
	"time"

	"soul-journal-be/internal/apperr"
	"soul-journal-be/internal/dto"
	"soul-journal-be/internal/entity"
	"soul-journal-be/internal/pkg/logger"
	"soul-journal-be/internal/repository/specification"
	"soul-journal-be/internal/repository/unitofwork"
	"soul-journal-be/pkg/events"
	pktNats "soul-journal-be/pkg/nats"

	"github.com/google/uuid"
)

type IJournalService interface {
	Create(ctx context.Context, ownerID uuid.UUID, req *dto.CreateJournalEntryRequest) (*dto.JournalEntryResponse, error)
	Show(ctx context.Context, ownerID uuid.UUID, id uuid.UUID) (*dto.JournalEntryResponse, error)
	List(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*dto.JournalEntryResponse, error)
	Update(ctx context.Context, ownerID uuid.UUID, id uuid.UUID, req *dto.UpdateJournalEntryRequest) (*dto.JournalEntryResponse, error)
	Delete(ctx context.Context, ownerID uuid.UUID, id uuid.UUID) error
	CountByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error)
}

type journalService struct {
	uowFactory       unitofwork.RepositoryFactory
	publisherService IPublisherService
	eventPublisher   *pktNats.Publisher
	logger           logger.ILogger
}

func NewJournalService(
	uowFactory unitofwork.RepositoryFactory,
	publisherService IPublisherService,
	eventPublisher *pktNats.Publisher,
	log logger.ILogger,
) IJournalService {
	return &journalService{
		uowFactory:       uowFactory,
		publisherService: publisherService,
		eventPublisher:   eventPublisher,
		logger:           log,
	}
}

func (s *journalService) Create(ctx context.Context, ownerID uuid.UUID, req *dto.CreateJournalEntryRequest) (*dto.JournalEntryResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	entry := entity.JournalEntry{
		OwnerId:   ownerID,
		Content:   req.Content,
		Themes:    req.Themes,
		Emotions:  req.Emotions,
		Entities:  req.Entities,
		Sentiment: req.Sentiment,
	}
	if err := uow.JournalRepository().Create(ctx, &entry); err != nil {
		return nil, err
	}

	s.upsertVocabulary(ctx, uow, &entry)
	s.publishEmbed(ctx, entry.Id)
	s.publishEvent(ctx, "JOURNAL_ENTRY_CREATED", entry.Id, ownerID)

	return toJournalResponse(&entry), nil
}

func (s *journalService) Show(ctx context.Context, ownerID uuid.UUID, id uuid.UUID) (*dto.JournalEntryResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	entry, err := uow.JournalRepository().FindOne(ctx,
		specification.ByID{ID: id},
		specification.OwnerScope{OwnerID: ownerID},
	)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, apperr.New(apperr.KindValidation, "journal entry not found")
	}
	return toJournalResponse(entry), nil
}

func (s *journalService) List(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*dto.JournalEntryResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	uow := s.uowFactory.NewUnitOfWork(ctx)
	entries, err := uow.JournalRepository().FindAll(ctx,
		specification.OwnerScope{OwnerID: ownerID},
		specification.OrderBy{Field: "journal_entries.created_at", Desc: true},
		specification.Pagination{Limit: limit, Offset: offset},
	)
	if err != nil {
		return nil, err
	}

	responses := make([]*dto.JournalEntryResponse, len(entries))
	for i, entry := range entries {
		responses[i] = toJournalResponse(entry)
	}
	return responses, nil
}

func (s *journalService) Update(ctx context.Context, ownerID uuid.UUID, id uuid.UUID, req *dto.UpdateJournalEntryRequest) (*dto.JournalEntryResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	entry, err := uow.JournalRepository().FindOne(ctx,
		specification.ByID{ID: id},
		specification.OwnerScope{OwnerID: ownerID},
	)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, apperr.New(apperr.KindValidation, "journal entry not found")
	}

	entry.Content = req.Content
	entry.Themes = req.Themes
	entry.Emotions = req.Emotions
	entry.Entities = req.Entities
	entry.Sentiment = req.Sentiment
	if err := uow.JournalRepository().Update(ctx, entry); err != nil {
		return nil, err
	}

	s.upsertVocabulary(ctx, uow, entry)
	s.publishEmbed(ctx, entry.Id)

	return toJournalResponse(entry), nil
}

func (s *journalService) Delete(ctx context.Context, ownerID uuid.UUID, id uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	entry, err := uow.JournalRepository().FindOne(ctx,
		specification.ByID{ID: id},
		specification.OwnerScope{OwnerID: ownerID},
	)
	if err != nil {
		return err
	}
	if entry == nil {
		return apperr.New(apperr.KindValidation, "journal entry not found")
	}

	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer uow.Rollback()

	if err := uow.JournalRepository().Delete(ctx, id); err != nil {
		return err
	}
	if err := uow.JournalEmbeddingRepository().DeleteByEntryId(ctx, id); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return err
	}

	s.publishEvent(ctx, "JOURNAL_ENTRY_DELETED", id, ownerID)
	return nil
}

func (s *journalService) CountByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	return uow.JournalRepository().Count(ctx, specification.OwnerScope{OwnerID: ownerID})
}

// upsertVocabulary keeps the controlled vocabularies in step with what
// entries actually use. Failures are logged, never fatal to the write.
func (s *journalService) upsertVocabulary(ctx context.Context, uow unitofwork.UnitOfWork, entry *entity.JournalEntry) {
	vocab := uow.VocabularyRepository()
	for _, theme := range entry.Themes {
		if err := vocab.Upsert(ctx, &entity.VocabularyTerm{Kind: entity.VocabularyKindTheme, Term: theme}); err != nil {
			s.logger.Warn("journal", "vocabulary upsert failed", map[string]interface{}{"term": theme, "error": err.Error()})
		}
	}
	for emotion := range entry.Emotions {
		if err := vocab.Upsert(ctx, &entity.VocabularyTerm{Kind: entity.VocabularyKindEmotion, Term: emotion}); err != nil {
			s.logger.Warn("journal", "vocabulary upsert failed", map[string]interface{}{"term": emotion, "error": err.Error()})
		}
	}
}

func (s *journalService) publishEmbed(ctx context.Context, entryID uuid.UUID) {
	payload, err := json.Marshal(dto.PublishEmbedEntryMessage{EntryId: entryID})
	if err != nil {
		s.logger.Error("journal", "embed message marshal failed", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := s.publisherService.Publish(ctx, payload); err != nil {
		s.logger.Error("journal", "embed message publish failed", map[string]interface{}{
			"entry_id": entryID.String(),
			"error":    err.Error(),
		})
	}
}

func (s *journalService) publishEvent(ctx context.Context, eventType string, entryID, ownerID uuid.UUID) {
	if s.eventPublisher == nil {
		return
	}
	evt := events.BaseEvent{
		Type: eventType,
		Data: map[string]interface{}{
			"entry_id": entryID.String(),
			"owner_id": ownerID.String(),
		},
		OccurredAt: time.Now().UTC(),
	}
	if err := s.eventPublisher.Publish(ctx, evt); err != nil {
		s.logger.Warn("journal", "event publish failed", map[string]interface{}{
			"event": eventType,
			"error": err.Error(),
		})
	}
}

func toJournalResponse(entry *entity.JournalEntry) *dto.JournalEntryResponse {
	return &dto.JournalEntryResponse{
		Id:        entry.Id,
		Content:   entry.Content,
		Themes:    entry.Themes,
		Emotions:  entry.Emotions,
		Entities:  entry.Entities,
		Sentiment: entry.Sentiment,
		CreatedAt: entry.CreatedAt,
		UpdatedAt: entry.UpdatedAt,
	}
}
