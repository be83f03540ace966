package implementation

import (
	"context"
	"time"

	"soul-journal-be/internal/mapper"
	"soul-journal-be/internal/model"
	"soul-journal-be/internal/repository/contract"

	"soul-journal-be/internal/entity"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type JournalEmbeddingRepositoryImpl struct {
	db           *gorm.DB
	mapper       *mapper.JournalEmbeddingMapper
	entryMapper  *mapper.JournalMapper
	defaultLimit int
}

func NewJournalEmbeddingRepository(db *gorm.DB) contract.JournalEmbeddingRepository {
	return &JournalEmbeddingRepositoryImpl{
		db:           db,
		mapper:       mapper.NewJournalEmbeddingMapper(),
		entryMapper:  mapper.NewJournalMapper(),
		defaultLimit: 5,
	}
}

func (r *JournalEmbeddingRepositoryImpl) Create(ctx context.Context, embedding *entity.JournalEmbedding) error {
	m := r.mapper.ToModel(embedding)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*embedding = *r.mapper.ToEntity(m)
	return nil
}

func (r *JournalEmbeddingRepositoryImpl) DeleteByEntryId(ctx context.Context, entryId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("entry_id = ?", entryId).Delete(&model.JournalEmbedding{}).Error
}

func (r *JournalEmbeddingRepositoryImpl) SearchSimilarWithScore(ctx context.Context, ownerID uuid.UUID, embedding []float32, limit int, threshold float64, start, end time.Time) ([]*contract.ScoredJournalEmbedding, error) {
	if limit <= 0 {
		limit = r.defaultLimit
	}

	// Cosine distance in pgvector is 1 - cosine_similarity, so
	// 1 - (embedding_value <=> query) recovers the similarity.
	// The join with journal_entries enforces owner scope; soft-deleted rows
	// on either side are excluded.
	type result struct {
		model.JournalEmbedding
		Entry      model.JournalEntry `gorm:"embedded;embeddedPrefix:entry_"`
		Similarity float64
	}
	var results []result

	queryVector := pgvector.NewVector(embedding)

	query := r.db.WithContext(ctx).
		Table("journal_embeddings").
		Select("journal_embeddings.*, journal_entries.id as entry_id, journal_entries.owner_id as entry_owner_id, journal_entries.content as entry_content, journal_entries.themes as entry_themes, journal_entries.emotions as entry_emotions, journal_entries.entities as entry_entities, journal_entries.sentiment as entry_sentiment, journal_entries.created_at as entry_created_at, 1 - (embedding_value <=> ?) as similarity", queryVector).
		Joins("JOIN journal_entries ON journal_entries.id = journal_embeddings.entry_id").
		Where("journal_entries.owner_id = ?", ownerID).
		Where("journal_embeddings.deleted_at IS NULL").
		Where("journal_entries.deleted_at IS NULL").
		Where("1 - (embedding_value <=> ?) >= ?", queryVector, threshold)

	if !start.IsZero() {
		query = query.Where("journal_entries.created_at >= ?", start)
	}
	if !end.IsZero() {
		query = query.Where("journal_entries.created_at <= ?", end)
	}

	err := query.
		Order("similarity DESC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}

	scored := make([]*contract.ScoredJournalEmbedding, len(results))
	for i, res := range results {
		scored[i] = &contract.ScoredJournalEmbedding{
			Embedding:  r.mapper.ToEntity(&res.JournalEmbedding),
			Entry:      r.entryMapper.ToEntity(&res.Entry),
			Similarity: res.Similarity,
		}
	}
	return scored, nil
}
