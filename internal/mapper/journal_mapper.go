package mapper

import (
	"encoding/json"
	"time"

	"soul-journal-be/internal/entity"
	"soul-journal-be/internal/model"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type JournalMapper struct{}

func NewJournalMapper() *JournalMapper {
	return &JournalMapper{}
}

func (m *JournalMapper) ToEntity(j *model.JournalEntry) *entity.JournalEntry {
	if j == nil {
		return nil
	}

	var deletedAt *time.Time
	if j.DeletedAt.Valid {
		t := j.DeletedAt.Time
		deletedAt = &t
	}

	var updatedAt *time.Time
	if !j.UpdatedAt.IsZero() {
		t := j.UpdatedAt
		updatedAt = &t
	}

	var themes, entities []string
	var emotions map[string]float64
	// Malformed JSON columns decode to empty values rather than failing a read.
	_ = json.Unmarshal(j.Themes, &themes)
	_ = json.Unmarshal(j.Entities, &entities)
	_ = json.Unmarshal(j.Emotions, &emotions)

	return &entity.JournalEntry{
		Id:        j.Id,
		OwnerId:   j.OwnerId,
		Content:   j.Content,
		Themes:    themes,
		Emotions:  emotions,
		Entities:  entities,
		Sentiment: j.Sentiment,
		CreatedAt: j.CreatedAt,
		UpdatedAt: updatedAt,
		DeletedAt: deletedAt,
		IsDeleted: j.DeletedAt.Valid,
	}
}

func (m *JournalMapper) ToModel(j *entity.JournalEntry) *model.JournalEntry {
	if j == nil {
		return nil
	}

	var deletedAt gorm.DeletedAt
	if j.DeletedAt != nil {
		deletedAt = gorm.DeletedAt{Time: *j.DeletedAt, Valid: true}
	} else if j.IsDeleted {
		deletedAt = gorm.DeletedAt{Time: time.Now(), Valid: true}
	}

	var updatedAt time.Time
	if j.UpdatedAt != nil {
		updatedAt = *j.UpdatedAt
	}

	themes, _ := json.Marshal(orEmptyList(j.Themes))
	entities, _ := json.Marshal(orEmptyList(j.Entities))
	emotions, _ := json.Marshal(orEmptyMap(j.Emotions))

	return &model.JournalEntry{
		Id:        j.Id,
		OwnerId:   j.OwnerId,
		Content:   j.Content,
		Themes:    datatypes.JSON(themes),
		Emotions:  datatypes.JSON(emotions),
		Entities:  datatypes.JSON(entities),
		Sentiment: j.Sentiment,
		CreatedAt: j.CreatedAt,
		UpdatedAt: updatedAt,
		DeletedAt: deletedAt,
	}
}

func (m *JournalMapper) ToEntities(entries []*model.JournalEntry) []*entity.JournalEntry {
	entities := make([]*entity.JournalEntry, len(entries))
	for i, j := range entries {
		entities[i] = m.ToEntity(j)
	}
	return entities
}

func orEmptyList(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func orEmptyMap(values map[string]float64) map[string]float64 {
	if values == nil {
		return map[string]float64{}
	}
	return values
}

type JournalEmbeddingMapper struct{}

func NewJournalEmbeddingMapper() *JournalEmbeddingMapper {
	return &JournalEmbeddingMapper{}
}

func (m *JournalEmbeddingMapper) ToEntity(e *model.JournalEmbedding) *entity.JournalEmbedding {
	if e == nil {
		return nil
	}
	return &entity.JournalEmbedding{
		Id:        e.Id,
		EntryId:   e.EntryId,
		Document:  e.Document,
		Embedding: e.EmbeddingValue.Slice(),
		CreatedAt: e.CreatedAt,
	}
}

func (m *JournalEmbeddingMapper) ToModel(e *entity.JournalEmbedding) *model.JournalEmbedding {
	if e == nil {
		return nil
	}
	return &model.JournalEmbedding{
		Id:             e.Id,
		EntryId:        e.EntryId,
		Document:       e.Document,
		EmbeddingValue: pgvector.NewVector(e.Embedding),
		CreatedAt:      e.CreatedAt,
	}
}
