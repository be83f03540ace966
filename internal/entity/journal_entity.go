package entity

import (
	"time"

	"github.com/google/uuid"
)

type JournalEntry struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	OwnerId   uuid.UUID `gorm:"type:uuid;index"`
	Content   string
	Themes    []string
	Emotions  map[string]float64
	Entities  []string
	Sentiment float64
	CreatedAt time.Time
	UpdatedAt *time.Time
	DeletedAt *time.Time
	IsDeleted bool
}

type JournalEmbedding struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	EntryId   uuid.UUID `gorm:"type:uuid;index"`
	Document  string
	Embedding []float32
	CreatedAt time.Time
}

type VocabularyTerm struct {
	Id   uuid.UUID
	Kind string
	Term string
}

const (
	VocabularyKindTheme   = "theme"
	VocabularyKindEmotion = "emotion"
)
