package model

import (
	"time"

	"github.com/google/uuid"
)

type VocabularyTerm struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Kind      string    `gorm:"type:varchar(16);not null;uniqueIndex:idx_vocab_kind_term"` // "theme" | "emotion"
	Term      string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_vocab_kind_term"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (VocabularyTerm) TableName() string {
	return "vocabulary_terms"
}
