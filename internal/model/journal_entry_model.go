package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type JournalEntry struct {
	Id        uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OwnerId   uuid.UUID      `gorm:"type:uuid;not null;index"`
	Content   string         `gorm:"type:text;not null"`
	Themes    datatypes.JSON `gorm:"type:jsonb"` // ["work", "family"]
	Emotions  datatypes.JSON `gorm:"type:jsonb"` // {"stress": 0.8}
	Entities  datatypes.JSON `gorm:"type:jsonb"` // ["Sarah", "the gym"]
	Sentiment float64        `gorm:"type:numeric;default:0"`
	CreatedAt time.Time      `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (JournalEntry) TableName() string {
	return "journal_entries"
}
