package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateJournalEntryRequest struct {
	Content   string             `json:"content" validate:"required,min=1"`
	Themes    []string           `json:"themes" validate:"omitempty,max=16,dive,max=64"`
	Emotions  map[string]float64 `json:"emotions" validate:"omitempty,max=16,dive,gte=0,lte=1"`
	Entities  []string           `json:"entities" validate:"omitempty,max=32,dive,max=128"`
	Sentiment float64            `json:"sentiment" validate:"gte=-1,lte=1"`
}

type UpdateJournalEntryRequest struct {
	Content   string             `json:"content" validate:"required,min=1"`
	Themes    []string           `json:"themes" validate:"omitempty,max=16,dive,max=64"`
	Emotions  map[string]float64 `json:"emotions" validate:"omitempty,max=16,dive,gte=0,lte=1"`
	Entities  []string           `json:"entities" validate:"omitempty,max=32,dive,max=128"`
	Sentiment float64            `json:"sentiment" validate:"gte=-1,lte=1"`
}

type JournalEntryResponse struct {
	Id        uuid.UUID          `json:"id"`
	Content   string             `json:"content"`
	Themes    []string           `json:"themes"`
	Emotions  map[string]float64 `json:"emotions"`
	Entities  []string           `json:"entities"`
	Sentiment float64            `json:"sentiment"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt *time.Time         `json:"updated_at,omitempty"`
}

// PublishEmbedEntryMessage travels over the in-process bus to the embedding
// consumer.
type PublishEmbedEntryMessage struct {
	EntryId uuid.UUID `json:"entry_id"`
}
