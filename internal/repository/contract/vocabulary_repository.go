package contract

import (
	"context"

	"soul-journal-be/internal/entity"
)

type VocabularyRepository interface {
	FindByKind(ctx context.Context, kind string) ([]*entity.VocabularyTerm, error)
	Upsert(ctx context.Context, term *entity.VocabularyTerm) error
}
