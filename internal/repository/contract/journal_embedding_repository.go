package contract

import (
	"context"
	"time"

	"soul-journal-be/internal/entity"

	"github.com/google/uuid"
)

// ScoredJournalEmbedding pairs an embedding match with its entry and
// cosine similarity.
type ScoredJournalEmbedding struct {
	Embedding  *entity.JournalEmbedding
	Entry      *entity.JournalEntry
	Similarity float64
}

type JournalEmbeddingRepository interface {
	Create(ctx context.Context, embedding *entity.JournalEmbedding) error
	DeleteByEntryId(ctx context.Context, entryId uuid.UUID) error
	// SearchSimilarWithScore joins journal_entries to enforce owner scope and
	// returns matches at or above the similarity threshold, newest window only
	// when start/end are set.
	SearchSimilarWithScore(ctx context.Context, ownerID uuid.UUID, embedding []float32, limit int, threshold float64, start, end time.Time) ([]*ScoredJournalEmbedding, error)
}
