package unitofwork

import (
	"context"

	"soul-journal-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	JournalRepository() contract.JournalRepository
	JournalEmbeddingRepository() contract.JournalEmbeddingRepository
	VocabularyRepository() contract.VocabularyRepository
}

type RepositoryFactory interface {
	NewUnitOfWork(ctx context.Context) UnitOfWork
}
