package service

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"soul-journal-be/internal/entity"
	"soul-journal-be/internal/pkg/logger"
	"soul-journal-be/internal/repository/unitofwork"
	"soul-journal-be/pkg/rag/decompose"
)

const vocabCacheKey = "vocabulary"

type IVocabularyService interface {
	decompose.VocabularySource
}

// vocabularyService caches the controlled vocabularies in memory; the lists
// change only when entries introduce new terms, so a short TTL is plenty.
type vocabularyService struct {
	uowFactory unitofwork.RepositoryFactory
	cache      *gocache.Cache
	logger     logger.ILogger
}

func NewVocabularyService(uowFactory unitofwork.RepositoryFactory, log logger.ILogger) IVocabularyService {
	return &vocabularyService{
		uowFactory: uowFactory,
		cache:      gocache.New(10*time.Minute, 30*time.Minute),
		logger:     log,
	}
}

func (s *vocabularyService) Vocabulary(ctx context.Context) (decompose.Vocabulary, error) {
	if cached, found := s.cache.Get(vocabCacheKey); found {
		return cached.(decompose.Vocabulary), nil
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	repo := uow.VocabularyRepository()

	themes, err := repo.FindByKind(ctx, entity.VocabularyKindTheme)
	if err != nil {
		return decompose.Vocabulary{}, err
	}
	emotions, err := repo.FindByKind(ctx, entity.VocabularyKindEmotion)
	if err != nil {
		return decompose.Vocabulary{}, err
	}

	vocab := decompose.Vocabulary{
		Themes:   termStrings(themes),
		Emotions: termStrings(emotions),
	}
	s.cache.Set(vocabCacheKey, vocab, gocache.DefaultExpiration)
	return vocab, nil
}

func termStrings(terms []*entity.VocabularyTerm) []string {
	out := make([]string, len(terms))
	for i, t := range terms {
		out[i] = t.Term
	}
	return out
}
