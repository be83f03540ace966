package implementation

import (
	"context"

	"soul-journal-be/internal/entity"
	"soul-journal-be/internal/model"
	"soul-journal-be/internal/repository/contract"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type VocabularyRepositoryImpl struct {
	db *gorm.DB
}

func NewVocabularyRepository(db *gorm.DB) contract.VocabularyRepository {
	return &VocabularyRepositoryImpl{db: db}
}

func (r *VocabularyRepositoryImpl) FindByKind(ctx context.Context, kind string) ([]*entity.VocabularyTerm, error) {
	var models []*model.VocabularyTerm
	err := r.db.WithContext(ctx).
		Where("kind = ?", kind).
		Order("term ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	terms := make([]*entity.VocabularyTerm, len(models))
	for i, m := range models {
		terms[i] = &entity.VocabularyTerm{Id: m.Id, Kind: m.Kind, Term: m.Term}
	}
	return terms, nil
}

func (r *VocabularyRepositoryImpl) Upsert(ctx context.Context, term *entity.VocabularyTerm) error {
	m := &model.VocabularyTerm{Id: term.Id, Kind: term.Kind, Term: term.Term}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "kind"}, {Name: "term"}},
			DoNothing: true,
		}).
		Create(m).Error
}
