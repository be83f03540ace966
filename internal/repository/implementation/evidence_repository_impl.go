package implementation

import (
	"context"
	"fmt"
	"time"

	"soul-journal-be/internal/apperr"
	"soul-journal-be/internal/entity"
	"soul-journal-be/internal/repository/contract"
	"soul-journal-be/internal/repository/specification"
	"soul-journal-be/pkg/rag/execute"
	"soul-journal-be/pkg/rag/plan"
	"soul-journal-be/pkg/store"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EvidenceRepositoryImpl adapts the journal repositories to the executor's
// retrieval port, translating plan filters into query specifications.
type EvidenceRepositoryImpl struct {
	db         *gorm.DB
	entries    contract.JournalRepository
	embeddings contract.JournalEmbeddingRepository
}

func NewEvidenceRepository(db *gorm.DB, entries contract.JournalRepository, embeddings contract.JournalEmbeddingRepository) execute.Store {
	return &EvidenceRepositoryImpl{db: db, entries: entries, embeddings: embeddings}
}

func (r *EvidenceRepositoryImpl) SearchSimilar(ctx context.Context, ownerID string, embedding []float32, topK int, threshold float32, window *store.TimeRange) ([]store.EvidenceRow, error) {
	owner, err := uuid.Parse(ownerID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "owner id is not a uuid", err)
	}

	start, end := windowBounds(window)
	scored, err := r.embeddings.SearchSimilarWithScore(ctx, owner, embedding, topK, float64(threshold), start, end)
	if err != nil {
		return nil, err
	}

	rows := make([]store.EvidenceRow, 0, len(scored))
	for _, s := range scored {
		if s.Entry == nil {
			continue
		}
		row := entryToRow(s.Entry)
		row.Score = float32(s.Similarity)
		rows = append(rows, row)
	}
	return rows, nil
}

func (r *EvidenceRepositoryImpl) ExecuteFilters(ctx context.Context, spec plan.StructuredSpec) ([]store.EvidenceRow, error) {
	specs, err := translateFilters(spec.Filters)
	if err != nil {
		return nil, err
	}
	if spec.OrderBy != "" {
		specs = append(specs, specification.OrderBy{Field: "journal_entries." + spec.OrderBy, Desc: spec.Descending})
	}
	if spec.Limit > 0 {
		specs = append(specs, specification.Pagination{Limit: spec.Limit})
	}

	entries, err := r.entries.FindAll(ctx, specs...)
	if err != nil {
		return nil, err
	}
	return entriesToRows(entries), nil
}

func (r *EvidenceRepositoryImpl) Count(ctx context.Context, spec plan.StructuredSpec) (int64, error) {
	specs, err := translateFilters(spec.Filters)
	if err != nil {
		return 0, err
	}
	return r.entries.Count(ctx, specs...)
}

func (r *EvidenceRepositoryImpl) Percentage(ctx context.Context, subset, total plan.StructuredSpec) (store.PercentageStat, error) {
	subsetCount, err := r.Count(ctx, subset)
	if err != nil {
		return store.PercentageStat{}, err
	}
	totalCount, err := r.Count(ctx, total)
	if err != nil {
		return store.PercentageStat{}, err
	}

	stat := store.PercentageStat{SubsetCount: subsetCount, TotalCount: totalCount}
	if totalCount > 0 {
		stat.Percentage = float64(subsetCount) / float64(totalCount) * 100
	}
	return stat, nil
}

// TopEmotions buckets the JSONB emotion maps of the matching entries and
// returns the most frequent emotion keys.
func (r *EvidenceRepositoryImpl) TopEmotions(ctx context.Context, spec plan.StructuredSpec, limit int) ([]store.EmotionFrequency, error) {
	specs, err := translateFilters(spec.Filters)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}

	query := r.db.WithContext(ctx).
		Table("journal_entries").
		Select("e.key as emotion, count(*) as count").
		Joins("cross join lateral jsonb_each(journal_entries.emotions) as e").
		Where("journal_entries.deleted_at IS NULL")
	for _, s := range specs {
		query = s.Apply(query)
	}

	var freqs []store.EmotionFrequency
	err = query.
		Group("e.key").
		Order("count DESC").
		Limit(limit).
		Scan(&freqs).Error
	if err != nil {
		return nil, err
	}
	return freqs, nil
}

func (r *EvidenceRepositoryImpl) KeywordSearch(ctx context.Context, ownerID string, terms []string, limit int, window *store.TimeRange) ([]store.EvidenceRow, error) {
	owner, err := uuid.Parse(ownerID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "owner id is not a uuid", err)
	}

	specs := []specification.Specification{
		specification.OwnerScope{OwnerID: owner},
		specification.ContentContainsAny{Terms: terms},
	}
	if window != nil && !window.IsZero() {
		specs = append(specs, specification.CreatedBetween{Start: window.Start, End: window.End})
	}
	specs = append(specs,
		specification.OrderBy{Field: "journal_entries.created_at", Desc: true},
		specification.Pagination{Limit: limit},
	)

	entries, err := r.entries.FindAll(ctx, specs...)
	if err != nil {
		return nil, err
	}
	return entriesToRows(entries), nil
}

func (r *EvidenceRepositoryImpl) Recent(ctx context.Context, ownerID string, limit int) ([]store.EvidenceRow, error) {
	owner, err := uuid.Parse(ownerID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "owner id is not a uuid", err)
	}

	entries, err := r.entries.FindAll(ctx,
		specification.OwnerScope{OwnerID: owner},
		specification.OrderBy{Field: "journal_entries.created_at", Desc: true},
		specification.Pagination{Limit: limit},
	)
	if err != nil {
		return nil, err
	}
	return entriesToRows(entries), nil
}

// translateFilters maps the closed operator enum onto query specifications.
// An operator outside the enum is a programming error upstream and is
// rejected, never interpolated.
func translateFilters(filters []plan.Filter) ([]specification.Specification, error) {
	specs := make([]specification.Specification, 0, len(filters))
	for _, f := range filters {
		switch f.Op {
		case plan.OpEqualsCurrentOwner:
			ownerID, ok := f.Value.(string)
			if !ok {
				return nil, apperr.New(apperr.KindValidation, "owner filter value must be a string")
			}
			owner, err := uuid.Parse(ownerID)
			if err != nil {
				return nil, apperr.Wrap(apperr.KindValidation, "owner filter value is not a uuid", err)
			}
			specs = append(specs, specification.OwnerScope{OwnerID: owner})

		case plan.OpEquals:
			specs = append(specs, specification.Filter("journal_entries."+f.Column, f.Value))

		case plan.OpGte:
			specs = append(specs, rangeSpec{column: f.Column, value: f.Value, gte: true})

		case plan.OpLte:
			specs = append(specs, rangeSpec{column: f.Column, value: f.Value, gte: false})

		case plan.OpContainsText:
			text, ok := f.Value.(string)
			if !ok {
				return nil, apperr.New(apperr.KindValidation, "contains_text filter value must be a string")
			}
			specs = append(specs, specification.ContentContains{Text: text})

		case plan.OpArrayContains:
			term, ok := f.Value.(string)
			if !ok {
				return nil, apperr.New(apperr.KindValidation, "array_contains filter value must be a string")
			}
			specs = append(specs, specification.ThemesContain{Theme: term})

		case plan.OpNestedKeyGte:
			nested, ok := f.Value.(plan.NestedValue)
			if !ok {
				return nil, apperr.New(apperr.KindValidation, "nested_key_gte filter value must be a NestedValue")
			}
			specs = append(specs, specification.EmotionAtLeast{Emotion: nested.Key, Min: nested.Min})

		default:
			return nil, apperr.New(apperr.KindValidation, fmt.Sprintf("unsupported filter operator %q", f.Op))
		}
	}
	return specs, nil
}

type rangeSpec struct {
	column string
	value  interface{}
	gte    bool
}

func (s rangeSpec) Apply(db *gorm.DB) *gorm.DB {
	op := ">="
	if !s.gte {
		op = "<="
	}
	return db.Where(fmt.Sprintf("journal_entries.%s %s ?", s.column, op), s.value)
}

func windowBounds(window *store.TimeRange) (start, end time.Time) {
	if window == nil {
		return
	}
	return window.Start, window.End
}

func entryToRow(e *entity.JournalEntry) store.EvidenceRow {
	return store.EvidenceRow{
		ID:        e.Id.String(),
		CreatedAt: e.CreatedAt,
		Content:   e.Content,
		Themes:    e.Themes,
		Emotions:  e.Emotions,
		Entities:  e.Entities,
		Sentiment: e.Sentiment,
	}
}

func entriesToRows(entries []*entity.JournalEntry) []store.EvidenceRow {
	rows := make([]store.EvidenceRow, len(entries))
	for i, e := range entries {
		rows[i] = entryToRow(e)
	}
	return rows
}
