package specification

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OwnerScope restricts a query to the authenticated requester's entries.
// Every journal query must carry it.
type OwnerScope struct {
	OwnerID uuid.UUID
}

func (s OwnerScope) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("journal_entries.owner_id = ?", s.OwnerID)
}

type CreatedBetween struct {
	Start time.Time
	End   time.Time
}

func (s CreatedBetween) Apply(db *gorm.DB) *gorm.DB {
	if !s.Start.IsZero() {
		db = db.Where("journal_entries.created_at >= ?", s.Start)
	}
	if !s.End.IsZero() {
		db = db.Where("journal_entries.created_at <= ?", s.End)
	}
	return db
}

// ThemesContain matches entries whose themes JSONB array holds the term.
type ThemesContain struct {
	Theme string
}

func (s ThemesContain) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("journal_entries.themes @> ?", themeContainmentLiteral(s.Theme))
}

// themeContainmentLiteral renders the single-element JSONB array for a @>
// containment check. Themes come from user text, so the term must be
// JSON-escaped, not interpolated.
func themeContainmentLiteral(theme string) string {
	literal, err := json.Marshal([]string{theme})
	if err != nil {
		return "[]"
	}
	return string(literal)
}

// EmotionAtLeast matches entries scoring the emotion at or above the threshold.
type EmotionAtLeast struct {
	Emotion string
	Min     float64
}

func (s EmotionAtLeast) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("(journal_entries.emotions->>?)::numeric >= ?", s.Emotion, s.Min)
}

type ContentContains struct {
	Text string
}

func (s ContentContains) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("journal_entries.content ILIKE ?", "%"+s.Text+"%")
}

// ContentContainsAny is the lexical fallback: any of the terms matches.
type ContentContainsAny struct {
	Terms []string
}

func (s ContentContainsAny) Apply(db *gorm.DB) *gorm.DB {
	if len(s.Terms) == 0 {
		return db
	}
	query := db
	var clause string
	args := make([]interface{}, 0, len(s.Terms))
	for i, term := range s.Terms {
		if i > 0 {
			clause += " OR "
		}
		clause += "journal_entries.content ILIKE ?"
		args = append(args, "%"+term+"%")
	}
	return query.Where(clause, args...)
}
