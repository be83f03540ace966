// Package plan turns sub-questions into executable retrieval plans. Plans are
// data, not behavior: the executor interprets them against the store.
package plan

import (
	"fmt"

	"soul-journal-be/internal/apperr"
	"soul-journal-be/pkg/store"
)

type Kind string

const (
	KindCount        Kind = "count"
	KindSelect       Kind = "select"
	KindCalculation  Kind = "calculation"
	KindTopEmotions  Kind = "top_emotions"
	KindVectorSearch Kind = "vector_search"
	KindHybrid       Kind = "hybrid"
)

// Operator is a closed enum. Filters carrying anything outside this set are
// rejected at construction time, never passed through to SQL.
type Operator string

const (
	OpEquals             Operator = "equals"
	OpEqualsCurrentOwner Operator = "equals_current_owner"
	OpGte                Operator = "gte"
	OpLte                Operator = "lte"
	OpContainsText       Operator = "contains_text"
	OpArrayContains      Operator = "array_contains"
	OpNestedKeyGte       Operator = "nested_key_gte"
)

var validOperators = map[Operator]bool{
	OpEquals:             true,
	OpEqualsCurrentOwner: true,
	OpGte:                true,
	OpLte:                true,
	OpContainsText:       true,
	OpArrayContains:      true,
	OpNestedKeyGte:       true,
}

// NestedValue is the payload for OpNestedKeyGte: a minimum threshold on one
// key of a JSON column.
type NestedValue struct {
	Key string
	Min float64
}

type Filter struct {
	Column string
	Op     Operator
	Value  interface{}
}

// NewFilter is the only sanctioned way to build a filter; it enforces the
// operator enum so malformed plans fail loudly before reaching the store.
func NewFilter(column string, op Operator, value interface{}) (Filter, error) {
	if !validOperators[op] {
		return Filter{}, apperr.New(apperr.KindValidation, fmt.Sprintf("unknown filter operator %q", op))
	}
	if op == OpNestedKeyGte {
		if _, ok := value.(NestedValue); !ok {
			return Filter{}, apperr.New(apperr.KindValidation, "nested_key_gte requires a NestedValue payload")
		}
	}
	return Filter{Column: column, Op: op, Value: value}, nil
}

// MustFilter panics on an invalid operator. For the planner's own
// hard-coded filters only.
func MustFilter(column string, op Operator, value interface{}) Filter {
	f, err := NewFilter(column, op, value)
	if err != nil {
		panic(err)
	}
	return f
}

type StructuredSpec struct {
	Operation  Kind
	Filters    []Filter
	Columns    []string
	OrderBy    string
	Descending bool
	Limit      int
}

type VectorSpec struct {
	Query     string
	TopK      int
	Threshold float32
	TimeRange *store.TimeRange
}

type Plan struct {
	Kind       Kind
	Structured *StructuredSpec
	Vector     *VectorSpec
	Rationale  string
	// Degraded marks a plan built by the safe fallback path rather than
	// from the sub-question's own parameters.
	Degraded bool
}
