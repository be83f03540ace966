package plan

import (
	"fmt"

	"soul-journal-be/internal/pkg/logger"
	"soul-journal-be/pkg/rag/decompose"
	"soul-journal-be/pkg/store"
)

const (
	DefaultTopK      = 8
	DefaultThreshold = 0.45

	// Degraded plans search wider and accept weaker matches.
	degradedTopK      = 10
	degradedThreshold = 0.3
)

type Planner struct {
	logger logger.ILogger
}

func NewPlanner(log logger.ILogger) *Planner {
	return &Planner{logger: log}
}

// Build maps one sub-question to a plan. Planning is deterministic; any
// construction failure degrades to a broad vector search instead of dropping
// the sub-question.
func (p *Planner) Build(sq decompose.SubQuestion, ownerID string, window *store.TimeRange) Plan {
	built, err := p.build(sq, ownerID, window)
	if err != nil {
		p.logger.Warn("plan", "plan construction failed, degrading to broad vector search", map[string]interface{}{
			"sub_question": sq.Text,
			"error":        err.Error(),
		})
		return degradedPlan(sq, window)
	}
	return built
}

func (p *Planner) build(sq decompose.SubQuestion, ownerID string, window *store.TimeRange) (Plan, error) {
	timeRange := mergeTimeRange(sq.Params.TimeRange, window)

	switch sq.Strategy {
	case decompose.StrategyStructured:
		return p.buildStructured(sq, ownerID, timeRange)
	case decompose.StrategyHybrid:
		structured, err := p.buildStructured(sq, ownerID, timeRange)
		if err != nil {
			return Plan{}, err
		}
		return Plan{
			Kind:       KindHybrid,
			Structured: structured.Structured,
			Vector:     vectorSpec(sq.Text, timeRange),
			Rationale:  "hybrid retrieval for " + string(sq.Type) + " sub-question",
		}, nil
	default:
		return Plan{
			Kind:      KindVectorSearch,
			Vector:    vectorSpec(sq.Text, timeRange),
			Rationale: "semantic retrieval for " + string(sq.Type) + " sub-question",
		}, nil
	}
}

func (p *Planner) buildStructured(sq decompose.SubQuestion, ownerID string, timeRange *store.TimeRange) (Plan, error) {
	filters, err := paramFilters(sq.Params, timeRange)
	if err != nil {
		return Plan{}, err
	}
	filters = EnsureOwnerScope(filters, ownerID)

	operation := KindSelect
	switch sq.Params.AnalysisKind {
	case "count":
		operation = KindCount
	case "percentage":
		operation = KindCalculation
	case "top_emotions":
		operation = KindTopEmotions
	}

	spec := &StructuredSpec{
		Operation:  operation,
		Filters:    filters,
		OrderBy:    "created_at",
		Descending: true,
		Limit:      20,
	}
	if operation != KindSelect {
		spec.Limit = 0
	}

	return Plan{
		Kind:       operation,
		Structured: spec,
		Rationale:  fmt.Sprintf("structured %s over %d filters", operation, len(filters)),
	}, nil
}

func paramFilters(params decompose.Params, timeRange *store.TimeRange) ([]Filter, error) {
	var filters []Filter

	if timeRange != nil && !timeRange.IsZero() {
		gte, err := NewFilter("created_at", OpGte, timeRange.Start)
		if err != nil {
			return nil, err
		}
		lte, err := NewFilter("created_at", OpLte, timeRange.End)
		if err != nil {
			return nil, err
		}
		filters = append(filters, gte, lte)
	}

	for _, theme := range params.Themes {
		f, err := NewFilter("themes", OpArrayContains, theme)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}

	for _, emotion := range params.Emotions {
		f, err := NewFilter("emotions", OpNestedKeyGte, NestedValue{Key: emotion, Min: 0.5})
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}

	for _, entity := range params.Entities {
		f, err := NewFilter("content", OpContainsText, entity)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}

	return filters, nil
}

// EnsureOwnerScope strips any owner filter the plan may already carry and
// appends exactly one scoped to the authenticated requester. Owner identity
// always comes from the server side, never from plan parameters.
func EnsureOwnerScope(filters []Filter, ownerID string) []Filter {
	kept := filters[:0]
	for _, f := range filters {
		if f.Op == OpEqualsCurrentOwner {
			continue
		}
		if f.Column == "owner_id" || f.Column == "user_id" {
			continue
		}
		kept = append(kept, f)
	}
	return append(kept, Filter{Column: "owner_id", Op: OpEqualsCurrentOwner, Value: ownerID})
}

// mergeTimeRange prefers the sub-question's own range; the caller window
// applies only when the sub-question has none. Merging twice is a no-op.
func mergeTimeRange(own, window *store.TimeRange) *store.TimeRange {
	if own != nil && !own.IsZero() {
		return own
	}
	if window != nil && !window.IsZero() {
		return window
	}
	return nil
}

func vectorSpec(query string, timeRange *store.TimeRange) *VectorSpec {
	return &VectorSpec{
		Query:     query,
		TopK:      DefaultTopK,
		Threshold: DefaultThreshold,
		TimeRange: timeRange,
	}
}

func degradedPlan(sq decompose.SubQuestion, window *store.TimeRange) Plan {
	return Plan{
		Kind: KindVectorSearch,
		Vector: &VectorSpec{
			Query:     sq.Text,
			TopK:      degradedTopK,
			Threshold: degradedThreshold,
			TimeRange: mergeTimeRange(sq.Params.TimeRange, window),
		},
		Rationale: "degraded broad vector search",
		Degraded:  true,
	}
}
