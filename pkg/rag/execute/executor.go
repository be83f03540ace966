// Package execute runs retrieval plans against the journal store with a
// bounded fallback chain. A failing sub-question degrades or fails on its
// own; it never takes the rest of the batch down with it.
package execute

import (
	"context"
	"fmt"
	"time"

	"soul-journal-be/internal/pkg/logger"
	"soul-journal-be/pkg/cache"
	"soul-journal-be/pkg/rag/decompose"
	"soul-journal-be/pkg/rag/plan"
	"soul-journal-be/pkg/store"
)

// Execution states, in progression order.
type State string

const (
	StatePlanned            State = "PLANNED"
	StatePrimaryAttempted   State = "PRIMARY_ATTEMPTED"
	StateSecondaryAttempted State = "SECONDARY_ATTEMPTED"
	StateSucceeded          State = "SUCCEEDED"
	StateDegraded           State = "DEGRADED"
	StateFailed             State = "FAILED"
)

// MaxAttempts bounds the fallback chain per sub-question: the planned
// strategy, then keyword search, then most-recent entries.
const MaxAttempts = 3

const (
	recentFallbackLimit = 5
	topEmotionsLimit    = 5
)

// Store is the narrow retrieval port the executor needs. The repository
// layer implements it; tests fake it.
type Store interface {
	SearchSimilar(ctx context.Context, ownerID string, embedding []float32, topK int, threshold float32, window *store.TimeRange) ([]store.EvidenceRow, error)
	ExecuteFilters(ctx context.Context, spec plan.StructuredSpec) ([]store.EvidenceRow, error)
	Count(ctx context.Context, spec plan.StructuredSpec) (int64, error)
	Percentage(ctx context.Context, subset, total plan.StructuredSpec) (store.PercentageStat, error)
	TopEmotions(ctx context.Context, spec plan.StructuredSpec, limit int) ([]store.EmotionFrequency, error)
	KeywordSearch(ctx context.Context, ownerID string, terms []string, limit int, window *store.TimeRange) ([]store.EvidenceRow, error)
	Recent(ctx context.Context, ownerID string, limit int) ([]store.EvidenceRow, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Task pairs a sub-question with its plan.
type Task struct {
	SubQuestion decompose.SubQuestion
	Plan        plan.Plan
}

type Result struct {
	SubQuestion    decompose.SubQuestion
	Plan           plan.Plan
	VectorRows     []store.EvidenceRow
	StructuredRows []store.EvidenceRow
	Count          *int64
	Percentage     *store.PercentageStat
	TopEmotions    []store.EmotionFrequency
	Err            error
	State          State
	Confidence     float64
	SearchMethod   string
	FallbacksUsed  []string
	Attempts       int
}

// Rows returns the evidence from whichever channel produced it.
func (r Result) Rows() []store.EvidenceRow {
	if len(r.StructuredRows) > 0 {
		return r.StructuredRows
	}
	return r.VectorRows
}

func (r Result) Empty() bool {
	return len(r.VectorRows) == 0 && len(r.StructuredRows) == 0 &&
		r.Count == nil && r.Percentage == nil && len(r.TopEmotions) == 0
}

type Limits struct {
	MaxConcurrency int
	Timeout        time.Duration
}

type Executor struct {
	store    Store
	embedder Embedder
	cache    *cache.Service
	logger   logger.ILogger
}

func NewExecutor(st Store, embedder Embedder, cacheSvc *cache.Service, log logger.ILogger) *Executor {
	return &Executor{store: st, embedder: embedder, cache: cacheSvc, logger: log}
}

// ExecuteAll fans tasks out concurrently under a shared deadline. Stragglers
// past the deadline are abandoned and reported as failed; their goroutines
// may still finish and warm the cache.
func (e *Executor) ExecuteAll(ctx context.Context, ownerID string, tasks []Task, limits Limits) []Result {
	if limits.MaxConcurrency <= 0 {
		limits.MaxConcurrency = 4
	}
	if limits.Timeout <= 0 {
		limits.Timeout = 15 * time.Second
	}

	type indexed struct {
		idx    int
		result Result
	}

	results := make([]Result, len(tasks))
	for i, task := range tasks {
		results[i] = Result{
			SubQuestion: task.SubQuestion,
			Plan:        task.Plan,
			State:       StateFailed,
			Err:         context.DeadlineExceeded,
		}
	}

	out := make(chan indexed, len(tasks))
	sem := make(chan struct{}, limits.MaxConcurrency)

	runCtx, cancel := context.WithTimeout(ctx, limits.Timeout)
	defer cancel()

	for i, task := range tasks {
		go func(idx int, t Task) {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-runCtx.Done():
				return
			}
			out <- indexed{idx: idx, result: e.ExecuteOne(runCtx, ownerID, t)}
		}(i, task)
	}

	collected := 0
	for collected < len(tasks) {
		select {
		case r := <-out:
			results[r.idx] = r.result
			collected++
		case <-runCtx.Done():
			return results
		}
	}
	return results
}

// ExecuteOne walks the fallback chain for a single task: the planned
// strategy first, then keyword search, then most-recent entries. Errors are
// captured in the result, never raised.
func (e *Executor) ExecuteOne(ctx context.Context, ownerID string, task Task) Result {
	result := Result{
		SubQuestion: task.SubQuestion,
		Plan:        task.Plan,
		State:       StatePlanned,
	}

	result.Attempts++
	result.State = StatePrimaryAttempted
	primaryErr := e.runPrimary(ctx, ownerID, task, &result)
	if primaryErr == nil && !result.Empty() {
		result.State = StateSucceeded
		result.Confidence = primaryConfidence(task.Plan)
		return result
	}
	if primaryErr != nil {
		result.Err = primaryErr
		e.logger.Warn("execute", "primary retrieval failed", map[string]interface{}{
			"sub_question": task.SubQuestion.Text,
			"method":       result.SearchMethod,
			"error":        primaryErr.Error(),
		})
	}

	// Aggregations have no meaningful lexical fallback; an empty count is
	// an answer, not a failure.
	if primaryErr == nil && isAggregation(task.Plan) {
		result.State = StateSucceeded
		result.Confidence = primaryConfidence(task.Plan)
		return result
	}

	result.Attempts++
	result.State = StateSecondaryAttempted
	result.FallbacksUsed = append(result.FallbacksUsed, "keyword")
	rows, err := e.store.KeywordSearch(ctx, ownerID, keywordTerms(task.SubQuestion), 10, windowOf(task.Plan))
	if err == nil && len(rows) > 0 {
		result.StructuredRows = rows
		result.SearchMethod = "keyword_fallback"
		result.State = StateDegraded
		result.Confidence = 0.5
		result.Err = nil
		return result
	}
	if err != nil {
		result.Err = err
	}

	result.Attempts++
	result.FallbacksUsed = append(result.FallbacksUsed, "recent")
	rows, err = e.store.Recent(ctx, ownerID, recentFallbackLimit)
	if err == nil && len(rows) > 0 {
		result.StructuredRows = rows
		result.SearchMethod = "recent_fallback"
		result.State = StateDegraded
		result.Confidence = 0.25
		result.Err = nil
		return result
	}
	if err != nil {
		result.Err = err
	}

	result.State = StateFailed
	if result.Err == nil {
		result.Err = fmt.Errorf("no evidence found after %d attempts", result.Attempts)
	}
	return result
}

func (e *Executor) runPrimary(ctx context.Context, ownerID string, task Task, result *Result) error {
	p := task.Plan
	switch p.Kind {
	case plan.KindVectorSearch:
		result.SearchMethod = "vector_search"
		rows, err := e.vectorSearch(ctx, ownerID, *p.Vector)
		result.VectorRows = rows
		return err

	case plan.KindCount:
		result.SearchMethod = "structured"
		count, err := e.store.Count(ctx, *p.Structured)
		if err != nil {
			return err
		}
		result.Count = &count
		return nil

	case plan.KindCalculation:
		result.SearchMethod = "structured"
		total := *p.Structured
		total.Filters = plan.EnsureOwnerScope(nil, ownerID)
		stat, err := e.store.Percentage(ctx, *p.Structured, total)
		if err != nil {
			return err
		}
		result.Percentage = &stat
		return nil

	case plan.KindTopEmotions:
		result.SearchMethod = "structured"
		freqs, err := e.store.TopEmotions(ctx, *p.Structured, topEmotionsLimit)
		if err != nil {
			return err
		}
		result.TopEmotions = freqs
		return nil

	case plan.KindSelect:
		result.SearchMethod = "structured"
		rows, err := e.store.ExecuteFilters(ctx, *p.Structured)
		result.StructuredRows = rows
		return err

	case plan.KindHybrid:
		result.SearchMethod = "hybrid"
		rows, err := e.store.ExecuteFilters(ctx, *p.Structured)
		if err != nil {
			return err
		}
		result.StructuredRows = rows
		vectorRows, err := e.vectorSearch(ctx, ownerID, *p.Vector)
		if err != nil {
			// Half a hybrid is still evidence.
			if len(rows) > 0 {
				return nil
			}
			return err
		}
		result.VectorRows = vectorRows
		return nil

	default:
		return fmt.Errorf("unknown plan kind %q", p.Kind)
	}
}

func (e *Executor) vectorSearch(ctx context.Context, ownerID string, spec plan.VectorSpec) ([]store.EvidenceRow, error) {
	embedding, err := e.embed(ctx, spec.Query)
	if err != nil {
		return nil, err
	}
	return e.store.SearchSimilar(ctx, ownerID, embedding, spec.TopK, spec.Threshold, spec.TimeRange)
}

// embed resolves the query embedding through the cache; identical query
// text within the TTL never hits the provider twice.
func (e *Executor) embed(ctx context.Context, text string) ([]float32, error) {
	key := cache.EmbeddingKey(text)
	value, err := e.cache.GetOrCompute(ctx, cache.NamespaceEmbedding, key, func(ctx context.Context) (interface{}, int, error) {
		vec, err := e.embedder.Embed(ctx, text)
		if err != nil {
			return nil, 0, err
		}
		return vec, len(vec) * 4, nil
	})
	if err != nil {
		return nil, err
	}
	embedding, ok := value.([]float32)
	if !ok {
		return nil, fmt.Errorf("embedding cache holds unexpected type %T", value)
	}
	return embedding, nil
}

func primaryConfidence(p plan.Plan) float64 {
	if p.Degraded {
		return 0.6
	}
	return 0.9
}

func isAggregation(p plan.Plan) bool {
	return p.Kind == plan.KindCount || p.Kind == plan.KindCalculation || p.Kind == plan.KindTopEmotions
}

func windowOf(p plan.Plan) *store.TimeRange {
	if p.Vector != nil {
		return p.Vector.TimeRange
	}
	return nil
}

// keywordTerms derives lexical search terms from the sub-question's
// confined vocabulary, falling back to the raw question text.
func keywordTerms(sq decompose.SubQuestion) []string {
	terms := make([]string, 0, len(sq.Params.Themes)+len(sq.Params.Emotions)+len(sq.Params.Entities))
	terms = append(terms, sq.Params.Themes...)
	terms = append(terms, sq.Params.Emotions...)
	terms = append(terms, sq.Params.Entities...)
	if len(terms) == 0 {
		terms = append(terms, sq.Text)
	}
	return terms
}
