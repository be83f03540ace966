package execute

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"soul-journal-be/internal/pkg/logger"
	"soul-journal-be/pkg/cache"
	"soul-journal-be/pkg/rag/decompose"
	"soul-journal-be/pkg/rag/plan"
	"soul-journal-be/pkg/store"
)

type fakeStore struct {
	similarRows  []store.EvidenceRow
	similarErr   error
	filterRows   []store.EvidenceRow
	filterErr    error
	countValue   int64
	countErr     error
	emotionFreqs []store.EmotionFrequency
	keywordRows  []store.EvidenceRow
	keywordErr   error
	recentRows   []store.EvidenceRow
	recentErr    error

	similarCalls int32
	keywordCalls int32
	recentCalls  int32
}

func (f *fakeStore) SearchSimilar(ctx context.Context, ownerID string, embedding []float32, topK int, threshold float32, window *store.TimeRange) ([]store.EvidenceRow, error) {
	atomic.AddInt32(&f.similarCalls, 1)
	return f.similarRows, f.similarErr
}

func (f *fakeStore) ExecuteFilters(ctx context.Context, spec plan.StructuredSpec) ([]store.EvidenceRow, error) {
	return f.filterRows, f.filterErr
}

func (f *fakeStore) Count(ctx context.Context, spec plan.StructuredSpec) (int64, error) {
	return f.countValue, f.countErr
}

func (f *fakeStore) Percentage(ctx context.Context, subset, total plan.StructuredSpec) (store.PercentageStat, error) {
	return store.PercentageStat{}, nil
}

func (f *fakeStore) TopEmotions(ctx context.Context, spec plan.StructuredSpec, limit int) ([]store.EmotionFrequency, error) {
	return f.emotionFreqs, nil
}

func (f *fakeStore) KeywordSearch(ctx context.Context, ownerID string, terms []string, limit int, window *store.TimeRange) ([]store.EvidenceRow, error) {
	atomic.AddInt32(&f.keywordCalls, 1)
	return f.keywordRows, f.keywordErr
}

func (f *fakeStore) Recent(ctx context.Context, ownerID string, limit int) ([]store.EvidenceRow, error) {
	atomic.AddInt32(&f.recentCalls, 1)
	return f.recentRows, f.recentErr
}

type fakeEmbedder struct {
	err   error
	calls int32
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func rows(n int) []store.EvidenceRow {
	out := make([]store.EvidenceRow, n)
	for i := range out {
		out[i] = store.EvidenceRow{ID: string(rune('a' + i)), Content: "entry"}
	}
	return out
}

func vectorTask(text string) Task {
	return Task{
		SubQuestion: decompose.SubQuestion{Text: text, Type: decompose.TypeContextual, Priority: 3, Strategy: decompose.StrategyVector},
		Plan: plan.Plan{
			Kind:   plan.KindVectorSearch,
			Vector: &plan.VectorSpec{Query: text, TopK: 8, Threshold: 0.45},
		},
	}
}

func newExecutor(st Store, emb Embedder) *Executor {
	return NewExecutor(st, emb, cache.New(logger.NewNopLogger()), logger.NewNopLogger())
}

func TestVectorFailureFallsBackToKeyword(t *testing.T) {
	st := &fakeStore{
		similarErr:  errors.New("pgvector index unavailable"),
		keywordRows: rows(3),
	}
	exec := newExecutor(st, &fakeEmbedder{})

	result := exec.ExecuteOne(context.Background(), "owner-123", vectorTask("what did I write about running"))

	if result.State != StateDegraded {
		t.Fatalf("got state %s, want DEGRADED", result.State)
	}
	if result.SearchMethod != "keyword_fallback" {
		t.Errorf("got searchMethod %q, want keyword_fallback", result.SearchMethod)
	}
	if len(result.FallbacksUsed) == 0 || result.FallbacksUsed[0] != "keyword" {
		t.Errorf("fallbacksUsed = %v, want keyword recorded", result.FallbacksUsed)
	}
	if len(result.Rows()) != 3 {
		t.Errorf("got %d rows, want 3", len(result.Rows()))
	}
	if result.Err != nil {
		t.Errorf("recovered result still carries error: %v", result.Err)
	}
}

func TestFallbackChainStopsAtThreeAttempts(t *testing.T) {
	st := &fakeStore{
		similarErr: errors.New("down"),
		keywordErr: errors.New("down"),
		recentErr:  errors.New("down"),
	}
	exec := newExecutor(st, &fakeEmbedder{})

	result := exec.ExecuteOne(context.Background(), "owner-123", vectorTask("anything"))

	if result.Attempts != MaxAttempts {
		t.Fatalf("got %d attempts, want exactly %d", result.Attempts, MaxAttempts)
	}
	if result.State != StateFailed {
		t.Errorf("got state %s, want FAILED", result.State)
	}
	if result.Err == nil {
		t.Error("failed result must carry its error")
	}
	if st.keywordCalls != 1 || st.recentCalls != 1 {
		t.Errorf("fallbacks invoked keyword=%d recent=%d, want 1 each", st.keywordCalls, st.recentCalls)
	}
}

func TestEmptyPrimaryTriggersFallback(t *testing.T) {
	st := &fakeStore{recentRows: rows(2)}
	exec := newExecutor(st, &fakeEmbedder{})

	result := exec.ExecuteOne(context.Background(), "owner-123", vectorTask("obscure topic"))

	if result.SearchMethod != "recent_fallback" {
		t.Fatalf("got searchMethod %q, want recent_fallback", result.SearchMethod)
	}
	if result.Confidence >= 0.5 {
		t.Errorf("recent fallback confidence %v not reduced", result.Confidence)
	}
}

func TestCountZeroIsAnAnswerNotAFailure(t *testing.T) {
	st := &fakeStore{countValue: 0}
	exec := newExecutor(st, &fakeEmbedder{})

	task := Task{
		SubQuestion: decompose.SubQuestion{Text: "how many entries mention surfing", Type: decompose.TypeAnalytical},
		Plan: plan.Plan{
			Kind:       plan.KindCount,
			Structured: &plan.StructuredSpec{Operation: plan.KindCount},
		},
	}

	result := exec.ExecuteOne(context.Background(), "owner-123", task)

	if result.State != StateSucceeded {
		t.Fatalf("got state %s, want SUCCEEDED", result.State)
	}
	if result.Count == nil || *result.Count != 0 {
		t.Errorf("zero count lost: %+v", result.Count)
	}
	if st.keywordCalls != 0 {
		t.Error("aggregation ran a lexical fallback")
	}
}

func TestTopEmotionsAggregation(t *testing.T) {
	st := &fakeStore{emotionFreqs: []store.EmotionFrequency{
		{Emotion: "joy", Count: 7},
		{Emotion: "stress", Count: 4},
	}}
	exec := newExecutor(st, &fakeEmbedder{})

	task := Task{
		SubQuestion: decompose.SubQuestion{Text: "what were my top emotions", Type: decompose.TypeEmotional},
		Plan: plan.Plan{
			Kind:       plan.KindTopEmotions,
			Structured: &plan.StructuredSpec{Operation: plan.KindTopEmotions},
		},
	}

	result := exec.ExecuteOne(context.Background(), "owner-123", task)

	if result.State != StateSucceeded {
		t.Fatalf("got state %s, want SUCCEEDED", result.State)
	}
	if len(result.TopEmotions) != 2 || result.TopEmotions[0].Emotion != "joy" {
		t.Errorf("unexpected emotion buckets: %+v", result.TopEmotions)
	}
	if st.keywordCalls != 0 {
		t.Error("aggregation ran a lexical fallback")
	}
}

func TestExecuteAllIsolatesFailures(t *testing.T) {
	healthy := &fakeStore{similarRows: rows(2)}
	exec := newExecutor(healthy, &fakeEmbedder{})

	tasks := []Task{vectorTask("first"), vectorTask("second"), vectorTask("third")}
	results := exec.ExecuteAll(context.Background(), "owner-123", tasks, Limits{MaxConcurrency: 2, Timeout: 5 * time.Second})

	if len(results) != len(tasks) {
		t.Fatalf("got %d results, want %d", len(results), len(tasks))
	}
	for i, r := range results {
		if r.State != StateSucceeded {
			t.Errorf("task %d: got state %s, want SUCCEEDED", i, r.State)
		}
	}
}

func TestExecuteAllDeadlineMarksStragglersFailed(t *testing.T) {
	st := &fakeStore{similarRows: rows(1)}
	slow := &slowEmbedder{delay: 200 * time.Millisecond}
	exec := NewExecutor(st, slow, cache.New(logger.NewNopLogger()), logger.NewNopLogger())

	tasks := []Task{vectorTask("slow one"), vectorTask("slow two")}
	results := exec.ExecuteAll(context.Background(), "owner-123", tasks, Limits{MaxConcurrency: 1, Timeout: 50 * time.Millisecond})

	var failed int
	for _, r := range results {
		if r.State == StateFailed {
			failed++
			if r.Err == nil {
				t.Error("abandoned task missing its error")
			}
		}
	}
	if failed == 0 {
		t.Error("deadline passed but no task reported failed")
	}
}

type slowEmbedder struct {
	delay time.Duration
}

func (s *slowEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	select {
	case <-time.After(s.delay):
		return []float32{0.1}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestIdenticalQueriesEmbedOnce(t *testing.T) {
	st := &fakeStore{similarRows: rows(1)}
	emb := &fakeEmbedder{}
	exec := newExecutor(st, emb)

	task := vectorTask("repeated question")
	exec.ExecuteOne(context.Background(), "owner-123", task)
	exec.ExecuteOne(context.Background(), "owner-123", task)

	if emb.calls != 1 {
		t.Errorf("embedding provider called %d times for identical text, want 1", emb.calls)
	}
}
