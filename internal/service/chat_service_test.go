package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"soul-journal-be/internal/constant"
	"soul-journal-be/internal/dto"
	"soul-journal-be/internal/pkg/logger"
	redisrepo "soul-journal-be/internal/repository/redis"
	"soul-journal-be/pkg/cache"
	"soul-journal-be/pkg/llm"
	"soul-journal-be/pkg/rag/classify"
	"soul-journal-be/pkg/rag/decompose"
	"soul-journal-be/pkg/rag/execute"
	"soul-journal-be/pkg/rag/plan"
	"soul-journal-be/pkg/rag/response"
	"soul-journal-be/pkg/rag/route"
	"soul-journal-be/pkg/store"
)

// scriptedLLM answers each Generate call from a script entry; a nil entry
// blocks until the context is cancelled.
type scriptedLLM struct {
	mu     sync.Mutex
	calls  int
	script []func() (string, error)
}

func (f *scriptedLLM) Generate(ctx context.Context, prompt string, _ ...llm.Option) (string, error) {
	f.mu.Lock()
	idx := f.calls
	f.calls++
	f.mu.Unlock()

	if idx >= len(f.script) || f.script[idx] == nil {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.script[idx]()
}

func (f *scriptedLLM) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	return f.Generate(ctx, "", opts...)
}

func (f *scriptedLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type stubJournalService struct {
	entryCount int64
}

func (s *stubJournalService) Create(ctx context.Context, ownerID uuid.UUID, req *dto.CreateJournalEntryRequest) (*dto.JournalEntryResponse, error) {
	return nil, nil
}
func (s *stubJournalService) Show(ctx context.Context, ownerID uuid.UUID, id uuid.UUID) (*dto.JournalEntryResponse, error) {
	return nil, nil
}
func (s *stubJournalService) List(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*dto.JournalEntryResponse, error) {
	return nil, nil
}
func (s *stubJournalService) Update(ctx context.Context, ownerID uuid.UUID, id uuid.UUID, req *dto.UpdateJournalEntryRequest) (*dto.JournalEntryResponse, error) {
	return nil, nil
}
func (s *stubJournalService) Delete(ctx context.Context, ownerID uuid.UUID, id uuid.UUID) error {
	return nil
}
func (s *stubJournalService) CountByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	return s.entryCount, nil
}

type emptyEvidenceStore struct{}

func (emptyEvidenceStore) SearchSimilar(ctx context.Context, ownerID string, embedding []float32, topK int, threshold float32, window *store.TimeRange) ([]store.EvidenceRow, error) {
	return nil, nil
}
func (emptyEvidenceStore) ExecuteFilters(ctx context.Context, spec plan.StructuredSpec) ([]store.EvidenceRow, error) {
	return nil, nil
}
func (emptyEvidenceStore) Count(ctx context.Context, spec plan.StructuredSpec) (int64, error) {
	return 0, nil
}
func (emptyEvidenceStore) Percentage(ctx context.Context, subset, total plan.StructuredSpec) (store.PercentageStat, error) {
	return store.PercentageStat{}, nil
}
func (emptyEvidenceStore) TopEmotions(ctx context.Context, spec plan.StructuredSpec, limit int) ([]store.EmotionFrequency, error) {
	return nil, nil
}
func (emptyEvidenceStore) KeywordSearch(ctx context.Context, ownerID string, terms []string, limit int, window *store.TimeRange) ([]store.EvidenceRow, error) {
	return nil, nil
}
func (emptyEvidenceStore) Recent(ctx context.Context, ownerID string, limit int) ([]store.EvidenceRow, error) {
	return nil, nil
}

type zeroEmbedder struct{}

func (zeroEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

type staticVocabulary struct{}

func (staticVocabulary) Vocabulary(ctx context.Context) (decompose.Vocabulary, error) {
	return decompose.Vocabulary{Themes: []string{"work"}, Emotions: []string{"joy"}}, nil
}

func newTestChatService(t *testing.T, provider llm.LLMProvider, budget time.Duration) IChatService {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	nop := logger.NewNopLogger()
	cacheService := cache.New(nop)

	return NewChatService(
		classify.NewClassifier(provider, nop),
		decompose.NewDecomposer(provider, staticVocabulary{}, nop),
		plan.NewPlanner(nop),
		execute.NewExecutor(emptyEvidenceStore{}, zeroEmbedder{}, cacheService, nop),
		route.NewRouter(route.NewTracker(), nop),
		response.NewGenerator(provider, nop),
		redisrepo.NewThreadRepository(client, time.Hour),
		&stubJournalService{entryCount: 12},
		cacheService,
		budget,
		nop,
	)
}

func TestQueryHonorsRequestBudget(t *testing.T) {
	// Every script entry nil: the model hangs until the budget cancels it.
	provider := &scriptedLLM{}
	svc := newTestChatService(t, provider, 60*time.Millisecond)

	started := time.Now()
	resp, err := svc.Query(context.Background(), uuid.New(), &dto.QueryRequest{
		Message: "How did I feel about work last week?",
	})
	elapsed := time.Since(started)

	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if elapsed > 2*time.Second {
		t.Fatalf("Query ran %s with a 60ms budget", elapsed)
	}
	if resp.Response != constant.ReplyGenericApology {
		t.Errorf("Response = %q, want the apology fallback", resp.Response)
	}
}

func TestQueryRetriesClassificationOnce(t *testing.T) {
	reply := "Happy to help with your journal."
	provider := &scriptedLLM{script: []func() (string, error){
		func() (string, error) { return "", errors.New("upstream hiccup") },
		func() (string, error) { return `{"category":"GENERAL","reply":"` + reply + `"}`, nil },
	}}
	svc := newTestChatService(t, provider, 5*time.Second)

	resp, err := svc.Query(context.Background(), uuid.New(), &dto.QueryRequest{
		Message: "How did I feel about work last week?",
	})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if got := provider.callCount(); got != 2 {
		t.Fatalf("model called %d times, want a single retry (2)", got)
	}
	if resp.Response != reply {
		t.Errorf("Response = %q, want %q", resp.Response, reply)
	}
}
