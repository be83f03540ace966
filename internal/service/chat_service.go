package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"soul-journal-be/internal/apperr"
	"soul-journal-be/internal/constant"
	"soul-journal-be/internal/dto"
	"soul-journal-be/internal/pkg/logger"
	redisrepo "soul-journal-be/internal/repository/redis"
	"soul-journal-be/pkg/cache"
	"soul-journal-be/pkg/embedding"
	"soul-journal-be/pkg/rag/aggregate"
	"soul-journal-be/pkg/rag/classify"
	"soul-journal-be/pkg/rag/decompose"
	"soul-journal-be/pkg/rag/execute"
	"soul-journal-be/pkg/rag/plan"
	"soul-journal-be/pkg/rag/response"
	"soul-journal-be/pkg/rag/route"
	"soul-journal-be/pkg/store"
)

const responseCacheBucket = 5 * time.Minute

type IChatService interface {
	Query(ctx context.Context, ownerID uuid.UUID, req *dto.QueryRequest) (*dto.QueryResponse, error)
}

// chatService runs the full question pipeline: classify, decompose, plan,
// execute under an adaptive route, aggregate, answer.
type chatService struct {
	classifier   *classify.Classifier
	decomposer   *decompose.Decomposer
	planner      *plan.Planner
	executor     *execute.Executor
	router       *route.Router
	aggregator   *aggregate.Builder
	generator    *response.Generator
	threads      *redisrepo.ThreadRepository
	journals     IJournalService
	cacheService *cache.Service
	budget       time.Duration
	logger       logger.ILogger
}

func NewChatService(
	classifier *classify.Classifier,
	decomposer *decompose.Decomposer,
	planner *plan.Planner,
	executor *execute.Executor,
	router *route.Router,
	generator *response.Generator,
	threads *redisrepo.ThreadRepository,
	journals IJournalService,
	cacheService *cache.Service,
	budget time.Duration,
	log logger.ILogger,
) IChatService {
	if budget <= 0 {
		budget = 45 * time.Second
	}
	return &chatService{
		classifier:   classifier,
		decomposer:   decomposer,
		planner:      planner,
		executor:     executor,
		router:       router,
		aggregator:   aggregate.NewBuilder(),
		generator:    generator,
		threads:      threads,
		journals:     journals,
		cacheService: cacheService,
		budget:       budget,
		logger:       log,
	}
}

func (s *chatService) Query(ctx context.Context, ownerID uuid.UUID, req *dto.QueryRequest) (*dto.QueryResponse, error) {
	started := time.Now()

	// Overall request budget: when it elapses, in-flight sub-question tasks
	// are abandoned, not joined.
	ctx, cancel := context.WithTimeout(ctx, s.budget)
	defer cancel()

	threadID := req.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	}

	thread, err := s.threads.Load(ctx, ownerID.String(), threadID)
	if err != nil {
		s.logger.Warn("chat", "thread load failed, continuing without history", map[string]interface{}{"error": err.Error()})
		thread = store.Thread{ID: threadID, OwnerID: ownerID.String()}
	}

	cacheKey := s.responseCacheKey(req, ownerID)
	if cached, found := s.cacheService.Get(cache.NamespaceResponse, cacheKey); found {
		if resp, ok := cached.(*dto.QueryResponse); ok {
			out := *resp
			out.ThreadID = threadID
			out.Analysis.CacheHit = true
			out.Analysis.ProcessingTimeMs = time.Since(started).Milliseconds()
			s.persistTurns(ctx, thread, req.Message, out.Response)
			return &out, nil
		}
	}

	entryCount, err := s.journals.CountByOwner(ctx, ownerID)
	if err != nil {
		s.logger.Warn("chat", "entry count failed, assuming populated journal", map[string]interface{}{"error": err.Error()})
		entryCount = -1
	}

	profile := store.Profile{
		Timezone:   req.Timezone,
		EntryCount: entryCount,
	}

	classification, err := s.classifier.Classify(ctx, req.Message, thread.Turns, profile)
	if err != nil && apperr.Retryable(err) {
		s.logger.Warn("chat", "classification failed, retrying once", map[string]interface{}{"error": err.Error()})
		classification, err = s.classifier.Classify(ctx, req.Message, thread.Turns, profile)
	}
	if err != nil {
		s.logger.Error("chat", "classification failed", map[string]interface{}{"error": err.Error()})
		return s.finishWithReply(ctx, thread, req.Message, threadID, constant.ReplyGenericApology, started), nil
	}
	if classification.SkipPipeline {
		return s.finishWithReply(ctx, thread, req.Message, threadID, classification.Reply, started), nil
	}

	subQuestions := s.decomposer.Decompose(ctx, req.Message, thread.Turns, req.TimeRange)

	tasks := make([]execute.Task, len(subQuestions))
	needsAggregation := false
	hasTimeConstraint := req.TimeRange != nil
	for i, sq := range subQuestions {
		if sq.Params.AnalysisKind != "" {
			needsAggregation = true
		}
		if sq.Params.TimeRange != nil {
			hasTimeConstraint = true
		}
		tasks[i] = execute.Task{
			SubQuestion: sq,
			Plan:        s.planner.Build(sq, ownerID.String(), req.TimeRange),
		}
	}

	signals := route.Signals{
		SubQuestionCount:  len(subQuestions),
		HasTimeConstraint: hasTimeConstraint,
		NeedsAggregation:  needsAggregation,
	}
	cfg := s.router.Select(req.Message, signals)

	value, usedRoute, err := s.router.Execute(ctx, req.Message, cfg, func(runCtx context.Context, active route.Config) (interface{}, error) {
		res := s.executor.ExecuteAll(runCtx, ownerID.String(), tasks, execute.Limits{
			MaxConcurrency: active.MaxConcurrency,
			Timeout:        active.Timeout,
		})
		return res, runCtx.Err()
	})
	if err != nil {
		s.logger.Error("chat", "all route attempts failed", map[string]interface{}{"error": err.Error()})
	}
	results, _ := value.([]execute.Result)

	evidence := s.aggregator.Build(results)
	s.logger.Info("chat", "evidence assembled", map[string]interface{}{
		"provenance": response.Describe(evidence),
		"rows":       len(evidence.Rows),
		"route":      usedRoute.Name,
	})
	answer := s.generator.Generate(ctx, req.Message, thread.Turns, evidence)

	resp := s.buildResponse(threadID, answer, evidence, usedRoute, started)

	if !evidence.Degraded && !evidence.NoEvidence {
		cached := *resp
		s.cacheService.Set(cache.NamespaceResponse, cacheKey, &cached, len(answer))
	}

	s.persistTurns(ctx, thread, req.Message, answer)
	return resp, nil
}

func (s *chatService) responseCacheKey(req *dto.QueryRequest, ownerID uuid.UUID) string {
	var params []string
	if req.TimeRange != nil {
		params = append(params,
			req.TimeRange.Start.UTC().Format(time.RFC3339),
			req.TimeRange.End.UTC().Format(time.RFC3339),
		)
	}
	return cache.RequestKey(req.Message, ownerID.String(), params, time.Now(), responseCacheBucket)
}

func (s *chatService) finishWithReply(ctx context.Context, thread store.Thread, message, threadID, reply string, started time.Time) *dto.QueryResponse {
	s.persistTurns(ctx, thread, message, reply)
	return &dto.QueryResponse{
		Response: reply,
		ThreadID: threadID,
		Analysis: dto.QueryAnalysis{
			SearchMethod:     "none",
			ProcessingTimeMs: time.Since(started).Milliseconds(),
		},
	}
}

func (s *chatService) buildResponse(threadID, answer string, evidence aggregate.Evidence, usedRoute route.Config, started time.Time) *dto.QueryResponse {
	references := make([]dto.ReferenceRecord, 0, len(evidence.Rows))
	limit := usedRoute.RecordLimit
	for i, row := range evidence.Rows {
		if limit > 0 && i >= limit {
			break
		}
		references = append(references, dto.ReferenceRecord{
			ID:        row.ID,
			Date:      row.CreatedAt.Format("2006-01-02"),
			Excerpt:   excerpt(row.Content),
			Themes:    row.Themes,
			Relevance: row.Score,
		})
	}

	var stats []dto.StatisticalDatum
	for question, count := range evidence.Counts {
		c := count
		stats = append(stats, dto.StatisticalDatum{Question: question, Count: &c})
	}
	for question, stat := range evidence.Percentages {
		stats = append(stats, dto.StatisticalDatum{Question: question, Percentage: stat.Percentage})
	}
	for question, freqs := range evidence.TopEmotions {
		stats = append(stats, dto.StatisticalDatum{Question: question, TopEmotions: freqs})
	}

	return &dto.QueryResponse{
		Response: answer,
		ThreadID: threadID,
		Analysis: dto.QueryAnalysis{
			SearchMethod:     evidence.SearchMethod,
			FallbacksUsed:    evidence.FallbacksUsed,
			ResultsCount:     len(evidence.Rows),
			ProcessingTimeMs: time.Since(started).Milliseconds(),
			Degraded:         evidence.Degraded,
			Route:            usedRoute.Name,
		},
		ReferenceRecords: references,
		StatisticalData:  stats,
	}
}

func (s *chatService) persistTurns(ctx context.Context, thread store.Thread, message, answer string) {
	now := time.Now().UTC()
	err := s.threads.AppendTurns(ctx, thread.OwnerID, thread.ID,
		store.Turn{Role: store.RoleUser, Content: message, Timestamp: now},
		store.Turn{Role: store.RoleAssistant, Content: answer, Timestamp: now},
	)
	if err != nil {
		s.logger.Warn("chat", "thread save failed", map[string]interface{}{"error": err.Error()})
	}
}

func excerpt(content string) string {
	const max = 280
	if len(content) <= max {
		return content
	}
	return content[:max] + "..."
}

// QueryEmbedder adapts the embedding provider to the executor's port with
// query-side task typing.
type QueryEmbedder struct {
	Provider embedding.EmbeddingProvider
}

func (q QueryEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return q.Provider.Generate(ctx, text, embedding.TaskQuery)
}
