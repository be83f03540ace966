package bootstrap

import (
	"log"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	goredis "github.com/redis/go-redis/v9"

	"soul-journal-be/internal/config"
	"soul-journal-be/internal/controller"
	"soul-journal-be/internal/pkg/logger"
	"soul-journal-be/internal/pkg/serverutils"
	"soul-journal-be/internal/repository/implementation"
	redisrepo "soul-journal-be/internal/repository/redis"
	"soul-journal-be/internal/repository/unitofwork"
	"soul-journal-be/internal/service"
	"soul-journal-be/pkg/cache"
	"soul-journal-be/pkg/embedding"
	"soul-journal-be/pkg/llm/factory"
	pktNats "soul-journal-be/pkg/nats"
	"soul-journal-be/pkg/rag/classify"
	"soul-journal-be/pkg/rag/decompose"
	"soul-journal-be/pkg/rag/execute"
	"soul-journal-be/pkg/rag/plan"
	"soul-journal-be/pkg/rag/response"
	"soul-journal-be/pkg/rag/route"
	"soul-journal-be/pkg/retry"

	"gorm.io/gorm"
)

// Container wires the whole dependency graph. One cache service instance is
// built here and threaded through; nothing else constructs one.
type Container struct {
	Logger       logger.ILogger
	CacheService *cache.Service

	ChatController    controller.IChatController
	JournalController controller.IJournalController
	HealthController  controller.IHealthController

	ConsumerService      service.IConsumerService
	EventConsumerService service.IEventConsumerService
	ChatService          service.IChatService
	JournalService       service.IJournalService
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	appLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	cacheService := cache.New(appLogger)

	// Providers. Query embedding keeps retries short so chat latency stays
	// bounded; the ingest consumer gets its own provider with a patient policy.
	queryEmbeddingProvider := newEmbeddingProvider(cfg, retry.DefaultPolicy())
	ingestEmbeddingProvider := newEmbeddingProvider(cfg, retry.IngestPolicy())
	llmProvider, err := factory.NewLLMProvider(cfg.AI.LLMProvider, cfg.AI.LLMModel, cfg.AI.OllamaBaseURL, cfg.Keys.GoogleGemini)
	if err != nil {
		log.Panicf("Unable to initialize LLM provider: %v", err)
	}

	// Stores
	uowFactory := unitofwork.NewRepositoryFactory(db)

	redisClient := goredis.NewClient(redisOptions(cfg.App.RedisURL, appLogger))
	threadRepo := redisrepo.NewThreadRepository(redisClient, cfg.Pipeline.ThreadTTL)

	evidenceStore := implementation.NewEvidenceRepository(db,
		implementation.NewJournalRepository(db),
		implementation.NewJournalEmbeddingRepository(db),
	)

	// Messaging
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NewStdLogger(false, false))
	publisherService := service.NewPublisherService(cfg.Pipeline.EmbedEntryTopic, pubSub)

	var eventPublisher *pktNats.Publisher
	var eventSubscriber *pktNats.Subscriber
	if cfg.App.NatsURL != "" {
		eventPublisher, err = pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			appLogger.Warn("bootstrap", "NATS unavailable, journal events disabled", map[string]interface{}{"error": err.Error()})
			eventPublisher = nil
		}
		eventSubscriber, err = pktNats.NewSubscriber(cfg.App.NatsURL)
		if err != nil {
			appLogger.Warn("bootstrap", "NATS unavailable, cross-instance cache invalidation disabled", map[string]interface{}{"error": err.Error()})
			eventSubscriber = nil
		}
	}

	// Services
	journalService := service.NewJournalService(uowFactory, publisherService, eventPublisher, appLogger)
	vocabService := service.NewVocabularyService(uowFactory, appLogger)
	consumerService := service.NewConsumerService(pubSub, cfg.Pipeline.EmbedEntryTopic, uowFactory, ingestEmbeddingProvider, appLogger)

	var eventConsumerService service.IEventConsumerService
	if eventSubscriber != nil {
		eventConsumerService = service.NewEventConsumerService(eventSubscriber, cacheService, appLogger)
	}

	// Pipeline
	classifier := classify.NewClassifier(llmProvider, appLogger)
	decomposer := decompose.NewDecomposer(llmProvider, vocabService, appLogger)
	planner := plan.NewPlanner(appLogger)
	executor := execute.NewExecutor(evidenceStore, service.QueryEmbedder{Provider: queryEmbeddingProvider}, cacheService, appLogger)
	router := route.NewRouter(route.NewTracker(), appLogger)
	generator := response.NewGenerator(llmProvider, appLogger)

	chatService := service.NewChatService(
		classifier, decomposer, planner, executor, router, generator,
		threadRepo, journalService, cacheService, cfg.Pipeline.RequestBudget, appLogger,
	)

	// Controllers
	jwtGuard := serverutils.NewJwtMiddleware(cfg.App.JWTSecret)
	chatController := controller.NewChatController(chatService, vocabService, jwtGuard)
	journalController := controller.NewJournalController(journalService, jwtGuard)
	healthController := controller.NewHealthController(db)

	return &Container{
		Logger:       appLogger,
		CacheService: cacheService,

		ChatController:    chatController,
		JournalController: journalController,
		HealthController:  healthController,

		ConsumerService:      consumerService,
		EventConsumerService: eventConsumerService,
		ChatService:          chatService,
		JournalService:       journalService,
	}
}

// redisOptions accepts both redis:// URLs and bare host:port addresses, since
// deploy environments set REDIS_URL either way.
func redisOptions(rawURL string, log logger.ILogger) *goredis.Options {
	opts, err := goredis.ParseURL(rawURL)
	if err != nil {
		log.Warn("bootstrap", "REDIS_URL is not a redis:// URL, treating it as a bare address", map[string]interface{}{"error": err.Error()})
		return &goredis.Options{Addr: rawURL}
	}
	return opts
}

func newEmbeddingProvider(cfg *config.Config, policy retry.Policy) embedding.EmbeddingProvider {
	if cfg.AI.EmbeddingProvider == "ollama" {
		return embedding.NewOllamaProvider(cfg.AI.OllamaBaseURL, cfg.AI.OllamaModel, policy)
	}
	return embedding.NewGeminiProvider(cfg.Keys.GoogleGemini, policy)
}
