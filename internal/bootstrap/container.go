package bootstrap

import (
	"context"
	"log"
	"time"

	"ai-docinsight-be/internal/config"
	"ai-docinsight-be/internal/controller"
	"ai-docinsight-be/internal/handler"
	"ai-docinsight-be/internal/pkg/logger"
	"ai-docinsight-be/internal/repository/memory"
	"ai-docinsight-be/internal/service"
	"ai-docinsight-be/internal/websocket"
	"ai-docinsight-be/pkg/cache"
	"ai-docinsight-be/pkg/chunking"
	"ai-docinsight-be/pkg/llm/factory"
	"ai-docinsight-be/pkg/ratelimit"

	pktNats "ai-docinsight-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

type Container struct {
	// Controllers
	DocumentController controller.IDocumentController
	AnalysisController controller.IAnalysisController
	SystemController   controller.ISystemController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService
	UploadTopic     string

	// WebSockets & Session surface
	SessionHandler *handler.SessionHandler
	WebSocketHub   *websocket.Hub

	// Cache janitor, exposed so main.go can stop it on shutdown
	Janitor *cache.Janitor
}

func NewContainer(cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// Initialize LLM Provider based on Config
	llmProvider, err := factory.NewLLMProvider(
		cfg.Ai.LLMProvider,
		cfg.Ai.LLMModel,
		cfg.Ai.OllamaBaseURL,
		cfg.Ai.OpenAIAPIKey,
	)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize LLM Provider: %v", err)
	}
	log.Printf("[INFO] Using LLM Provider: %s (%s)", cfg.Ai.LLMProvider, cfg.Ai.LLMModel)

	// Initialize In-Memory Session Storage
	sessionRepo := memory.NewSessionRepository()

	// 2.5 Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/session.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 3. Pipeline Components
	chunker := chunking.NewChunker(chunking.Config{
		MaxChunkSize:   cfg.Chunking.MaxChunkSize,
		MinChunkLength: cfg.Chunking.MinChunkLength,
		OverlapSize:    cfg.Chunking.OverlapSize,
	})

	contentCache := cache.New(cache.Config{
		Dir:              cfg.Cache.Dir,
		TTL:              cfg.Cache.TTL,
		MemoryMaxEntries: cfg.Cache.MemoryMaxEntries,
	}, sysLogger)

	janitor := cache.NewJanitor(contentCache, cfg.Cache.ExpiredSweepInterval, cfg.Cache.StaleSweepInterval, cfg.Cache.StaleAfter)
	janitor.Start()

	window := time.Duration(cfg.RateLimit.WindowSeconds) * time.Second
	limiter := ratelimit.New(ratelimit.Config{
		Budgets: map[ratelimit.Tier]ratelimit.TierBudget{
			ratelimit.TierNewUser:    {Requests: cfg.RateLimit.NewUserLimit, Window: window},
			ratelimit.TierRegular:    {Requests: cfg.RateLimit.RegularLimit, Window: window},
			ratelimit.TierPower:      {Requests: cfg.RateLimit.PowerLimit, Window: window},
			ratelimit.TierEnterprise: {Requests: cfg.RateLimit.EnterpriseLimit, Window: window},
		},
		SnapshotPath: cfg.RateLimit.SnapshotPath,
		SaveEvery:    cfg.RateLimit.SaveEvery,
	}, sysLogger)

	// 4. Services
	publisherService := service.NewPublisherService(cfg.App.UploadTopic, pubSub)
	documentService := service.NewDocumentService(publisherService, sysLogger)
	consumerService := service.NewConsumerService(
		pubSub,
		documentService,
		chunker,
		contentCache,
		wsHub,
		sysLogger,
	)

	analysisService := service.NewAnalysisService(
		sessionRepo,
		documentService,
		chunker,
		contentCache,
		limiter,
		llmProvider,
		wsHub,
		sysLogger,
	)

	// Handler
	sessionHandler := handler.NewSessionHandler(
		wsHub,
		analysisService,
		documentService,
		natsPub,
		cfg.Session.DebounceDelay,
		wsLogger,
	)

	// 5. Controllers
	return &Container{
		SessionHandler: sessionHandler,
		WebSocketHub:   wsHub,
		Janitor:        janitor,

		DocumentController: controller.NewDocumentController(documentService),
		AnalysisController: controller.NewAnalysisController(analysisService),
		SystemController:   controller.NewSystemController(contentCache, limiter),

		ConsumerService: consumerService,
		UploadTopic:     cfg.App.UploadTopic,
	}
}
