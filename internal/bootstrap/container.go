package bootstrap

import (
	"context"
	"log"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"ableton-smart-assistant/internal/config"
	"ableton-smart-assistant/internal/controller"
	"ableton-smart-assistant/internal/pkg/logger"
	"ableton-smart-assistant/internal/repository/contract"
	"ableton-smart-assistant/internal/repository/implementation"
	"ableton-smart-assistant/internal/repository/memory"
	"ableton-smart-assistant/internal/repository/redisstore"
	"ableton-smart-assistant/internal/service"
	"ableton-smart-assistant/pkg/embedding"
	"ableton-smart-assistant/pkg/guide/answer"
	"ableton-smart-assistant/pkg/guide/interaction"
	"ableton-smart-assistant/pkg/guide/validate"
	"ableton-smart-assistant/pkg/guide/workflow"
	"ableton-smart-assistant/pkg/llm"
	ollamallm "ableton-smart-assistant/pkg/llm/ollama"
	openaillm "ableton-smart-assistant/pkg/llm/openai"
	pkgNats "ableton-smart-assistant/pkg/nats"
	"ableton-smart-assistant/pkg/retrieval"
	"ableton-smart-assistant/pkg/screenshot"
	"ableton-smart-assistant/pkg/vision"
)

type Container struct {
	AssistantController controller.IAssistantController

	// Background services (exposed for main.go to run)
	ConsumerService service.IConsumerService

	SysLogger logger.ILogger
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	workflowLogger := log.New(logWriter{sysLogger}, "", 0)

	// Event bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// LLM provider
	var llmProvider llm.Provider
	if cfg.Ai.LLMProvider == "ollama" {
		llmProvider = ollamallm.NewProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.OllamaModel)
		log.Printf("[INFO] Using LLM Provider: OLLAMA (%s)", cfg.Ai.OllamaModel)
	} else if cfg.Ai.OpenAIAPIKey != "" {
		llmProvider = openaillm.NewProvider(cfg.Ai.OpenAIAPIKey, cfg.Ai.OpenAIModel)
		log.Printf("[INFO] Using LLM Provider: OPENAI (%s)", cfg.Ai.OpenAIModel)
	} else {
		log.Printf("[WARN] No LLM provider configured, running with heuristics only")
	}

	// Embedding provider
	var embeddingProvider embedding.Provider
	if cfg.Ai.EmbeddingProvider == "ollama" {
		embeddingProvider = embedding.NewOllamaProvider(cfg.Ai.OllamaBaseURL, cfg.Ai.OllamaEmbedModel)
		log.Printf("[INFO] Using Embedding Provider: OLLAMA (%s)", cfg.Ai.OllamaEmbedModel)
	} else if cfg.Ai.OpenAIAPIKey != "" {
		embeddingProvider = embedding.NewOpenAIProvider(cfg.Ai.OpenAIAPIKey, cfg.Ai.OpenAIEmbedModel)
		log.Printf("[INFO] Using Embedding Provider: OPENAI (%s)", cfg.Ai.OpenAIEmbedModel)
	} else {
		embeddingProvider = embedding.NewFallbackProvider()
		log.Printf("[WARN] No embedding provider configured, using deterministic fallback")
	}

	// Vision provider (screenshot analysis). OpenAI only; absent means the
	// lexical heuristics carry interaction detection.
	var visionProvider vision.Provider
	if cfg.Ai.OpenAIAPIKey != "" {
		visionProvider = vision.NewOpenAIProvider(cfg.Ai.OpenAIAPIKey, cfg.Ai.OpenAIVisionModel)
		log.Printf("[INFO] Using Vision Provider: OPENAI (%s)", cfg.Ai.OpenAIVisionModel)
	}

	// Knowledge store
	store := retrieval.NewStore(cfg.Knowledge.DocsPath, cfg.Knowledge.VersionsPath)
	log.Printf("[INFO] Knowledge store loaded: %d general, %d compatibility fragments",
		store.GeneralSize(), store.CompatibilitySize())

	// Session storage: Redis when configured, in-process cache otherwise
	var sessionRepo contract.SessionRepository = memory.NewSessionRepository()
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{Addr: cfg.App.RedisURL}
		}
		rdb := redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis, falling back to in-memory sessions: %v", err)
		} else {
			sessionRepo = redisstore.NewSessionRepository(rdb)
			log.Printf("[INFO] Using Redis session storage")
		}
	}

	// NATS mirror (optional)
	var natsPub *pkgNats.Publisher
	if cfg.App.NatsURL != "" {
		var err error
		natsPub, err = pkgNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
			natsPub = nil
		}
	}

	// Domain components
	screenshots := screenshot.NewResolver()
	synth := answer.NewSynthesizer(llmProvider, workflowLogger)
	classifier := interaction.NewClassifier(llmProvider, visionProvider, screenshots, workflowLogger)
	validator := validate.NewValidator(visionProvider, screenshots, workflowLogger)

	wf := workflow.New(
		embeddingProvider,
		store,
		synth,
		classifier,
		validator,
		llmProvider,
		workflowLogger,
	)
	wf.SetTopK(cfg.Knowledge.TopK)

	// Turn archive (optional, needs a DB)
	var turnRepo contract.TurnArchiveRepository
	if db != nil {
		turnRepo = implementation.NewTurnArchiveRepository(db)
	} else {
		log.Printf("[INFO] No database configured, turn archiving disabled")
	}

	publisherService := service.NewPublisherService(cfg.App.TurnTopic, pubSub, natsPub)
	consumerService := service.NewConsumerService(
		pubSub,
		cfg.App.TurnTopic,
		turnRepo,
		embeddingProvider,
	)

	assistantService := service.NewAssistantService(
		sessionRepo,
		turnRepo,
		wf,
		classifier,
		validator,
		publisherService,
		sysLogger,
	)

	return &Container{
		AssistantController: controller.NewAssistantController(assistantService),
		ConsumerService:     consumerService,
		SysLogger:           sysLogger,
	}
}

// logWriter adapts the structured logger to the plain *log.Logger the domain
// packages take.
type logWriter struct {
	logger logger.ILogger
}

func (w logWriter) Write(p []byte) (int, error) {
	w.logger.Info("workflow", string(p), nil)
	return len(p), nil
}
