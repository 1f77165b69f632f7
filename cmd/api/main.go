package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	openai "github.com/sashabaranov/go-openai"

	"github.com/prepview/interview-ai-platform/cmd/mainconfig"
	"github.com/prepview/interview-ai-platform/internal/agent"
	"github.com/prepview/interview-ai-platform/internal/api/router"
	appconfig "github.com/prepview/interview-ai-platform/internal/config"
	"github.com/prepview/interview-ai-platform/internal/evaluation"
	"github.com/prepview/interview-ai-platform/internal/http/handlers"
	"github.com/prepview/interview-ai-platform/internal/observability/metrics"
	"github.com/prepview/interview-ai-platform/internal/orchestrator"
	"github.com/prepview/interview-ai-platform/internal/session"
	"github.com/prepview/interview-ai-platform/internal/storage"
	"github.com/prepview/interview-ai-platform/internal/tokens"
	"github.com/prepview/interview-ai-platform/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting interview-ai-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx := context.Background()

	// Storage: Postgres in production, in-memory for local development.
	var (
		repo    session.Repository
		usage   tokens.Store
		reports evaluation.Store
		pool    *pgxpool.Pool
	)
	if cfg.UseMemoryDB || cfg.DatabaseURL == "" {
		logger.Warn("using in-memory storage; sessions will not survive restarts")
		mem := storage.NewMemoryStore()
		repo, usage, reports = mem, mem, mem
	} else {
		var err error
		pool, err = pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to create pgx pool", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		pg := storage.NewPostgresStore(pool)
		repo, usage, reports = pg, pg, pg
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer func() { _ = redisClient.Close() }()

	registry := agent.NewRegistry()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	bedrock := agent.NewBedrockClient(bedrockruntime.NewFromConfig(awsCfg))
	registry.Register(agent.ProviderBedrock,
		agent.NewRetryClient(bedrock, agent.ProviderBedrock, logger, agent.WithCallTimeout(cfg.LLMCallTimeout)))

	if cfg.OpenAIAPIKey != "" {
		client := agent.NewOpenAIClient(openai.NewClient(cfg.OpenAIAPIKey))
		registry.Register(agent.ProviderOpenAI,
			agent.NewRetryClient(client, agent.ProviderOpenAI, logger, agent.WithCallTimeout(cfg.LLMCallTimeout)))
	}
	if cfg.GeminiAPIKey != "" {
		gemini, gemErr := agent.NewGeminiClient(ctx, cfg.GeminiAPIKey)
		if gemErr != nil {
			logger.Error("failed to create gemini client", "error", gemErr)
			os.Exit(1)
		}
		defer gemini.Close()
		registry.Register(agent.ProviderGemini,
			agent.NewRetryClient(gemini, agent.ProviderGemini, logger, agent.WithCallTimeout(cfg.LLMCallTimeout)))
	}
	logger.Info("llm providers registered", "providers", registry.Providers())

	tracker := tokens.NewTracker(usage, logger)
	interviewer := agent.NewInterviewer(registry, redisClient, tracker, logger,
		agent.WithMaxTokens(int32(cfg.AgentMaxTokens)),
		agent.WithTemperature(float32(cfg.AgentTemperature)),
	)
	engine := evaluation.NewEngine(repo, reports, registry, tracker, logger)
	sessionMetrics := metrics.NewSessionMetrics(nil)
	orch := orchestrator.New(repo, interviewer, engine, tracker, logger,
		orchestrator.WithMetrics(sessionMetrics))

	r := router.New(&router.Config{
		Logger:             logger,
		SessionHandler:     handlers.NewSessionHandler(orch, logger),
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second, // LLM-backed endpoints retry up to three times
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}
