package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/medrecords/backend/internal/adapters/cache"
	"github.com/medrecords/backend/internal/adapters/database"
	"github.com/medrecords/backend/internal/adapters/events"
	"github.com/medrecords/backend/internal/adapters/queue"
	"github.com/medrecords/backend/internal/adapters/storage"
	"github.com/medrecords/backend/internal/api/handlers"
	"github.com/medrecords/backend/internal/api/routes"
	"github.com/medrecords/backend/internal/application/pipeline"
	"github.com/medrecords/backend/internal/application/services"
	"github.com/medrecords/backend/internal/infrastructure/clients/openai"
	"github.com/medrecords/backend/internal/infrastructure/clients/postgres"
	"github.com/medrecords/backend/internal/infrastructure/clients/redis"
	"github.com/medrecords/backend/internal/infrastructure/observability"
	"github.com/medrecords/backend/pkg/config"
	"github.com/medrecords/backend/pkg/secrets"
)

func main() {
	// Secrets from Vault are exported before the environment is read
	if _, err := secrets.ApplyVaultSecrets(context.Background(), secrets.VaultConfigFromEnv()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load Vault secrets: %v\n", err)
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Server.Env)
	logger := observability.GetLogger()

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			logger.Info().Msg("OpenTelemetry initialized successfully")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	// Document store
	pgClient, err := postgres.NewClient(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	// Redis backs the task queue, so it is required here
	redisClient, err := redis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize Redis client")
	}
	defer redisClient.Close()
	logger.Info().Str("addr", cfg.Redis.RedisAddr()).Msg("Redis client initialized successfully")

	blobs, err := storage.New(ctx, &cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize blob storage")
	}
	logger.Info().Str("provider", cfg.Storage.Provider).Msg("Blob storage initialized successfully")

	backend, err := openai.NewClient(&cfg.OpenAI)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize generative backend")
	}

	// Initialize adapters
	documentRepo := database.NewDocumentAdapter(pgClient)
	auditRepo := database.NewAuditLogAdapter(pgClient)
	cacheProvider := cache.NewRedisAdapter(redisClient, "medrecords:")
	eventBus := events.NewRedisEventBus(redisClient)

	redisOpt := queue.RedisOpt(&cfg.Redis)
	taskQueue := queue.NewAsynqQueue(redisOpt, cfg.Queue)
	defer taskQueue.Close()

	// Initialize services
	p := pipeline.New(backend, cfg.Pipeline, pipeline.WithMetrics(metrics))
	loader := services.NewDocumentTextLoader(blobs, p.Text, cacheProvider, cfg.Pipeline.TextCacheTTL)

	documentService := services.NewDocumentService(documentRepo, blobs, taskQueue, auditRepo, cfg.Pipeline, cfg.Storage.PresignTTL, metrics)
	analysisService := services.NewDocumentAnalysisService(documentRepo, loader, p, eventBus, auditRepo, cfg.Pipeline.AnalyzeTimeout)
	reportService := services.NewPatientReportService(documentRepo, loader, p, auditRepo, cfg.Pipeline.ReportTimeout)

	// The memory store is not shared across processes, so its tasks must be consumed here
	var worker *queue.Worker
	if cfg.Queue.InlineWorker || cfg.Storage.Provider == "memory" {
		summarizer := services.NewSummarizationService(documentRepo, loader, p, eventBus)
		worker = queue.NewWorker(redisOpt, cfg.Queue, summarizer)
		if err := worker.Start(); err != nil {
			logger.Fatal().Err(err).Msg("Failed to start inline worker")
		}
		logger.Info().Str("queue", cfg.Queue.Name).Msg("Inline worker started")
	}

	// Initialize handlers
	documentHandler := handlers.NewDocumentHandler(documentService, analysisService, cfg.Pipeline.MaxUploadBytes)
	reportHandler := handlers.NewReportHandler(reportService)
	sseHandler := handlers.NewSSEHandler(eventBus)

	router := routes.NewRouter(documentHandler, reportHandler, sseHandler, cfg.Server.AllowedOrigins, metrics)
	handler := router.SetupRoutes()

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      0, // SSE streams stay open; pipeline calls carry their own deadlines
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", serverAddr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Server shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error during server shutdown")
	}

	if worker != nil {
		worker.Shutdown()
	}

	if err := eventBus.Close(); err != nil {
		logger.Error().Err(err).Msg("Error closing event bus")
	}

	logger.Info().Msg("Server stopped")
}
