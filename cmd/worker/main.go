package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/medrecords/backend/internal/adapters/cache"
	"github.com/medrecords/backend/internal/adapters/database"
	"github.com/medrecords/backend/internal/adapters/events"
	"github.com/medrecords/backend/internal/adapters/queue"
	"github.com/medrecords/backend/internal/adapters/storage"
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
	if _, err := secrets.ApplyVaultSecrets(context.Background(), secrets.VaultConfigFromEnv()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load Vault secrets: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName+"-worker", cfg.Server.Env)
	logger := observability.GetLogger()

	if cfg.Storage.Provider == "memory" {
		logger.Fatal().Msg("The memory blob store cannot be shared with a separate worker; use QUEUE_INLINE_WORKER on the API instead")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName+"-worker", cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
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
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	pgClient, err := postgres.NewClient(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize PostgreSQL client")
	}
	defer pgClient.Close()

	redisClient, err := redis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize Redis client")
	}
	defer redisClient.Close()

	blobs, err := storage.New(ctx, &cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize blob storage")
	}

	backend, err := openai.NewClient(&cfg.OpenAI)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize generative backend")
	}

	eventBus := events.NewRedisEventBus(redisClient)
	defer eventBus.Close()

	p := pipeline.New(backend, cfg.Pipeline, pipeline.WithMetrics(metrics))
	loader := services.NewDocumentTextLoader(blobs, p.Text, cache.NewRedisAdapter(redisClient, "medrecords:"), cfg.Pipeline.TextCacheTTL)
	summarizer := services.NewSummarizationService(database.NewDocumentAdapter(pgClient), loader, p, eventBus)

	worker := queue.NewWorker(queue.RedisOpt(&cfg.Redis), cfg.Queue, summarizer)
	if err := worker.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start worker")
	}
	logger.Info().
		Str("queue", cfg.Queue.Name).
		Int("concurrency", cfg.Queue.Concurrency).
		Msg("Worker started")

	<-ctx.Done()

	logger.Info().Msg("Worker shutting down...")
	worker.Shutdown()
	logger.Info().Msg("Worker stopped")
}
