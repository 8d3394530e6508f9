package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/medrecords/backend/internal/adapters/database"
	"github.com/medrecords/backend/internal/adapters/queue"
	"github.com/medrecords/backend/internal/application/services"
	"github.com/medrecords/backend/internal/infrastructure/clients/postgres"
	"github.com/medrecords/backend/internal/infrastructure/observability"
	"github.com/medrecords/backend/pkg/config"
	"github.com/medrecords/backend/pkg/secrets"
)

func main() {
	var workers int
	var documentID string

	flag.IntVar(&workers, "workers", 3, "Number of concurrent workers")
	flag.StringVar(&documentID, "document", "", "Single document ID to queue")
	flag.Parse()

	// Secrets from Vault are exported before the environment is read
	if _, err := secrets.ApplyVaultSecrets(context.Background(), secrets.VaultConfigFromEnv()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load Vault secrets: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName+"-backfill", cfg.Server.Env)
	logger := observability.GetLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	pgClient, err := postgres.NewClient(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pgClient.Close()

	taskQueue := queue.NewAsynqQueue(queue.RedisOpt(&cfg.Redis), cfg.Queue)
	defer taskQueue.Close()

	svc := services.NewSummaryBackfillService(database.NewDocumentAdapter(pgClient), taskQueue, nil, workers)

	start := time.Now()

	if documentID != "" {
		handle, err := svc.BackfillSingle(ctx, documentID)
		if err != nil {
			logger.Fatal().Err(err).Str("document_id", documentID).Msg("Failed to queue document")
		}
		logger.Info().Str("document_id", documentID).Str("task_id", handle.ID).Msg("Queued summarisation")
		return
	}

	logger.Info().Int("workers", workers).Msg("Starting summary backfill")
	summary, err := svc.BackfillAll(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Backfill failed")
	}

	if summary != nil {
		logger.Info().
			Dur("elapsed", time.Since(start)).
			Int("total_processed", summary.TotalProcessed).
			Int("success", summary.SuccessCount).
			Int("failed", summary.FailureCount).
			Msg("Backfill complete")
		out, _ := json.MarshalIndent(summary, "", "  ")
		fmt.Println(string(out))
	}
	if err != nil {
		os.Exit(1)
	}
}
