package main

import (
	"context"
	"fmt"
	"os"

	"github.com/medrecords/backend/internal/adapters/database"
	"github.com/medrecords/backend/internal/adapters/queue"
	"github.com/medrecords/backend/internal/adapters/storage"
	"github.com/medrecords/backend/internal/application/services"
	"github.com/medrecords/backend/internal/evaluation"
	"github.com/medrecords/backend/internal/infrastructure/clients/postgres"
	"github.com/medrecords/backend/internal/infrastructure/observability"
	"github.com/medrecords/backend/pkg/config"
	"github.com/medrecords/backend/pkg/secrets"
)

// Seeds demo patients with the golden document texts so the report and
// summary flows have data to work on.
func main() {
	if _, err := secrets.ApplyVaultSecrets(context.Background(), secrets.VaultConfigFromEnv()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load Vault secrets: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger("seed", "development")
	logger := observability.GetLogger()
	ctx := context.Background()

	pgClient, err := postgres.NewClient(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to connect to DB")
	}
	defer pgClient.Close()

	if os.Getenv("RESET_DB") == "true" {
		logger.Info().Msg("RESET_DB=true detected, truncating tables before seeding")
		if _, err := pgClient.DB().ExecContext(ctx, `TRUNCATE TABLE medical_documents, audit_logs`); err != nil {
			logger.Fatal().Err(err).Msg("Failed to reset tables")
		}
	}

	blobs, err := storage.New(ctx, &cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize blob storage")
	}

	taskQueue := queue.NewAsynqQueue(queue.RedisOpt(&cfg.Redis), cfg.Queue)
	defer taskQueue.Close()

	documentService := services.NewDocumentService(
		database.NewDocumentAdapter(pgClient),
		blobs,
		taskQueue,
		database.NewAuditLogAdapter(pgClient),
		cfg.Pipeline,
		cfg.Storage.PresignTTL,
		nil,
	)

	goldenPath := "config/golden_documents.json"
	docs, err := evaluation.LoadGoldenDocuments(goldenPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load golden documents")
	}

	// Spread the documents over two patients so each gets a mixed history
	patients := []string{"demo-patient-1", "demo-patient-2"}
	for i, d := range docs {
		patientID := patients[i%len(patients)]
		doc, handle, err := documentService.Upload(ctx, services.UploadInput{
			PatientID:   patientID,
			Title:       fmt.Sprintf("%s (%s)", d.ID, d.ExpectedType),
			FileName:    d.ID + ".txt",
			ContentType: "text/plain",
			Data:        []byte(d.Text),
			UserID:      "seed",
		})
		if err != nil {
			logger.Error().Err(err).Str("golden_id", d.ID).Msg("Failed to seed document")
			continue
		}
		event := logger.Info().Str("document_id", doc.ID).Str("patient_id", patientID)
		if handle != nil {
			event = event.Str("task_id", handle.ID)
		}
		event.Msg("Seeded document")
	}

	logger.Info().Int("documents", len(docs)).Msg("Seeding complete")
}
