package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/medrecords/backend/internal/application/pipeline"
	"github.com/medrecords/backend/internal/evaluation"
	"github.com/medrecords/backend/internal/infrastructure/clients/openai"
	"github.com/medrecords/backend/internal/infrastructure/observability"
	"github.com/medrecords/backend/pkg/config"
	"github.com/medrecords/backend/pkg/secrets"
)

func main() {
	var goldenPath string
	var minAccuracy, minTypeAccuracy float64

	flag.StringVar(&goldenPath, "golden", "config/golden_documents.json", "Path to the golden document set")
	flag.Float64Var(&minAccuracy, "min-accuracy", 0, "Fail when overall accuracy is below this value")
	flag.Float64Var(&minTypeAccuracy, "min-type-accuracy", 0, "Fail when any document type's accuracy is below this value")
	flag.Parse()

	if _, err := secrets.ApplyVaultSecrets(context.Background(), secrets.VaultConfigFromEnv()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load Vault secrets: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName+"-evaluate", cfg.Server.Env)
	logger := observability.GetLogger()

	docs, err := evaluation.LoadGoldenDocuments(goldenPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to load golden documents")
	}
	if err := evaluation.ValidateGoldenDocuments(docs); err != nil {
		logger.Fatal().Err(err).Msg("Invalid golden documents")
	}

	backend, err := openai.NewClient(&cfg.OpenAI)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create generative backend")
	}
	classifier := pipeline.NewDocumentClassifier(backend, cfg.Pipeline.ClassificationPrefixChars)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	summary, err := evaluation.NewRunner(classifier).Run(ctx, docs)
	if err != nil {
		logger.Fatal().Err(err).Msg("Evaluation failed")
	}

	out, _ := json.MarshalIndent(summary, "", "  ")
	fmt.Println(string(out))

	guardrails := evaluation.NewGuardrails(evaluation.GuardrailConfig{
		MinAccuracy:     minAccuracy,
		MinTypeAccuracy: minTypeAccuracy,
	})
	if violations := guardrails.Violations(summary); len(violations) > 0 {
		for _, v := range violations {
			logger.Error().Str("violation", v).Msg("Classifier below threshold")
		}
		os.Exit(2)
	}
}
