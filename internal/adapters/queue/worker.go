package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/medrecords/backend/internal/domain/providers"
	"github.com/medrecords/backend/internal/infrastructure/observability"
	"github.com/medrecords/backend/pkg/config"
	apperrors "github.com/medrecords/backend/pkg/errors"
	"github.com/rs/zerolog"
)

// DocumentSummarizer runs single-document summarisation.
type DocumentSummarizer interface {
	SummarizeDocument(ctx context.Context, documentID string) error
}

// NewSummarizeHandler returns the asynq handler for document:summarize tasks.
// Input errors are never retried; everything else goes back to the queue.
func NewSummarizeHandler(summarizer DocumentSummarizer) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload providers.SummarizeDocumentPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil || payload.DocumentID == "" {
			return fmt.Errorf("invalid %s payload: %w", task.Type(), asynq.SkipRetry)
		}

		logger := observability.LoggerFromContext(ctx).With().
			Str("document_id", payload.DocumentID).
			Str("task_type", task.Type()).
			Logger()
		if id, ok := asynq.GetTaskID(ctx); ok {
			logger = logger.With().Str("task_id", id).Logger()
		}

		if err := summarizer.SummarizeDocument(ctx, payload.DocumentID); err != nil {
			if apperrors.IsPermanent(err) {
				logger.Warn().Err(err).Msg("summarisation failed permanently")
				return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
			}
			retry, _ := asynq.GetRetryCount(ctx)
			logger.Warn().Err(err).Int("retry", retry).Msg("summarisation failed, will retry")
			return err
		}

		logger.Info().Msg("summarisation completed")
		return nil
	}
}

// Worker consumes the document queue.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// NewWorker builds an asynq server bound to cfg.Name with the summarise handler registered.
func NewWorker(redisOpt asynq.RedisConnOpt, cfg config.QueueConfig, summarizer DocumentSummarizer) *Worker {
	logger := observability.GetLogger()
	server := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      map[string]int{cfg.Name: 1},
		Logger:      &zerologAdapter{logger: logger.With().Str("component", "asynq").Logger()},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			retry, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			if errors.Is(err, asynq.SkipRetry) || retry >= maxRetry {
				logger.Error().Err(err).
					Str("task_type", task.Type()).
					Int("retry", retry).
					Msg("task dropped")
			}
		}),
	})

	mux := asynq.NewServeMux()
	mux.Handle(providers.TaskTypeSummarizeDocument, NewSummarizeHandler(summarizer))

	return &Worker{server: server, mux: mux}
}

// Start begins processing in the background.
func (w *Worker) Start() error {
	return w.server.Start(w.mux)
}

// Shutdown waits for in-flight tasks then stops the server.
func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

// zerologAdapter satisfies asynq.Logger.
type zerologAdapter struct {
	logger zerolog.Logger
}

func (l *zerologAdapter) Debug(args ...interface{}) { l.logger.Debug().Msg(fmt.Sprint(args...)) }
func (l *zerologAdapter) Info(args ...interface{})  { l.logger.Info().Msg(fmt.Sprint(args...)) }
func (l *zerologAdapter) Warn(args ...interface{})  { l.logger.Warn().Msg(fmt.Sprint(args...)) }
func (l *zerologAdapter) Error(args ...interface{}) { l.logger.Error().Msg(fmt.Sprint(args...)) }
func (l *zerologAdapter) Fatal(args ...interface{}) { l.logger.Fatal().Msg(fmt.Sprint(args...)) }
