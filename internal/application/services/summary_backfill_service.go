package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/medrecords/backend/internal/domain/providers"
	"github.com/medrecords/backend/internal/domain/repositories"
	"github.com/medrecords/backend/internal/infrastructure/observability"
)

const BatchSize = 100

type BackfillSummary struct {
	TotalProcessed int `json:"total_processed"`
	SuccessCount   int `json:"success_count"`
	FailureCount   int `json:"failure_count"`
}

// SummaryBackfillService queues summarisation for every document that has none.
type SummaryBackfillService struct {
	repo        repositories.DocumentRepository
	queue       providers.TaskQueue
	metrics     *observability.Metrics
	workerCount int
	batchSize   int
}

func NewSummaryBackfillService(
	repo repositories.DocumentRepository,
	queue providers.TaskQueue,
	metrics *observability.Metrics,
	workers int,
) *SummaryBackfillService {
	if workers <= 0 {
		workers = 1
	}
	return &SummaryBackfillService{
		repo:        repo,
		queue:       queue,
		metrics:     metrics,
		workerCount: workers,
		batchSize:   BatchSize,
	}
}

func (s *SummaryBackfillService) BackfillAll(ctx context.Context) (*BackfillSummary, error) {
	logger := observability.LoggerFromContext(ctx)
	var processed, success, failure int64

	idChan := make(chan string, s.batchSize)
	var wg sync.WaitGroup

	for i := 0; i < s.workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range idChan {
				_, err := submitSummaryTask(ctx, s.queue, s.metrics, id)
				atomic.AddInt64(&processed, 1)
				if err != nil {
					atomic.AddInt64(&failure, 1)
					logger.Error().Err(err).Str("document_id", id).Msg("failed to queue summarisation")
				} else {
					atomic.AddInt64(&success, 1)
				}
			}
		}()
	}

	// Keyset paging: queued documents keep their empty summary until a worker runs.
	afterID := ""
	for {
		ids, err := s.repo.ListIDsWithoutSummary(ctx, afterID, s.batchSize)
		if err != nil {
			close(idChan)
			wg.Wait()
			return nil, fmt.Errorf("failed to list documents without summary: %w", err)
		}
		if len(ids) == 0 {
			break
		}

		for _, id := range ids {
			select {
			case idChan <- id:
			case <-ctx.Done():
				close(idChan)
				wg.Wait()
				return nil, ctx.Err()
			}
		}

		if len(ids) < s.batchSize {
			break
		}
		afterID = ids[len(ids)-1]
	}

	close(idChan)
	wg.Wait()

	return &BackfillSummary{
		TotalProcessed: int(processed),
		SuccessCount:   int(success),
		FailureCount:   int(failure),
	}, nil
}

// BackfillSingle queues summarisation for one document, whether or not it already has a summary.
func (s *SummaryBackfillService) BackfillSingle(ctx context.Context, documentID string) (*providers.TaskHandle, error) {
	doc, err := s.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return submitSummaryTask(ctx, s.queue, s.metrics, doc.ID)
}
