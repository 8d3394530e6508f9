package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/medrecords/backend/internal/domain/providers"
	"github.com/medrecords/backend/pkg/config"
)

// RedisOpt builds the asynq connection options from the shared Redis settings.
func RedisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

var _ providers.TaskQueue = (*AsynqQueue)(nil)

// AsynqQueue implements providers.TaskQueue on top of an asynq client.
type AsynqQueue struct {
	client   *asynq.Client
	queue    string
	maxRetry int
	timeout  time.Duration
}

// NewAsynqQueue creates a task queue that enqueues onto cfg.Name.
func NewAsynqQueue(redisOpt asynq.RedisConnOpt, cfg config.QueueConfig) *AsynqQueue {
	return &AsynqQueue{
		client:   asynq.NewClient(redisOpt),
		queue:    cfg.Name,
		maxRetry: cfg.MaxRetry,
		timeout:  cfg.TaskTimeout,
	}
}

// Submit enqueues a unit of work and returns as soon as it is persisted.
func (q *AsynqQueue) Submit(ctx context.Context, taskType string, payload []byte) (*providers.TaskHandle, error) {
	opts := []asynq.Option{
		asynq.Queue(q.queue),
		asynq.MaxRetry(q.maxRetry),
	}
	if q.timeout > 0 {
		opts = append(opts, asynq.Timeout(q.timeout))
	}

	info, err := q.client.EnqueueContext(ctx, asynq.NewTask(taskType, payload), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue %s: %w", taskType, err)
	}
	return &providers.TaskHandle{ID: info.ID, Queue: info.Queue}, nil
}

// Close releases the underlying Redis connection.
func (q *AsynqQueue) Close() error {
	return q.client.Close()
}
