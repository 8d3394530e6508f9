package providers

import "context"

// TaskTypeSummarizeDocument summarizes a single document in the background.
const TaskTypeSummarizeDocument = "document:summarize"

// TaskHandle identifies a submitted task.
type TaskHandle struct {
	ID    string `json:"task_id"`
	Queue string `json:"queue"`
}

// TaskQueue runs units of work asynchronously with at-least-once delivery.
// Handlers must be idempotent.
type TaskQueue interface {
	Submit(ctx context.Context, taskType string, payload []byte) (*TaskHandle, error)
}

// SummarizeDocumentPayload is the argument of a TaskTypeSummarizeDocument task.
type SummarizeDocumentPayload struct {
	DocumentID string `json:"document_id"`
}
