package services_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/medrecords/backend/internal/application/services"
	"github.com/medrecords/backend/internal/domain/entities"
	"github.com/medrecords/backend/internal/domain/providers"
	apperrors "github.com/medrecords/backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestBackfillAll_PagesAndQueues(t *testing.T) {
	repo := new(MockDocumentRepo)
	queue := new(MockTaskQueue)

	firstPage := make([]string, services.BatchSize)
	for i := range firstPage {
		firstPage[i] = fmt.Sprintf("doc-%03d", i)
	}
	repo.On("ListIDsWithoutSummary", mock.Anything, "", services.BatchSize).Return(firstPage, nil)
	repo.On("ListIDsWithoutSummary", mock.Anything, "doc-099", services.BatchSize).Return([]string{"doc-100", "doc-101"}, nil)

	failing := []byte(`{"document_id":"doc-050"}`)
	queue.On("Submit", mock.Anything, providers.TaskTypeSummarizeDocument, failing).Return(nil, errors.New("queue full"))
	queue.On("Submit", mock.Anything, providers.TaskTypeSummarizeDocument, mock.Anything).
		Return(&providers.TaskHandle{ID: "t", Queue: "documents"}, nil)

	summary, err := services.NewSummaryBackfillService(repo, queue, nil, 4).BackfillAll(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 102, summary.TotalProcessed)
	assert.Equal(t, 101, summary.SuccessCount)
	assert.Equal(t, 1, summary.FailureCount)
	repo.AssertExpectations(t)
}

func TestBackfillAll_ListFailure(t *testing.T) {
	repo := new(MockDocumentRepo)
	repo.On("ListIDsWithoutSummary", mock.Anything, "", services.BatchSize).Return(nil, errors.New("db down"))

	summary, err := services.NewSummaryBackfillService(repo, new(MockTaskQueue), nil, 2).BackfillAll(context.Background())

	assert.Nil(t, summary)
	assert.ErrorContains(t, err, "failed to list documents without summary")
}

func TestBackfillSingle(t *testing.T) {
	repo := new(MockDocumentRepo)
	queue := new(MockTaskQueue)
	repo.On("GetByID", mock.Anything, "doc-1").Return(&entities.MedicalDocument{ID: "doc-1", PatientID: "P1"}, nil)
	queue.On("Submit", mock.Anything, providers.TaskTypeSummarizeDocument, []byte(`{"document_id":"doc-1"}`)).
		Return(&providers.TaskHandle{ID: "t-1", Queue: "documents"}, nil)

	handle, err := services.NewSummaryBackfillService(repo, queue, nil, 1).BackfillSingle(context.Background(), "doc-1")

	require.NoError(t, err)
	assert.Equal(t, "t-1", handle.ID)
	queue.AssertExpectations(t)
}

func TestBackfillSingle_UnknownDocument(t *testing.T) {
	repo := new(MockDocumentRepo)
	queue := new(MockTaskQueue)
	repo.On("GetByID", mock.Anything, "missing").Return(nil, apperrors.NewNotFoundError("document not found"))

	_, err := services.NewSummaryBackfillService(repo, queue, nil, 1).BackfillSingle(context.Background(), "missing")

	assert.Equal(t, apperrors.ErrorTypeNotFound, apperrors.TypeOf(err))
	queue.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything)
}
