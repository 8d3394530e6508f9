package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/medrecords/backend/internal/adapters/storage"
	"github.com/medrecords/backend/internal/application/pipeline"
	"github.com/medrecords/backend/internal/application/pipeline/pipelinetest"
	"github.com/medrecords/backend/internal/application/services"
	"github.com/medrecords/backend/internal/domain/entities"
	"github.com/medrecords/backend/internal/domain/providers"
	apperrors "github.com/medrecords/backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestSummarizeDocument_RetryAfterFailureOverwrites(t *testing.T) {
	backend := pipelinetest.NewFakeBackend().
		Then("", errors.New("upstream timeout")).
		Then(labReply, nil).
		Then("Normal CBC.", nil)
	store := storage.NewMemoryStore("")
	repo := new(MockDocumentRepo)
	bus := newRecordingBus()
	service := services.NewSummarizationService(repo, newLoader(store), newPipeline(backend), bus)

	doc := storeDocument(t, store, "doc-1", "P1", "Lab Report")
	repo.On("GetByID", mock.Anything, "doc-1").Return(doc, nil)
	repo.On("UpdateSummary", mock.Anything, "doc-1", "Normal CBC.").Return(nil).Once()

	err := service.SummarizeDocument(context.Background(), "doc-1")
	require.Error(t, err)
	assert.False(t, apperrors.IsPermanent(err))
	repo.AssertNotCalled(t, "UpdateSummary", mock.Anything, mock.Anything, mock.Anything)

	require.NoError(t, service.SummarizeDocument(context.Background(), "doc-1"))
	repo.AssertExpectations(t)

	events := bus.published(providers.GetPatientDocumentsChannel("P1"))
	require.Len(t, events, 2)
	assert.Equal(t, entities.DocumentEventSummaryFailed, events[0].EventType)
	assert.Equal(t, entities.DocumentEventSummaryCompleted, events[1].EventType)
	assert.Equal(t, "Normal CBC.", events[1].Summary)
}

func TestSummarizeDocument_PersistsSentinel(t *testing.T) {
	backend := pipelinetest.NewFakeBackend(labReply).Then("", errors.New("rate limited"))
	store := storage.NewMemoryStore("")
	repo := new(MockDocumentRepo)
	service := services.NewSummarizationService(repo, newLoader(store), newPipeline(backend), nil)

	doc := storeDocument(t, store, "doc-2", "P1", "Lab Report")
	repo.On("GetByID", mock.Anything, "doc-2").Return(doc, nil)
	repo.On("UpdateSummary", mock.Anything, "doc-2", pipeline.SummaryFailedSentinel).Return(nil)

	require.NoError(t, service.SummarizeDocument(context.Background(), "doc-2"))
	repo.AssertExpectations(t)
}

func TestSummarizeDocument_MissingDocumentIsPermanent(t *testing.T) {
	backend := pipelinetest.NewFakeBackend()
	repo := new(MockDocumentRepo)
	service := services.NewSummarizationService(repo, newLoader(storage.NewMemoryStore("")), newPipeline(backend), nil)
	repo.On("GetByID", mock.Anything, "gone").Return(nil, apperrors.NewNotFoundError("document not found"))

	err := service.SummarizeDocument(context.Background(), "gone")

	assert.True(t, apperrors.IsPermanent(err))
	assert.Equal(t, 0, backend.CallCount())
}

func TestSummarizeDocument_MissingBlobIsPermanent(t *testing.T) {
	backend := pipelinetest.NewFakeBackend()
	repo := new(MockDocumentRepo)
	service := services.NewSummarizationService(repo, newLoader(storage.NewMemoryStore("")), newPipeline(backend), nil)
	repo.On("GetByID", mock.Anything, "doc-3").
		Return(&entities.MedicalDocument{ID: "doc-3", PatientID: "P1", FileLocator: "mem://nothing.txt"}, nil)

	err := service.SummarizeDocument(context.Background(), "doc-3")

	assert.Equal(t, apperrors.ErrorTypeNotFound, apperrors.TypeOf(err))
	assert.ErrorIs(t, err, providers.ErrBlobNotFound)
}
