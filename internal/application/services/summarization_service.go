package services

import (
	"context"

	"github.com/medrecords/backend/internal/application/pipeline"
	"github.com/medrecords/backend/internal/domain/entities"
	"github.com/medrecords/backend/internal/domain/providers"
	"github.com/medrecords/backend/internal/domain/repositories"
	"github.com/medrecords/backend/internal/infrastructure/observability"
)

// SummarizationService is the background unit of work behind document:summarize tasks.
// Running it twice for a document overwrites the earlier summary.
type SummarizationService struct {
	repo     repositories.DocumentRepository
	loader   *DocumentTextLoader
	pipeline *pipeline.Pipeline
	events   providers.EventBus
}

// NewSummarizationService creates a new summarization service
func NewSummarizationService(
	repo repositories.DocumentRepository,
	loader *DocumentTextLoader,
	p *pipeline.Pipeline,
	events providers.EventBus,
) *SummarizationService {
	return &SummarizationService{repo: repo, loader: loader, pipeline: p, events: events}
}

// SummarizeDocument classifies, extracts and summarizes one document and stores the summary.
// On extraction failure the stored summary is left as it was and the cause is returned.
func (s *SummarizationService) SummarizeDocument(ctx context.Context, documentID string) error {
	ctx, span := observability.StartSpan(ctx, "SummarizationService.SummarizeDocument")
	defer span.End()

	doc, err := s.repo.GetByID(ctx, documentID)
	if err != nil {
		observability.RecordError(span, err)
		return err
	}
	logger := observability.DocumentLogger(ctx, doc.ID, doc.PatientID)

	text, err := s.loader.Load(ctx, doc)
	if err != nil {
		logger.Error().Err(err).Msg("cannot load document text")
		observability.RecordError(span, err)
		return err
	}

	analysis := s.pipeline.Analyze(ctx, text, "")
	if !analysis.Extraction.Success {
		logger.Error().Err(analysis.Extraction.Cause).
			Str("document_type", string(analysis.DocumentType)).
			Str("raw_model_output", analysis.Extraction.RawModelOutput).
			Msg("background summarisation failed")

		event := entities.NewDocumentEvent(doc, entities.DocumentEventSummaryFailed)
		event.DocumentType = analysis.DocumentType
		event.Error = analysis.Extraction.Error
		if err := providers.PublishDocumentEvent(ctx, s.events, event); err != nil {
			logger.Warn().Err(err).Msg("failed to publish summary event")
		}
		observability.RecordError(span, analysis.Extraction.Cause)
		return analysis.Extraction.Cause
	}

	if err := s.repo.UpdateSummary(ctx, doc.ID, analysis.Summary); err != nil {
		observability.RecordError(span, err)
		return err
	}

	event := entities.NewDocumentEvent(doc, entities.DocumentEventSummaryCompleted)
	event.DocumentType = analysis.DocumentType
	event.Summary = analysis.Summary
	if err := providers.PublishDocumentEvent(ctx, s.events, event); err != nil {
		logger.Warn().Err(err).Msg("failed to publish summary event")
	}

	logger.Info().Str("document_type", string(analysis.DocumentType)).Msg("document summarised")
	return nil
}
