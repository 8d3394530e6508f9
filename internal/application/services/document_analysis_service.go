package services

import (
	"context"
	"time"

	"github.com/medrecords/backend/internal/application/pipeline"
	"github.com/medrecords/backend/internal/domain/entities"
	"github.com/medrecords/backend/internal/domain/providers"
	"github.com/medrecords/backend/internal/domain/repositories"
	"github.com/medrecords/backend/internal/infrastructure/observability"
)

// AnalysisResult is the interactive analysis outcome returned to clients.
type AnalysisResult struct {
	DocumentID     string                `json:"document_id"`
	PatientID      string                `json:"patient_id"`
	DocumentType   entities.DocumentType `json:"document_type"`
	StructuredData entities.Value        `json:"structured_data"`
	MissingFields  []string              `json:"missing_fields"`
	Summary        string                `json:"summary,omitempty"`
	Success        bool                  `json:"success"`
	Error          string                `json:"error,omitempty"`
}

// DocumentAnalysisService runs a document through the pipeline while the caller waits.
type DocumentAnalysisService struct {
	repo     repositories.DocumentRepository
	loader   *DocumentTextLoader
	pipeline *pipeline.Pipeline
	events   providers.EventBus
	audit    auditTrail
	timeout  time.Duration
}

// NewDocumentAnalysisService creates a new analysis service. timeout bounds the whole run.
func NewDocumentAnalysisService(
	repo repositories.DocumentRepository,
	loader *DocumentTextLoader,
	p *pipeline.Pipeline,
	events providers.EventBus,
	auditRepo repositories.AuditLogRepository,
	timeout time.Duration,
) *DocumentAnalysisService {
	return &DocumentAnalysisService{
		repo:     repo,
		loader:   loader,
		pipeline: p,
		events:   events,
		audit:    auditTrail{repo: auditRepo},
		timeout:  timeout,
	}
}

// Analyze classifies (unless override is a valid type), extracts and summarizes the document.
// Input errors return a nil result. A failed extraction returns the failure result and its cause.
func (s *DocumentAnalysisService) Analyze(ctx context.Context, documentID string, override entities.DocumentType, userID string) (*AnalysisResult, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	doc, err := s.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	logger := observability.DocumentLogger(ctx, doc.ID, doc.PatientID)

	text, err := s.loader.Load(ctx, doc)
	if err != nil {
		logger.Warn().Err(err).Msg("cannot load document text")
		return nil, err
	}

	analysis := s.pipeline.Analyze(ctx, text, override)
	extraction := analysis.Extraction
	result := &AnalysisResult{
		DocumentID:     doc.ID,
		PatientID:      doc.PatientID,
		DocumentType:   analysis.DocumentType,
		StructuredData: extraction.Fields,
		MissingFields:  extraction.MissingFields,
		Success:        extraction.Success,
		Error:          extraction.Error,
	}
	if result.MissingFields == nil {
		result.MissingFields = []string{}
	}

	if !extraction.Success {
		logger.Error().Err(extraction.Cause).
			Str("document_type", string(analysis.DocumentType)).
			Str("raw_model_output", extraction.RawModelOutput).
			Msg("document analysis failed")
		s.audit.record(ctx, userID, entities.AuditActionDocumentAnalysisFailed, map[string]any{
			"document_id":   doc.ID,
			"patient_id":    doc.PatientID,
			"document_type": analysis.DocumentType,
			"error":         extraction.Error,
		})
		return result, extraction.Cause
	}

	result.Summary = analysis.Summary
	if err := s.repo.UpdateSummary(ctx, doc.ID, analysis.Summary); err != nil {
		return nil, err
	}

	s.audit.record(ctx, userID, entities.AuditActionDocumentAnalyzed, map[string]any{
		"document_id":   doc.ID,
		"patient_id":    doc.PatientID,
		"document_type": analysis.DocumentType,
	})

	event := entities.NewDocumentEvent(doc, entities.DocumentEventAnalysisCompleted)
	event.DocumentType = analysis.DocumentType
	event.Summary = analysis.Summary
	if err := providers.PublishDocumentEvent(ctx, s.events, event); err != nil {
		logger.Warn().Err(err).Msg("failed to publish analysis event")
	}

	return result, nil
}

// RenderAnalysis lays an analysis result out as a downloadable PDF.
func (s *DocumentAnalysisService) RenderAnalysis(ctx context.Context, result *AnalysisResult) (*entities.RenderedReport, error) {
	doc := &entities.MedicalDocument{ID: result.DocumentID, PatientID: result.PatientID}
	extraction := &entities.StructuredExtraction{
		DocumentType: result.DocumentType,
		Fields:       result.StructuredData,
		Success:      result.Success,
		Error:        result.Error,
	}
	return s.pipeline.RenderExtraction(ctx, doc, extraction)
}
