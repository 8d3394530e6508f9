package services

import (
	"context"
	"slices"
	"time"

	"github.com/medrecords/backend/internal/application/pipeline"
	"github.com/medrecords/backend/internal/domain/entities"
	"github.com/medrecords/backend/internal/domain/repositories"
	"github.com/medrecords/backend/internal/infrastructure/observability"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const reportLoadConcurrency = 4

// PatientReportService builds the longitudinal summary of all of a patient's documents.
type PatientReportService struct {
	repo     repositories.DocumentRepository
	loader   *DocumentTextLoader
	pipeline *pipeline.Pipeline
	audit    auditTrail
	timeout  time.Duration
}

// NewPatientReportService creates a new patient report service
func NewPatientReportService(
	repo repositories.DocumentRepository,
	loader *DocumentTextLoader,
	p *pipeline.Pipeline,
	auditRepo repositories.AuditLogRepository,
	timeout time.Duration,
) *PatientReportService {
	return &PatientReportService{
		repo:     repo,
		loader:   loader,
		pipeline: p,
		audit:    auditTrail{repo: auditRepo},
		timeout:  timeout,
	}
}

// GenerateReport aggregates the patient's documents as of now and renders the PDF.
// Any document whose text cannot be loaded fails the whole report.
func (s *PatientReportService) GenerateReport(ctx context.Context, patientID, userID string) (*entities.PatientReport, *entities.RenderedReport, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	logger := observability.LoggerFromContext(ctx).With().Str("patient_id", patientID).Logger()

	sources, err := s.loadSources(ctx, patientID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load report sources")
		return nil, nil, err
	}

	report, rendered, err := s.pipeline.BuildReport(ctx, patientID, sources)
	if err != nil {
		logReportFailure(&logger, report, len(sources), err)
		return report, nil, err
	}

	s.audit.record(ctx, userID, entities.AuditActionReportGenerated, map[string]any{
		"patient_id":     patientID,
		"document_count": len(sources),
		"format":         "pdf",
	})
	return report, rendered, nil
}

// GenerateOverview aggregates the patient's documents and writes a narrative of the
// result, without rendering. Both backend calls share the report timeout.
func (s *PatientReportService) GenerateOverview(ctx context.Context, patientID, userID string) (*entities.PatientReport, string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	logger := observability.LoggerFromContext(ctx).With().Str("patient_id", patientID).Logger()

	sources, err := s.loadSources(ctx, patientID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load report sources")
		return nil, "", err
	}

	report, err := s.pipeline.Aggregate(ctx, patientID, sources)
	if err != nil {
		logReportFailure(&logger, report, len(sources), err)
		return report, "", err
	}
	overview := s.pipeline.Summarizer.SummarizeReport(ctx, report)

	s.audit.record(ctx, userID, entities.AuditActionReportGenerated, map[string]any{
		"patient_id":     patientID,
		"document_count": len(sources),
		"format":         "json",
	})
	return report, overview, nil
}

func (s *PatientReportService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(ctx, s.timeout)
	}
	return context.WithCancel(ctx)
}

// loadSources reads the patient's documents in ascending upload order.
func (s *PatientReportService) loadSources(ctx context.Context, patientID string) ([]entities.ReportSource, error) {
	docs, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(docs, func(a, b *entities.MedicalDocument) int {
		return a.UploadedAt.Compare(b.UploadedAt)
	})

	sources := make([]entities.ReportSource, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reportLoadConcurrency)
	for i, doc := range docs {
		g.Go(func() error {
			text, err := s.loader.Load(gctx, doc)
			if err != nil {
				return err
			}
			sources[i] = entities.ReportSource{
				Title: doc.Title,
				Date:  doc.UploadedAt.Format("2006-01-02"),
				Text:  text,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sources, nil
}

func logReportFailure(logger *zerolog.Logger, report *entities.PatientReport, documentCount int, err error) {
	event := logger.Error().Err(err).Int("document_count", documentCount)
	if report != nil {
		event = event.Str("raw_model_output", report.RawModelOutput)
	}
	event.Msg("patient report failed")
}
