// Package pipeline implements the document intelligence pipeline: text extraction,
// classification, structured extraction, summarization, patient report aggregation
// and PDF rendering over a pluggable generative backend.
package pipeline

import (
	"context"
	"time"

	"github.com/medrecords/backend/internal/domain/entities"
	"github.com/medrecords/backend/internal/domain/providers"
	"github.com/medrecords/backend/internal/infrastructure/observability"
	"github.com/medrecords/backend/pkg/config"
	"go.opentelemetry.io/otel/attribute"
)

// Pipeline bundles the pipeline stages around one generative backend.
type Pipeline struct {
	Text       *TextExtractor
	Classifier *DocumentClassifier
	Registry   *SchemaRegistry
	Extractor  *StructuredExtractor
	Summarizer *Summarizer
	Aggregator *ReportAggregator
	Renderer   *ReportRenderer

	metrics *observability.Metrics
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMetrics records stage durations and failures.
func WithMetrics(m *observability.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New wires every stage to backend.
func New(backend providers.GenerativeBackend, cfg config.PipelineConfig, opts ...Option) *Pipeline {
	registry := NewSchemaRegistry()
	p := &Pipeline{
		Text:       NewTextExtractor(),
		Classifier: NewDocumentClassifier(backend, cfg.ClassificationPrefixChars),
		Registry:   registry,
		Extractor:  NewStructuredExtractor(backend, registry),
		Summarizer: NewSummarizer(backend, cfg.SummaryInputChars),
		Aggregator: NewReportAggregator(backend),
		Renderer:   NewReportRenderer(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Analysis is the outcome of running a single document through the pipeline.
// Summary is empty when extraction failed.
type Analysis struct {
	DocumentType entities.DocumentType
	Extraction   *entities.StructuredExtraction
	Summary      string
}

// Analyze classifies text (unless override is a valid type), extracts structured
// data and, when extraction succeeded, summarizes it.
func (p *Pipeline) Analyze(ctx context.Context, text string, override entities.DocumentType) *Analysis {
	ctx, span := observability.StartSpan(ctx, "pipeline.Analyze")
	defer span.End()

	docType := override
	if !docType.IsValid() {
		start := time.Now()
		docType = p.Classifier.Classify(ctx, text)
		observability.RecordStage(ctx, p.metrics, "classify", time.Since(start), nil)
	}
	span.SetAttributes(attribute.String("document.type", string(docType)))

	start := time.Now()
	extraction := p.Extractor.Extract(ctx, text, docType)
	observability.RecordStage(ctx, p.metrics, "extract", time.Since(start), extraction.Cause)

	analysis := &Analysis{DocumentType: extraction.DocumentType, Extraction: extraction}
	if !extraction.Success {
		observability.RecordError(span, extraction.Cause)
		return analysis
	}

	start = time.Now()
	analysis.Summary = p.Summarizer.Summarize(ctx, extraction.Fields, extraction.DocumentType)
	var summaryErr error
	if analysis.Summary == SummaryFailedSentinel {
		summaryErr = errSummaryFailed
	}
	observability.RecordStage(ctx, p.metrics, "summarize", time.Since(start), summaryErr)

	return analysis
}

// Aggregate merges the sources into a patient report without rendering it.
func (p *Pipeline) Aggregate(ctx context.Context, patientID string, sources []entities.ReportSource) (*entities.PatientReport, error) {
	ctx, span := observability.StartSpan(ctx, "pipeline.Aggregate")
	defer span.End()
	span.SetAttributes(attribute.String("patient.id", patientID), attribute.Int("report.source_count", len(sources)))

	start := time.Now()
	report, err := p.Aggregator.Aggregate(ctx, patientID, sources)
	observability.RecordStage(ctx, p.metrics, "aggregate", time.Since(start), err)
	if err != nil {
		observability.RecordError(span, err)
	}
	return report, err
}

// BuildReport aggregates the sources into a patient report and renders it.
func (p *Pipeline) BuildReport(ctx context.Context, patientID string, sources []entities.ReportSource) (*entities.PatientReport, *entities.RenderedReport, error) {
	report, err := p.Aggregate(ctx, patientID, sources)
	if err != nil {
		return report, nil, err
	}

	rendered, err := p.render(ctx, report, entities.ReportMetadata{
		PatientID:     patientID,
		GeneratedAt:   report.GeneratedAt,
		DocumentCount: report.SourceDocumentCount,
	})
	if err != nil {
		return report, nil, err
	}
	return report, rendered, nil
}

// RenderExtraction renders one document's structured extraction, one page per top-level field.
func (p *Pipeline) RenderExtraction(ctx context.Context, doc *entities.MedicalDocument, extraction *entities.StructuredExtraction) (*entities.RenderedReport, error) {
	report := reportFromExtraction(doc.PatientID, extraction, time.Now())
	rendered, err := p.render(ctx, report, entities.ReportMetadata{
		PatientID:     doc.PatientID,
		GeneratedAt:   report.GeneratedAt,
		DocumentCount: 1,
	})
	if err != nil {
		return nil, err
	}
	rendered.FileName = DocumentReportFileName(doc.ID)
	return rendered, nil
}

func (p *Pipeline) render(ctx context.Context, report *entities.PatientReport, meta entities.ReportMetadata) (*entities.RenderedReport, error) {
	start := time.Now()
	rendered, err := p.Renderer.Render(report, meta)
	observability.RecordStage(ctx, p.metrics, "render", time.Since(start), err)
	return rendered, err
}
