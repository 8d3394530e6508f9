package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/medrecords/backend/internal/domain/entities"
	"github.com/medrecords/backend/internal/domain/providers"
	"github.com/medrecords/backend/internal/infrastructure/observability"
	apperrors "github.com/medrecords/backend/pkg/errors"
)

// ErrNoDocuments is returned when a patient report is requested for an empty document set.
var ErrNoDocuments = errors.New("no medical documents")

// Fixed report sections, in rendering order.
const (
	SectionPatientOverview        = "patient_overview"
	SectionCurrentHealthStatus    = "current_health_status"
	SectionMedicalHistoryTimeline = "medical_history_timeline"
	SectionRiskAssessment         = "risk_assessment"
	SectionTreatmentPlan          = "treatment_plan"
	SectionCriticalInformation    = "critical_information"
)

// ReportSectionKeys lists the six report sections in order.
var ReportSectionKeys = []string{
	SectionPatientOverview,
	SectionCurrentHealthStatus,
	SectionMedicalHistoryTimeline,
	SectionRiskAssessment,
	SectionTreatmentPlan,
	SectionCriticalInformation,
}

// MissingSectionText fills sections the backend did not return.
const MissingSectionText = "No information available."

const (
	aggregateMaxTokens   = 4000
	aggregateTemperature = 0.3
	documentSeparator    = "=================================================="
)

const aggregateInstruction = `You are an expert medical document analyzer. Build one longitudinal summary of the patient from all documents in the user message.
Reply with a JSON object that has exactly these keys:
- "patient_overview": demographics, primary conditions, significant history
- "current_health_status": active conditions, current medications, recent results, vital sign trends
- "medical_history_timeline": chronological significant events, procedures, diagnoses and treatment changes
- "risk_assessment": current risks, family history concerns, lifestyle factors, allergies and adverse reactions
- "treatment_plan": current regimens, medication schedule, monitoring, lifestyle recommendations
- "critical_information": urgent concerns, required follow-ups, warning signs, emergency instructions
Each value may be a string, a list of strings, or an object of named subsections. Highlight abnormal findings and include dates where the documents give them. Each document is introduced by its title and date.`

// ReportAggregator merges a patient's documents into one longitudinal report.
type ReportAggregator struct {
	backend providers.GenerativeBackend
	now     func() time.Time
}

// NewReportAggregator creates an aggregator.
func NewReportAggregator(backend providers.GenerativeBackend) *ReportAggregator {
	return &ReportAggregator{backend: backend, now: time.Now}
}

// Aggregate makes one backend call over all documents. Any failure fails the whole report;
// when the backend replied the returned report carries the raw output for diagnostics.
func (a *ReportAggregator) Aggregate(ctx context.Context, patientID string, docs []entities.ReportSource) (*entities.PatientReport, error) {
	if len(docs) == 0 {
		return nil, apperrors.New(apperrors.ErrorTypeNotFound,
			fmt.Sprintf("No medical documents provided for patient ID: %s", patientID), ErrNoDocuments)
	}
	if a.backend == nil {
		return nil, apperrors.NewExternalError("no generative backend configured", nil)
	}

	reply, err := a.backend.Complete(ctx, providers.CompletionRequest{
		SystemInstruction: aggregateInstruction,
		UserContent: fmt.Sprintf(
			"Please analyze these medical documents for patient ID %s and create a comprehensive summary:\n\n%s",
			patientID, combineSources(docs)),
		Structured:      true,
		MaxOutputTokens: aggregateMaxTokens,
		Temperature:     aggregateTemperature,
	})
	if err != nil {
		return nil, apperrors.NewExternalError("patient report request failed", err)
	}

	failed := &entities.PatientReport{PatientID: patientID, SourceDocumentCount: len(docs), RawModelOutput: reply}

	parsed, err := parseObject(reply)
	if err != nil {
		return failed, apperrors.NewMalformedOutputError("patient report reply is not a JSON object", err)
	}

	sections, recognised := normalizeSections(parsed)
	if recognised == 0 {
		observability.LoggerFromContext(ctx).Warn().Str("patient_id", patientID).
			Strs("keys", parsed.Keys()).Msg("Patient report reply has no known sections")
		return failed, apperrors.NewMalformedOutputError("patient report reply has none of the expected sections", nil)
	}

	return &entities.PatientReport{
		PatientID:           patientID,
		GeneratedAt:         a.now().UTC(),
		Sections:            sections,
		SourceDocumentCount: len(docs),
		Success:             true,
	}, nil
}

func combineSources(docs []entities.ReportSource) string {
	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		title := doc.Title
		if strings.TrimSpace(title) == "" {
			title = "Untitled"
		}
		date := doc.Date
		if strings.TrimSpace(date) == "" {
			date = "Unknown"
		}
		parts = append(parts, fmt.Sprintf("Document: %s\nDate: %s\nContent:\n%s\n%s", title, date, doc.Text, documentSeparator))
	}
	return strings.Join(parts, "\n\n")
}

// normalizeSections maps the reply onto the six fixed sections. Keys are matched
// loosely ("1. Patient Overview", "PatientOverview"), unknown keys are dropped and
// absent sections are filled with MissingSectionText.
func normalizeSections(parsed entities.Value) ([]entities.ReportSection, int) {
	found := matchSections(parsed)
	if len(found) == 0 && len(parsed.Mapping) == 1 && parsed.Mapping[0].Value.IsMapping() {
		found = matchSections(parsed.Mapping[0].Value)
	}

	sections := make([]entities.ReportSection, 0, len(ReportSectionKeys))
	for _, key := range ReportSectionKeys {
		content, ok := found[key]
		if !ok || content.Empty() {
			content = entities.Scalar(MissingSectionText)
		}
		sections = append(sections, entities.ReportSection{Key: key, Title: TitleFromKey(key), Content: content})
	}
	return sections, len(found)
}

func matchSections(v entities.Value) map[string]entities.Value {
	found := make(map[string]entities.Value)
	for _, e := range v.Mapping {
		key, ok := canonicalSectionKey(e.Key)
		if !ok {
			continue
		}
		if _, dup := found[key]; !dup {
			found[key] = e.Value
		}
	}
	return found
}

func canonicalSectionKey(raw string) (string, bool) {
	norm := normalizeKey(raw)
	compact := strings.ReplaceAll(norm, "_", "")
	for _, key := range ReportSectionKeys {
		if norm == key || compact == strings.ReplaceAll(key, "_", "") {
			return key, true
		}
	}
	return "", false
}

func normalizeKey(raw string) string {
	s := strings.TrimLeftFunc(raw, func(r rune) bool {
		return unicode.IsDigit(r) || unicode.IsSpace(r) || r == '.' || r == ')'
	})
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
