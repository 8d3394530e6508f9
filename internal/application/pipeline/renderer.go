package pipeline

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/medrecords/backend/internal/domain/entities"
	apperrors "github.com/medrecords/backend/pkg/errors"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	reportTitle       = "Comprehensive Medical Summary"
	reportContentType = "application/pdf"
	unknownValueText  = "Unknown"
	indentStep        = 6.0
	maxIndentDepth    = 4
)

// ReportRenderer lays a report out as a PDF with one page per section.
type ReportRenderer struct{}

// NewReportRenderer creates a renderer.
func NewReportRenderer() *ReportRenderer {
	return &ReportRenderer{}
}

// ReportFileName is the download name of a patient's rendered report.
func ReportFileName(patientID string) string {
	return fmt.Sprintf("patient_%s_medical_summary.pdf", patientID)
}

// DocumentReportFileName is the download name of a single document's rendered analysis.
func DocumentReportFileName(documentID string) string {
	return fmt.Sprintf("document_%s_analysis.pdf", documentID)
}

// TitleFromKey turns "medical_history_timeline" into "Medical History Timeline".
func TitleFromKey(key string) string {
	words := strings.Fields(strings.NewReplacer("_", " ", "-", " ").Replace(key))
	return cases.Title(language.English).String(strings.Join(words, " "))
}

// Render accepts any section content shape. Unexpected scalar types are printed with fmt.
func (r *ReportRenderer) Render(report *entities.PatientReport, meta entities.ReportMetadata) (*entities.RenderedReport, error) {
	if report == nil {
		return nil, apperrors.NewValidationError("report is required")
	}
	generatedAt := meta.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now()
	}

	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.SetTitle(reportTitle, false)
	pdf.SetSubject(fmt.Sprintf("patient_id=%s document_count=%d", meta.PatientID, meta.DocumentCount), false)
	pdf.SetKeywords(fmt.Sprintf("document_count=%d", meta.DocumentCount), false)
	pdf.SetCreator("medrecords", false)
	pdf.SetCreationDate(generatedAt)

	w := &pdfWriter{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}

	pdf.AddPage()
	w.heading(reportTitle, 18)
	w.subheading(fmt.Sprintf("Patient ID: %s", meta.PatientID), 0)
	w.paragraph(fmt.Sprintf("Generated: %s", generatedAt.Format("2006-01-02 15:04")), 0)
	w.paragraph(fmt.Sprintf("Based on %d medical documents", meta.DocumentCount), 0)

	for _, section := range report.Sections {
		pdf.AddPage()
		title := section.Title
		if title == "" {
			title = TitleFromKey(section.Key)
		}
		w.heading(title, 14)
		w.value(section.Content, 0)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, apperrors.NewInternalError("failed to render report", err)
	}

	return &entities.RenderedReport{
		Data:          buf.Bytes(),
		ContentType:   reportContentType,
		FileName:      ReportFileName(meta.PatientID),
		DocumentCount: meta.DocumentCount,
	}, nil
}

// reportFromExtraction presents a single structured extraction as a report whose
// sections are the extraction's top-level fields.
func reportFromExtraction(patientID string, extraction *entities.StructuredExtraction, generatedAt time.Time) *entities.PatientReport {
	report := &entities.PatientReport{
		PatientID:           patientID,
		GeneratedAt:         generatedAt,
		SourceDocumentCount: 1,
		Success:             extraction.Success,
	}
	if !extraction.Success {
		report.Sections = []entities.ReportSection{{
			Key:     "extraction_error",
			Title:   "Extraction Error",
			Content: entities.Scalar(extraction.Error),
		}}
		return report
	}
	for _, e := range extraction.Fields.Mapping {
		report.Sections = append(report.Sections, entities.ReportSection{
			Key:     e.Key,
			Title:   TitleFromKey(e.Key),
			Content: e.Value,
		})
	}
	return report
}

type pdfWriter struct {
	pdf *fpdf.Fpdf
	tr  func(string) string
}

func (w *pdfWriter) heading(text string, size float64) {
	w.pdf.SetFont("Helvetica", "B", size)
	w.pdf.SetTextColor(0x2c, 0x3e, 0x50)
	w.pdf.MultiCell(0, size*0.6, w.tr(text), "", "L", false)
	w.pdf.Ln(4)
}

func (w *pdfWriter) subheading(text string, depth int) {
	w.indent(depth)
	w.pdf.SetFont("Helvetica", "B", 12)
	w.pdf.SetTextColor(0x34, 0x49, 0x5e)
	w.pdf.MultiCell(0, 7, w.tr(text), "", "L", false)
	w.pdf.Ln(1)
}

func (w *pdfWriter) paragraph(text string, depth int) {
	w.indent(depth)
	w.pdf.SetFont("Helvetica", "", 10)
	w.pdf.SetTextColor(0, 0, 0)
	w.pdf.MultiCell(0, 5, w.tr(text), "", "L", false)
	w.pdf.Ln(1)
}

func (w *pdfWriter) indent(depth int) {
	if depth > maxIndentDepth {
		depth = maxIndentDepth
	}
	left, _, _, _ := w.pdf.GetMargins()
	w.pdf.SetX(left + float64(depth)*indentStep)
}

func (w *pdfWriter) value(v entities.Value, depth int) {
	switch v.Kind {
	case entities.KindNull:
		w.paragraph(unknownValueText, depth)
	case entities.KindScalar:
		w.paragraph(scalarText(v), depth)
	case entities.KindList:
		for _, item := range v.List {
			w.paragraph("• "+inlineText(item), depth)
		}
	case entities.KindMapping:
		for _, e := range v.Mapping {
			w.subheading(TitleFromKey(e.Key), depth)
			w.value(e.Value, depth+1)
		}
	default:
		w.paragraph(fmt.Sprint(v.Scalar), depth)
	}
}

func scalarText(v entities.Value) string {
	if s, ok := v.Scalar.(string); ok {
		return s
	}
	return fmt.Sprint(v.Scalar)
}

// inlineText flattens a list item onto one line.
func inlineText(v entities.Value) string {
	switch v.Kind {
	case entities.KindNull:
		return unknownValueText
	case entities.KindScalar:
		return scalarText(v)
	case entities.KindList:
		parts := make([]string, 0, len(v.List))
		for _, item := range v.List {
			parts = append(parts, inlineText(item))
		}
		return strings.Join(parts, ", ")
	default:
		parts := make([]string, 0, len(v.Mapping))
		for _, e := range v.Mapping {
			if e.Value.IsNull() {
				continue
			}
			parts = append(parts, TitleFromKey(e.Key)+": "+inlineText(e.Value))
		}
		return strings.Join(parts, "; ")
	}
}
