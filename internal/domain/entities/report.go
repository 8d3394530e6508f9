package entities

import "time"

// ReportSection is one top-level section of a patient report.
type ReportSection struct {
	Key     string `json:"key"`
	Title   string `json:"title"`
	Content Value  `json:"content"`
}

// PatientReport is the longitudinal summary of one patient's documents.
// It is built per request and never persisted.
type PatientReport struct {
	PatientID           string          `json:"patient_id"`
	GeneratedAt         time.Time       `json:"generated_at"`
	Sections            []ReportSection `json:"sections"`
	SourceDocumentCount int             `json:"source_document_count"`
	Success             bool            `json:"success"`
	RawModelOutput      string          `json:"-"`
}

// Section returns the section stored under key.
func (r *PatientReport) Section(key string) (ReportSection, bool) {
	for _, s := range r.Sections {
		if s.Key == key {
			return s, true
		}
	}
	return ReportSection{}, false
}

// SectionKeys returns section keys in report order.
func (r *PatientReport) SectionKeys() []string {
	keys := make([]string, 0, len(r.Sections))
	for _, s := range r.Sections {
		keys = append(keys, s.Key)
	}
	return keys
}

// ReportSource is one document handed to the aggregator.
type ReportSource struct {
	Title string
	Date  string
	Text  string
}

// ReportMetadata is printed on the title page of a rendered report.
type ReportMetadata struct {
	PatientID     string
	GeneratedAt   time.Time
	DocumentCount int
}

// RenderedReport is a downloadable report artifact.
type RenderedReport struct {
	Data          []byte
	ContentType   string
	FileName      string
	DocumentCount int
}
