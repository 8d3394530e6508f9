package entities

import "time"

// MedicalDocument is an uploaded clinical document owned by one patient.
// FileLocator is opaque and only interpreted by the blob store that issued it.
type MedicalDocument struct {
	ID          string    `json:"id" db:"id"`
	PatientID   string    `json:"patient_id" db:"patient_id"`
	Title       string    `json:"title" db:"title"`
	FileLocator string    `json:"file_path" db:"file_path"`
	ContentType string    `json:"content_type,omitempty" db:"content_type"`
	Summary     *string   `json:"summary,omitempty" db:"summary"`
	UploadedAt  time.Time `json:"uploaded_at" db:"uploaded_at"`
}

// SourceHint returns what the text extractor needs to decide how to decode the blob.
func (d *MedicalDocument) SourceHint() string {
	if d.ContentType != "" {
		return d.ContentType
	}
	return d.FileLocator
}

// HasSummary reports whether a summary has been written.
func (d *MedicalDocument) HasSummary() bool {
	return d.Summary != nil && *d.Summary != ""
}
