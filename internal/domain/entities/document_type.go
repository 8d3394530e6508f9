package entities

import (
	"strings"
	"unicode"
)

// DocumentType is the clinical genre of a document
type DocumentType string

const (
	DocumentTypeMedicalHistory   DocumentType = "medical_history"
	DocumentTypeLabReport        DocumentType = "lab_report"
	DocumentTypeRadiologyReport  DocumentType = "radiology_report"
	DocumentTypePrescription     DocumentType = "prescription"
	DocumentTypeSurgicalReport   DocumentType = "surgical_report"
	DocumentTypeDischargeSummary DocumentType = "discharge_summary"
	DocumentTypePathologyReport  DocumentType = "pathology_report"
	DocumentTypeConsultationNote DocumentType = "consultation_note"
)

// DefaultDocumentType is used whenever a type cannot be determined.
const DefaultDocumentType = DocumentTypeMedicalHistory

// AllDocumentTypes lists every supported type in a stable order.
func AllDocumentTypes() []DocumentType {
	return []DocumentType{
		DocumentTypeMedicalHistory,
		DocumentTypeLabReport,
		DocumentTypeRadiologyReport,
		DocumentTypePrescription,
		DocumentTypeSurgicalReport,
		DocumentTypeDischargeSummary,
		DocumentTypePathologyReport,
		DocumentTypeConsultationNote,
	}
}

// IsValid reports whether t is one of the supported types.
func (t DocumentType) IsValid() bool {
	for _, known := range AllDocumentTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// ParseDocumentType normalizes free text ("Lab Report", "lab-report.", "LAB_REPORT")
// and matches it against the supported types.
func ParseDocumentType(s string) (DocumentType, bool) {
	candidate := DocumentType(NormalizeDocumentType(s))
	if candidate.IsValid() {
		return candidate, true
	}
	return "", false
}

// NormalizeDocumentType lower-cases s and joins its words with underscores.
func NormalizeDocumentType(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.Trim(s, "\"'`.:;!")
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '-' || r == '_'
	})
	return strings.Join(fields, "_")
}
