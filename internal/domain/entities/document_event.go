package entities

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// DocumentEventType represents the type of document event
type DocumentEventType string

const (
	DocumentEventSummaryCompleted  DocumentEventType = "summary_completed"
	DocumentEventSummaryFailed     DocumentEventType = "summary_failed"
	DocumentEventAnalysisCompleted DocumentEventType = "analysis_completed"
)

// DocumentEvent notifies listeners that pipeline output for a document changed
type DocumentEvent struct {
	ID           string            `json:"id"`
	DocumentID   string            `json:"document_id"`
	PatientID    string            `json:"patient_id"`
	EventType    DocumentEventType `json:"event_type"`
	DocumentType DocumentType      `json:"document_type,omitempty"`
	Summary      string            `json:"summary,omitempty"`
	Error        string            `json:"error,omitempty"`
	Timestamp    time.Time         `json:"timestamp"`
}

// NewDocumentEvent creates a new document event
func NewDocumentEvent(doc *MedicalDocument, eventType DocumentEventType) *DocumentEvent {
	return &DocumentEvent{
		ID:         generateEventID(),
		DocumentID: doc.ID,
		PatientID:  doc.PatientID,
		EventType:  eventType,
		Timestamp:  time.Now().UTC(),
	}
}

// generateEventID generates a unique event ID
func generateEventID() string {
	return time.Now().Format("20060102150405") + "-" + randomString(8)
}

func randomString(length int) string {
	bytes := make([]byte, length/2+1)
	if _, err := rand.Read(bytes); err != nil {
		return time.Now().Format("150405.000")
	}
	return hex.EncodeToString(bytes)[:length]
}
