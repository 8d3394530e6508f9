package entities

import (
	"encoding/json"
	"time"
)

// Audit actions
const (
	AuditActionDocumentUploaded       = "Uploaded medical document"
	AuditActionDocumentViewed         = "Viewed medical document"
	AuditActionDocumentsListed        = "Listed medical documents"
	AuditActionDocumentAnalyzed       = "Analyzed medical document"
	AuditActionDocumentAnalysisFailed = "Failed to analyze medical document"
	AuditActionDocumentDeleted        = "Deleted medical document"
	AuditActionSummaryRequested       = "Requested document summary"
	AuditActionReportGenerated        = "Generated patient summary report"
)

// AuditLog records an action taken on patient data
type AuditLog struct {
	ID        string          `json:"id" db:"id"`
	UserID    string          `json:"user_id" db:"user_id"`
	Action    string          `json:"action" db:"action"`
	Timestamp time.Time       `json:"timestamp" db:"timestamp"`
	Details   json.RawMessage `json:"details,omitempty" db:"details"`
}

// NewAuditLog builds an entry; details are marshalled to JSON and dropped if they cannot be.
func NewAuditLog(id, userID, action string, details map[string]any) *AuditLog {
	entry := &AuditLog{
		ID:        id,
		UserID:    userID,
		Action:    action,
		Timestamp: time.Now().UTC(),
	}
	if len(details) > 0 {
		if data, err := json.Marshal(details); err == nil {
			entry.Details = data
		}
	}
	return entry
}
