package repositories

import (
	"context"

	"github.com/medrecords/backend/internal/domain/entities"
)

// DocumentRepository defines the interface for medical document data operations
type DocumentRepository interface {
	// Create creates a new document
	Create(ctx context.Context, doc *entities.MedicalDocument) error

	// GetByID retrieves a document by ID
	GetByID(ctx context.Context, id string) (*entities.MedicalDocument, error)

	// ListByPatient retrieves a patient's documents ordered by upload time ascending
	ListByPatient(ctx context.Context, patientID string) ([]*entities.MedicalDocument, error)

	// UpdateSummary overwrites the generated summary; no other field is touched
	UpdateSummary(ctx context.Context, id, summary string) error

	// Delete deletes a document
	Delete(ctx context.Context, id string) error

	// ListIDsWithoutSummary pages through documents lacking a summary, ordered by ID
	ListIDsWithoutSummary(ctx context.Context, afterID string, limit int) ([]string, error)
}
