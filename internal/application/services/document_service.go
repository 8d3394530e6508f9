package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/medrecords/backend/internal/domain/entities"
	"github.com/medrecords/backend/internal/domain/providers"
	"github.com/medrecords/backend/internal/domain/repositories"
	"github.com/medrecords/backend/internal/infrastructure/observability"
	"github.com/medrecords/backend/pkg/config"
	apperrors "github.com/medrecords/backend/pkg/errors"
)

// UploadInput is a new document as received from a client.
type UploadInput struct {
	PatientID   string
	Title       string
	FileName    string
	ContentType string
	Data        []byte
	UserID      string
}

// DocumentService handles the document lifecycle: upload, read, delete and summary requests.
type DocumentService struct {
	repo       repositories.DocumentRepository
	blobs      providers.BlobStore
	queue      providers.TaskQueue
	audit      auditTrail
	cfg        config.PipelineConfig
	presignTTL time.Duration
	metrics    *observability.Metrics
}

// NewDocumentService creates a new document service
func NewDocumentService(
	repo repositories.DocumentRepository,
	blobs providers.BlobStore,
	queue providers.TaskQueue,
	auditRepo repositories.AuditLogRepository,
	cfg config.PipelineConfig,
	presignTTL time.Duration,
	metrics *observability.Metrics,
) *DocumentService {
	return &DocumentService{
		repo:       repo,
		blobs:      blobs,
		queue:      queue,
		audit:      auditTrail{repo: auditRepo},
		cfg:        cfg,
		presignTTL: presignTTL,
		metrics:    metrics,
	}
}

// Upload stores the file, records the document and queues its summarisation.
// The returned task handle is nil when the queue refused the task; the upload still stands.
func (s *DocumentService) Upload(ctx context.Context, in UploadInput) (*entities.MedicalDocument, *providers.TaskHandle, error) {
	if strings.TrimSpace(in.PatientID) == "" {
		return nil, nil, apperrors.NewValidationError("patient id is required")
	}
	if len(in.Data) == 0 {
		return nil, nil, apperrors.NewValidationError("no file provided")
	}
	if s.cfg.MaxUploadBytes > 0 && int64(len(in.Data)) > s.cfg.MaxUploadBytes {
		return nil, nil, apperrors.NewValidationError(fmt.Sprintf("file exceeds the %d byte limit", s.cfg.MaxUploadBytes))
	}
	ext := strings.ToLower(filepath.Ext(in.FileName))
	if !s.cfg.IsAllowedExtension(ext) {
		return nil, nil, apperrors.NewValidationError(fmt.Sprintf("file type %q is not allowed", ext))
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(in.FileName), filepath.Ext(in.FileName))
	}
	contentType := in.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = contentTypeForExt(ext)
	}

	id := uuid.NewString()
	locator, err := s.blobs.Put(ctx, uuid.NewString()+ext, in.Data, contentType)
	if err != nil {
		return nil, nil, apperrors.NewExternalError("failed to store document file", err)
	}

	doc := &entities.MedicalDocument{
		ID:          id,
		PatientID:   in.PatientID,
		Title:       title,
		FileLocator: locator,
		ContentType: contentType,
		UploadedAt:  time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, doc); err != nil {
		if delErr := s.blobs.Delete(ctx, locator); delErr != nil {
			observability.DocumentLogger(ctx, id, in.PatientID).Warn().Err(delErr).Msg("failed to remove orphaned blob")
		}
		return nil, nil, err
	}

	s.audit.record(ctx, in.UserID, entities.AuditActionDocumentUploaded, map[string]any{
		"document_id": doc.ID,
		"patient_id":  doc.PatientID,
		"title":       doc.Title,
	})

	handle, err := s.submitSummary(ctx, doc.ID)
	if err != nil {
		observability.DocumentLogger(ctx, doc.ID, doc.PatientID).Error().Err(err).Msg("failed to queue summarisation")
		return doc, nil, nil
	}
	return doc, handle, nil
}

// Get retrieves a document by ID
func (s *DocumentService) Get(ctx context.Context, id, userID string) (*entities.MedicalDocument, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.audit.record(ctx, userID, entities.AuditActionDocumentViewed, map[string]any{
		"document_id": doc.ID,
		"patient_id":  doc.PatientID,
	})
	return doc, nil
}

// ListByPatient returns the patient's documents in upload order
func (s *DocumentService) ListByPatient(ctx context.Context, patientID, userID string) ([]*entities.MedicalDocument, error) {
	docs, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	s.audit.record(ctx, userID, entities.AuditActionDocumentsListed, map[string]any{
		"patient_id": patientID,
		"count":      len(docs),
	})
	return docs, nil
}

// Delete removes the file and then the document row. A failed file delete aborts;
// a file that is already gone does not.
func (s *DocumentService) Delete(ctx context.Context, id, userID string) error {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, doc.FileLocator); err != nil && !errors.Is(err, providers.ErrBlobNotFound) {
		return apperrors.NewExternalError("failed to delete document file", err)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.audit.record(ctx, userID, entities.AuditActionDocumentDeleted, map[string]any{
		"document_id": doc.ID,
		"patient_id":  doc.PatientID,
	})
	return nil
}

// DownloadURL returns a time-limited link to the original file
func (s *DocumentService) DownloadURL(ctx context.Context, id, userID string) (string, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	url, err := s.blobs.Presign(ctx, doc.FileLocator, s.presignTTL)
	if err != nil {
		return "", apperrors.NewExternalError("failed to create download url", err)
	}
	s.audit.record(ctx, userID, entities.AuditActionDocumentViewed, map[string]any{
		"document_id": doc.ID,
		"patient_id":  doc.PatientID,
		"download":    true,
	})
	return url, nil
}

// RequestSummary queues (re)summarisation of an existing document.
func (s *DocumentService) RequestSummary(ctx context.Context, id, userID string) (*providers.TaskHandle, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	handle, err := s.submitSummary(ctx, doc.ID)
	if err != nil {
		return nil, apperrors.NewExternalError("failed to queue summarisation", err)
	}
	s.audit.record(ctx, userID, entities.AuditActionSummaryRequested, map[string]any{
		"document_id": doc.ID,
		"patient_id":  doc.PatientID,
		"task_id":     handle.ID,
	})
	return handle, nil
}

func (s *DocumentService) submitSummary(ctx context.Context, documentID string) (*providers.TaskHandle, error) {
	return submitSummaryTask(ctx, s.queue, s.metrics, documentID)
}

func submitSummaryTask(ctx context.Context, queue providers.TaskQueue, metrics *observability.Metrics, documentID string) (*providers.TaskHandle, error) {
	if queue == nil {
		return nil, fmt.Errorf("no task queue configured")
	}
	payload, err := json.Marshal(providers.SummarizeDocumentPayload{DocumentID: documentID})
	if err != nil {
		return nil, err
	}
	handle, err := queue.Submit(ctx, providers.TaskTypeSummarizeDocument, payload)
	if err != nil {
		return nil, err
	}
	observability.RecordTaskSubmitted(ctx, metrics, providers.TaskTypeSummarizeDocument)
	return handle, nil
}

func contentTypeForExt(ext string) string {
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".txt":
		return "text/plain; charset=utf-8"
	}
	return "application/octet-stream"
}
