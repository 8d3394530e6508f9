package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/medrecords/backend/internal/domain/entities"
	"github.com/medrecords/backend/internal/domain/repositories"
	"github.com/medrecords/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/medrecords/backend/pkg/errors"
)

const documentsTable = "medical_documents"

var documentColumns = []interface{}{
	"id", "patient_id", "title", "file_path", "content_type", "summary", "uploaded_at",
}

// DocumentAdapter implements DocumentRepository
type DocumentAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewDocumentAdapter creates a new document adapter
func NewDocumentAdapter(client *postgres.Client) repositories.DocumentRepository {
	return &DocumentAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// Create creates a new document
func (a *DocumentAdapter) Create(ctx context.Context, doc *entities.MedicalDocument) error {
	record := goqu.Record{
		"id":           doc.ID,
		"patient_id":   doc.PatientID,
		"title":        doc.Title,
		"file_path":    doc.FileLocator,
		"content_type": sql.NullString{String: doc.ContentType, Valid: doc.ContentType != ""},
		"uploaded_at":  doc.UploadedAt,
	}

	query, args, err := a.db.Insert(documentsTable).Rows(record).Prepared(true).ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build insert query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create document", err)
	}
	return nil
}

// GetByID retrieves a document by ID
func (a *DocumentAdapter) GetByID(ctx context.Context, id string) (*entities.MedicalDocument, error) {
	query, args, err := a.db.Select(documentColumns...).
		From(documentsTable).
		Where(goqu.Ex{"id": id}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	doc, err := scanDocument(a.client.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("document with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get document", err)
	}
	return doc, nil
}

// ListByPatient retrieves a patient's documents, oldest first
func (a *DocumentAdapter) ListByPatient(ctx context.Context, patientID string) ([]*entities.MedicalDocument, error) {
	query, args, err := a.db.Select(documentColumns...).
		From(documentsTable).
		Where(goqu.Ex{"patient_id": patientID}).
		Order(goqu.C("uploaded_at").Asc(), goqu.C("id").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list documents", err)
	}
	defer rows.Close()

	docs := []*entities.MedicalDocument{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan document", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate documents", err)
	}
	return docs, nil
}

// UpdateSummary overwrites the summary column only
func (a *DocumentAdapter) UpdateSummary(ctx context.Context, id, summary string) error {
	query, args, err := a.db.Update(documentsTable).
		Set(goqu.Record{"summary": summary}).
		Where(goqu.Ex{"id": id}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update document summary", err)
	}
	return requireAffected(result, id)
}

// Delete deletes a document
func (a *DocumentAdapter) Delete(ctx context.Context, id string) error {
	query, args, err := a.db.Delete(documentsTable).
		Where(goqu.Ex{"id": id}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build delete query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to delete document", err)
	}
	return requireAffected(result, id)
}

// ListIDsWithoutSummary pages through documents that have no summary yet using keyset pagination
func (a *DocumentAdapter) ListIDsWithoutSummary(ctx context.Context, afterID string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}

	ds := a.db.Select("id").
		From(documentsTable).
		Where(goqu.Or(goqu.C("summary").IsNull(), goqu.C("summary").Eq("")))
	if afterID != "" {
		ds = ds.Where(goqu.C("id").Gt(afterID))
	}

	query, args, err := ds.Order(goqu.C("id").Asc()).Limit(uint(limit)).Prepared(true).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list documents without summary", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.NewInternalError("failed to scan document id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*entities.MedicalDocument, error) {
	doc := &entities.MedicalDocument{}
	var contentType, summary sql.NullString

	if err := row.Scan(
		&doc.ID,
		&doc.PatientID,
		&doc.Title,
		&doc.FileLocator,
		&contentType,
		&summary,
		&doc.UploadedAt,
	); err != nil {
		return nil, err
	}

	doc.ContentType = contentType.String
	if summary.Valid {
		doc.Summary = &summary.String
	}
	return doc, nil
}

func requireAffected(result sql.Result, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("document with id %s not found", id))
	}
	return nil
}
