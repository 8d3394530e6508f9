package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/medrecords/backend/internal/domain/entities"
	"github.com/medrecords/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/medrecords/backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockClient(t *testing.T) (*postgres.Client, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return postgres.NewClientFromDB(db), mock
}

var documentRowColumns = []string{"id", "patient_id", "title", "file_path", "content_type", "summary", "uploaded_at"}

func TestDocumentAdapter_Create(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := NewDocumentAdapter(client)

	mock.ExpectExec(`INSERT INTO "medical_documents"`).
		WithArgs("application/pdf", "s3://records/a.pdf", "doc-1", "P1", "CBC", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := adapter.Create(context.Background(), &entities.MedicalDocument{
		ID:          "doc-1",
		PatientID:   "P1",
		Title:       "CBC",
		FileLocator: "s3://records/a.pdf",
		ContentType: "application/pdf",
		UploadedAt:  time.Now(),
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentAdapter_GetByID(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := NewDocumentAdapter(client)
	uploaded := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT .+ FROM "medical_documents" WHERE \("id" = \$1\)`).
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows(documentRowColumns).
			AddRow("doc-1", "P1", "CBC", "s3://records/a.pdf", nil, "Normal CBC.", uploaded))

	doc, err := adapter.GetByID(context.Background(), "doc-1")

	require.NoError(t, err)
	assert.Equal(t, "P1", doc.PatientID)
	assert.Equal(t, "", doc.ContentType)
	require.NotNil(t, doc.Summary)
	assert.Equal(t, "Normal CBC.", *doc.Summary)
	assert.Equal(t, uploaded, doc.UploadedAt)
}

func TestDocumentAdapter_GetByID_NotFound(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := NewDocumentAdapter(client)

	mock.ExpectQuery(`SELECT .+ FROM "medical_documents"`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(documentRowColumns))

	_, err := adapter.GetByID(context.Background(), "missing")

	assert.Equal(t, apperrors.ErrorTypeNotFound, apperrors.TypeOf(err))
}

func TestDocumentAdapter_ListByPatientOrdersByUploadTime(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := NewDocumentAdapter(client)
	day := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }

	mock.ExpectQuery(`SELECT .+ FROM "medical_documents" WHERE \("patient_id" = \$1\) ORDER BY "uploaded_at" ASC, "id" ASC`).
		WithArgs("P1").
		WillReturnRows(sqlmock.NewRows(documentRowColumns).
			AddRow("d1", "P1", "CBC", "mem://d1.txt", "text/plain", nil, day(1)).
			AddRow("d2", "P1", "Lipids", "mem://d2.txt", "text/plain", nil, day(2)))

	docs, err := adapter.ListByPatient(context.Background(), "P1")

	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Nil(t, docs[0].Summary)
	assert.Equal(t, "d2", docs[1].ID)
}

func TestDocumentAdapter_UpdateSummary(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := NewDocumentAdapter(client)

	mock.ExpectExec(`UPDATE "medical_documents" SET "summary"`).
		WithArgs("Summary generation failed.", "doc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "medical_documents" SET "summary"`).
		WithArgs("text", "gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, adapter.UpdateSummary(context.Background(), "doc-1", "Summary generation failed."))

	err := adapter.UpdateSummary(context.Background(), "gone", "text")
	assert.Equal(t, apperrors.ErrorTypeNotFound, apperrors.TypeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentAdapter_Delete(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := NewDocumentAdapter(client)

	mock.ExpectExec(`DELETE FROM "medical_documents" WHERE \("id" = \$1\)`).
		WithArgs("doc-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, adapter.Delete(context.Background(), "doc-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentAdapter_ListIDsWithoutSummary(t *testing.T) {
	client, mock := newMockClient(t)
	adapter := NewDocumentAdapter(client)

	mock.ExpectQuery(`SELECT "id" FROM "medical_documents" WHERE .+"summary" IS NULL.+ORDER BY "id" ASC LIMIT`).
		WithArgs("", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a").AddRow("b"))
	mock.ExpectQuery(`"id" > \$2`).
		WithArgs("", "b", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	first, err := adapter.ListIDsWithoutSummary(context.Background(), "", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, first)

	rest, err := adapter.ListIDsWithoutSummary(context.Background(), "b", 2)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.NoError(t, mock.ExpectationsWereMet())
}
