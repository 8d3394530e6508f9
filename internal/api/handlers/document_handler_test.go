package handlers_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/medrecords/backend/internal/api/handlers"
	"github.com/medrecords/backend/internal/application/services"
	"github.com/medrecords/backend/internal/domain/entities"
	"github.com/medrecords/backend/internal/domain/providers"
	apperrors "github.com/medrecords/backend/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func multipartUpload(t *testing.T, fileName, title string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if title != "" {
		require.NoError(t, writer.WriteField("title", title))
	}
	if fileName != "" {
		part, err := writer.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestUploadDocument(t *testing.T) {
	documents := new(MockDocumentManager)
	handler := handlers.NewDocumentHandler(documents, new(MockDocumentAnalyzer), 1024)

	documents.On("Upload", mock.Anything, mock.MatchedBy(func(in services.UploadInput) bool {
		return in.PatientID == "P1" && in.FileName == "cbc.txt" && in.Title == "CBC" &&
			string(in.Data) == "WBC 7.2" && in.UserID == "doctor-1"
	})).Return(&entities.MedicalDocument{ID: "doc-1", PatientID: "P1", Title: "CBC"}, &providers.TaskHandle{ID: "task-1"}, nil)

	body, contentType := multipartUpload(t, "cbc.txt", "CBC", []byte("WBC 7.2"))
	req := httptest.NewRequest(http.MethodPost, "/api/patients/P1/documents", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(handlers.UserIDHeader, "doctor-1")
	req.SetPathValue("id", "P1")
	w := httptest.NewRecorder()

	handler.UploadDocument(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "task-1", resp["task_id"])
	assert.Equal(t, "doc-1", resp["document"].(map[string]interface{})["id"])
	documents.AssertExpectations(t)
}

func TestUploadDocument_NoFile(t *testing.T) {
	handler := handlers.NewDocumentHandler(new(MockDocumentManager), new(MockDocumentAnalyzer), 1024)

	body, contentType := multipartUpload(t, "", "CBC", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/patients/P1/documents", body)
	req.Header.Set("Content-Type", contentType)
	req.SetPathValue("id", "P1")
	w := httptest.NewRecorder()

	handler.UploadDocument(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "no file provided")
}

func TestUploadDocument_ValidationError(t *testing.T) {
	documents := new(MockDocumentManager)
	handler := handlers.NewDocumentHandler(documents, new(MockDocumentAnalyzer), 1024)
	documents.On("Upload", mock.Anything, mock.Anything).
		Return(nil, nil, apperrors.NewValidationError(`file type ".exe" is not allowed`))

	body, contentType := multipartUpload(t, "virus.exe", "", []byte("MZ"))
	req := httptest.NewRequest(http.MethodPost, "/api/patients/P1/documents", body)
	req.Header.Set("Content-Type", contentType)
	req.SetPathValue("id", "P1")
	w := httptest.NewRecorder()

	handler.UploadDocument(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "not allowed")
}

func TestGetDocument_NotFound(t *testing.T) {
	documents := new(MockDocumentManager)
	handler := handlers.NewDocumentHandler(documents, new(MockDocumentAnalyzer), 1024)
	documents.On("Get", mock.Anything, "missing", "").Return(nil, apperrors.NewNotFoundError("document not found"))

	req := httptest.NewRequest(http.MethodGet, "/api/documents/missing", nil)
	req.SetPathValue("id", "missing")
	w := httptest.NewRecorder()

	handler.GetDocument(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error": "document not found"}`, w.Body.String())
}

func TestListDocuments_Empty(t *testing.T) {
	documents := new(MockDocumentManager)
	handler := handlers.NewDocumentHandler(documents, new(MockDocumentAnalyzer), 1024)
	documents.On("ListByPatient", mock.Anything, "P1", "").Return(nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/patients/P1/documents", nil)
	req.SetPathValue("id", "P1")
	w := httptest.NewRecorder()

	handler.ListDocuments(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"patient_id": "P1", "documents": [], "count": 0}`, w.Body.String())
}

func TestDeleteDocument(t *testing.T) {
	documents := new(MockDocumentManager)
	handler := handlers.NewDocumentHandler(documents, new(MockDocumentAnalyzer), 1024)
	documents.On("Delete", mock.Anything, "doc-1", "admin").Return(nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/documents/doc-1", nil)
	req.Header.Set(handlers.UserIDHeader, "admin")
	req.SetPathValue("id", "doc-1")
	w := httptest.NewRecorder()

	handler.DeleteDocument(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestAnalyzeDocument(t *testing.T) {
	t.Run("valid override is passed through", func(t *testing.T) {
		analyzer := new(MockDocumentAnalyzer)
		handler := handlers.NewDocumentHandler(new(MockDocumentManager), analyzer, 1024)
		analyzer.On("Analyze", mock.Anything, "doc-1", entities.DocumentTypeLabReport, "").
			Return(&services.AnalysisResult{DocumentID: "doc-1", DocumentType: entities.DocumentTypeLabReport, Success: true, Summary: "Normal."}, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/documents/doc-1/analyze", strings.NewReader(`{"document_type": "Lab Report"}`))
		req.SetPathValue("id", "doc-1")
		w := httptest.NewRecorder()

		handler.AnalyzeDocument(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"summary":"Normal."`)
		analyzer.AssertExpectations(t)
	})

	t.Run("unknown override falls back to classification", func(t *testing.T) {
		analyzer := new(MockDocumentAnalyzer)
		handler := handlers.NewDocumentHandler(new(MockDocumentManager), analyzer, 1024)
		analyzer.On("Analyze", mock.Anything, "doc-1", entities.DocumentType(""), "").
			Return(&services.AnalysisResult{DocumentID: "doc-1", Success: true}, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/documents/doc-1/analyze", strings.NewReader(`{"document_type": "horoscope"}`))
		req.SetPathValue("id", "doc-1")
		w := httptest.NewRecorder()

		handler.AnalyzeDocument(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		analyzer.AssertExpectations(t)
	})

	t.Run("format pdf returns the rendered analysis", func(t *testing.T) {
		analyzer := new(MockDocumentAnalyzer)
		handler := handlers.NewDocumentHandler(new(MockDocumentManager), analyzer, 1024)
		result := &services.AnalysisResult{DocumentID: "doc-1", PatientID: "P1", Success: true}
		analyzer.On("Analyze", mock.Anything, "doc-1", entities.DocumentType(""), "").Return(result, nil)
		analyzer.On("RenderAnalysis", mock.Anything, result).Return(&entities.RenderedReport{
			Data:        []byte("%PDF-1.3 fake"),
			ContentType: "application/pdf",
			FileName:    "document_doc-1_analysis.pdf",
		}, nil)

		req := httptest.NewRequest(http.MethodPost, "/api/documents/doc-1/analyze?format=pdf", nil)
		req.SetPathValue("id", "doc-1")
		w := httptest.NewRecorder()

		handler.AnalyzeDocument(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="document_doc-1_analysis.pdf"`, w.Header().Get("Content-Disposition"))
		assert.Equal(t, "%PDF-1.3 fake", w.Body.String())
		analyzer.AssertExpectations(t)
	})

	t.Run("failed extraction returns the failure result", func(t *testing.T) {
		analyzer := new(MockDocumentAnalyzer)
		handler := handlers.NewDocumentHandler(new(MockDocumentManager), analyzer, 1024)
		cause := apperrors.NewMalformedOutputError("structured extraction reply is not a JSON object", errors.New("invalid character"))
		analyzer.On("Analyze", mock.Anything, "doc-1", entities.DocumentType(""), "").
			Return(&services.AnalysisResult{DocumentID: "doc-1", Success: false, Error: cause.Error()}, cause)

		req := httptest.NewRequest(http.MethodPost, "/api/documents/doc-1/analyze", nil)
		req.SetPathValue("id", "doc-1")
		w := httptest.NewRecorder()

		handler.AnalyzeDocument(w, req)

		assert.Equal(t, http.StatusBadGateway, w.Code)
		var resp services.AnalysisResult
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
		assert.Contains(t, resp.Error, "MALFORMED_OUTPUT")
	})
}

func TestSummarizeDocument_Accepted(t *testing.T) {
	documents := new(MockDocumentManager)
	handler := handlers.NewDocumentHandler(documents, new(MockDocumentAnalyzer), 1024)
	documents.On("RequestSummary", mock.Anything, "doc-1", "").
		Return(&providers.TaskHandle{ID: "task-7", Queue: "documents"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/documents/doc-1/summarize", nil)
	req.SetPathValue("id", "doc-1")
	w := httptest.NewRecorder()

	handler.SummarizeDocument(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.JSONEq(t, `{"document_id": "doc-1", "task_id": "task-7", "queue": "documents", "status": "queued"}`, w.Body.String())
}

func TestGetDownloadURL_StorageFailure(t *testing.T) {
	documents := new(MockDocumentManager)
	handler := handlers.NewDocumentHandler(documents, new(MockDocumentAnalyzer), 1024)
	documents.On("DownloadURL", mock.Anything, "doc-1", "").
		Return("", apperrors.NewExternalError("failed to create download url", errors.New("s3 down")))

	req := httptest.NewRequest(http.MethodGet, "/api/documents/doc-1/download-url", nil)
	req.SetPathValue("id", "doc-1")
	w := httptest.NewRecorder()

	handler.GetDownloadURL(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}
