package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/medrecords/backend/internal/application/services"
	"github.com/medrecords/backend/internal/domain/entities"
	"github.com/medrecords/backend/internal/domain/providers"
)

const multipartOverhead = 1 << 20

// DocumentManager is the document lifecycle used by DocumentHandler.
type DocumentManager interface {
	Upload(ctx context.Context, in services.UploadInput) (*entities.MedicalDocument, *providers.TaskHandle, error)
	Get(ctx context.Context, id, userID string) (*entities.MedicalDocument, error)
	ListByPatient(ctx context.Context, patientID, userID string) ([]*entities.MedicalDocument, error)
	Delete(ctx context.Context, id, userID string) error
	DownloadURL(ctx context.Context, id, userID string) (string, error)
	RequestSummary(ctx context.Context, id, userID string) (*providers.TaskHandle, error)
}

// DocumentAnalyzer runs interactive analysis.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, documentID string, override entities.DocumentType, userID string) (*services.AnalysisResult, error)
	RenderAnalysis(ctx context.Context, result *services.AnalysisResult) (*entities.RenderedReport, error)
}

// DocumentHandler handles medical document endpoints
type DocumentHandler struct {
	documents      DocumentManager
	analyzer       DocumentAnalyzer
	maxUploadBytes int64
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(documents DocumentManager, analyzer DocumentAnalyzer, maxUploadBytes int64) *DocumentHandler {
	return &DocumentHandler{
		documents:      documents,
		analyzer:       analyzer,
		maxUploadBytes: maxUploadBytes,
	}
}

type uploadResponse struct {
	Document *entities.MedicalDocument `json:"document"`
	TaskID   string                    `json:"task_id,omitempty"`
}

// UploadDocument handles POST /api/patients/{id}/documents (multipart: file, title)
func (h *DocumentHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	patientID := r.PathValue("id")
	if patientID == "" {
		respondWithError(w, http.StatusBadRequest, "patient ID is required")
		return
	}

	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	}
	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		respondWithError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	doc, handle, err := h.documents.Upload(r.Context(), services.UploadInput{
		PatientID:   patientID,
		Title:       r.FormValue("title"),
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
		UserID:      userIDFrom(r),
	})
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	resp := uploadResponse{Document: doc}
	if handle != nil {
		resp.TaskID = handle.ID
	}
	respondWithJSON(w, http.StatusCreated, resp)
}

// ListDocuments handles GET /api/patients/{id}/documents
func (h *DocumentHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	patientID := r.PathValue("id")
	docs, err := h.documents.ListByPatient(r.Context(), patientID, userIDFrom(r))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if docs == nil {
		docs = []*entities.MedicalDocument{}
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"patient_id": patientID,
		"documents":  docs,
		"count":      len(docs),
	})
}

// GetDocument handles GET /api/documents/{id}
func (h *DocumentHandler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.documents.Get(r.Context(), r.PathValue("id"), userIDFrom(r))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, doc)
}

// DeleteDocument handles DELETE /api/documents/{id}
func (h *DocumentHandler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := h.documents.Delete(r.Context(), r.PathValue("id"), userIDFrom(r)); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetDownloadURL handles GET /api/documents/{id}/download-url
func (h *DocumentHandler) GetDownloadURL(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	url, err := h.documents.DownloadURL(r.Context(), id, userIDFrom(r))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{
		"document_id": id,
		"url":         url,
	})
}

type analyzeRequest struct {
	DocumentType string `json:"document_type"`
}

// AnalyzeDocument handles POST /api/documents/{id}/analyze
// An unknown document_type is ignored and the document is classified instead.
// ?format=pdf returns a successful analysis as a PDF; failures are always JSON.
func (h *DocumentHandler) AnalyzeDocument(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			respondWithError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	override, _ := entities.ParseDocumentType(req.DocumentType)

	result, err := h.analyzer.Analyze(r.Context(), r.PathValue("id"), override, userIDFrom(r))
	if err != nil {
		if result != nil {
			respondWithJSON(w, statusFor(err), result)
			return
		}
		respondWithAppError(w, r, err)
		return
	}

	if r.URL.Query().Get("format") == "pdf" {
		rendered, err := h.analyzer.RenderAnalysis(r.Context(), result)
		if err != nil {
			respondWithAppError(w, r, err)
			return
		}
		respondWithAttachment(w, rendered)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// SummarizeDocument handles POST /api/documents/{id}/summarize
func (h *DocumentHandler) SummarizeDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	handle, err := h.documents.RequestSummary(r.Context(), id, userIDFrom(r))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusAccepted, map[string]string{
		"document_id": id,
		"task_id":     handle.ID,
		"queue":       handle.Queue,
		"status":      "queued",
	})
}
