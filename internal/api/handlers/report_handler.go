package handlers

import (
	"context"
	"net/http"

	"github.com/medrecords/backend/internal/domain/entities"
)

// ReportGenerator builds patient reports.
type ReportGenerator interface {
	GenerateReport(ctx context.Context, patientID, userID string) (*entities.PatientReport, *entities.RenderedReport, error)
	GenerateOverview(ctx context.Context, patientID, userID string) (*entities.PatientReport, string, error)
}

// ReportHandler serves patient summary reports
type ReportHandler struct {
	reports ReportGenerator
}

// NewReportHandler creates a new report handler
func NewReportHandler(reports ReportGenerator) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// GetPatientSummary handles GET /api/patients/{id}/summary
// The default response is the PDF; ?format=json returns the sections plus a narrative overview.
func (h *ReportHandler) GetPatientSummary(w http.ResponseWriter, r *http.Request) {
	patientID := r.PathValue("id")
	if patientID == "" {
		respondWithError(w, http.StatusBadRequest, "patient ID is required")
		return
	}

	if r.URL.Query().Get("format") == "json" {
		report, overview, err := h.reports.GenerateOverview(r.Context(), patientID, userIDFrom(r))
		if err != nil {
			respondWithAppError(w, r, err)
			return
		}
		respondWithJSON(w, http.StatusOK, map[string]interface{}{
			"report":   report,
			"overview": overview,
		})
		return
	}

	_, rendered, err := h.reports.GenerateReport(r.Context(), patientID, userIDFrom(r))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithAttachment(w, rendered)
}
