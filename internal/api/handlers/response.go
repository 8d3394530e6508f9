package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/medrecords/backend/internal/domain/entities"
	"github.com/medrecords/backend/internal/infrastructure/observability"
	apperrors "github.com/medrecords/backend/pkg/errors"
)

// UserIDHeader carries the authenticated caller, set by the gateway in front of the API.
const UserIDHeader = "X-User-ID"

func userIDFrom(r *http.Request) string {
	return r.Header.Get(UserIDHeader)
}

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func respondWithAttachment(w http.ResponseWriter, rendered *entities.RenderedReport) {
	w.Header().Set("Content-Type", rendered.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rendered.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(rendered.Data)))
	w.WriteHeader(http.StatusOK)
	w.Write(rendered.Data)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeValidation:
		return http.StatusBadRequest
	case apperrors.ErrorTypeNotFound:
		return http.StatusNotFound
	case apperrors.ErrorTypeConflict:
		return http.StatusConflict
	case apperrors.ErrorTypeExternal, apperrors.ErrorTypeMalformedOutput:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondWithAppError writes err with its mapped status. Internal details are only logged.
func respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		observability.LoggerFromContext(r.Context()).Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		if status == http.StatusInternalServerError {
			message = "internal server error"
		}
	}
	respondWithError(w, status, message)
}
