package routes

import (
	"net/http"

	"github.com/medrecords/backend/internal/api/handlers"
	"github.com/medrecords/backend/internal/api/middleware"
	"github.com/medrecords/backend/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	documentHandler *handlers.DocumentHandler
	reportHandler   *handlers.ReportHandler
	sseHandler      *handlers.SSEHandler

	allowedOrigins []string
	metrics        *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	documentHandler *handlers.DocumentHandler,
	reportHandler *handlers.ReportHandler,
	sseHandler *handlers.SSEHandler,
	allowedOrigins []string,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:             http.NewServeMux(),
		documentHandler: documentHandler,
		reportHandler:   reportHandler,
		sseHandler:      sseHandler,
		allowedOrigins:  allowedOrigins,
		metrics:         metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Document endpoints
	r.mux.HandleFunc("POST /api/patients/{id}/documents", r.documentHandler.UploadDocument)
	r.mux.HandleFunc("GET /api/patients/{id}/documents", r.documentHandler.ListDocuments)
	r.mux.HandleFunc("GET /api/documents/{id}", r.documentHandler.GetDocument)
	r.mux.HandleFunc("DELETE /api/documents/{id}", r.documentHandler.DeleteDocument)
	r.mux.HandleFunc("GET /api/documents/{id}/download-url", r.documentHandler.GetDownloadURL)

	// Pipeline endpoints
	r.mux.HandleFunc("POST /api/documents/{id}/analyze", r.documentHandler.AnalyzeDocument)
	r.mux.HandleFunc("POST /api/documents/{id}/summarize", r.documentHandler.SummarizeDocument)
	r.mux.HandleFunc("GET /api/patients/{id}/summary", r.reportHandler.GetPatientSummary)

	if r.sseHandler != nil {
		r.mux.HandleFunc("GET /api/stream/patients/{id}/documents", r.sseHandler.StreamPatientDocuments)
	}

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.ResponseOptimization(handler)

	// CORS is outermost so preflight requests never reach the handlers
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
