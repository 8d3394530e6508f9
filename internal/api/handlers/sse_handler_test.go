package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/medrecords/backend/internal/api/handlers"
	"github.com/medrecords/backend/internal/domain/entities"
	"github.com/medrecords/backend/internal/domain/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSEHandler_StreamPatientDocuments(t *testing.T) {
	t.Run("should forward document events and heartbeats", func(t *testing.T) {
		eventBus := NewMockEventBus()
		handler := handlers.NewSSEHandler(eventBus).WithHeartbeat(50 * time.Millisecond)
		channel := providers.GetPatientDocumentsChannel("P1")

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		req := httptest.NewRequest(http.MethodGet, "/api/stream/patients/P1/documents", nil)
		req.SetPathValue("id", "P1")
		req = req.WithContext(ctx)
		w := httptest.NewRecorder()

		done := make(chan struct{})
		go func() {
			handler.StreamPatientDocuments(w, req)
			close(done)
		}()

		require.Eventually(t, func() bool { return eventBus.SubscriberCount(channel) == 1 }, time.Second, 10*time.Millisecond)

		event := entities.NewDocumentEvent(&entities.MedicalDocument{ID: "doc-1", PatientID: "P1"}, entities.DocumentEventSummaryCompleted)
		event.Summary = "Normal CBC."
		require.NoError(t, eventBus.Publish(context.Background(), channel, event))

		time.Sleep(150 * time.Millisecond)
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("handler did not exit after cancel")
		}

		result := w.Result()
		assert.Equal(t, "text/event-stream", result.Header.Get("Content-Type"))
		assert.Equal(t, "no-cache", result.Header.Get("Cache-Control"))

		body := w.Body.String()
		assert.Contains(t, body, "event: connected")
		assert.Contains(t, body, "event: summary_completed")
		assert.Contains(t, body, `"summary":"Normal CBC."`)
		assert.Contains(t, body, "event: heartbeat")
		assert.Equal(t, 0, handler.GetClientCount())
	})

	t.Run("should return error for missing patient ID", func(t *testing.T) {
		handler := handlers.NewSSEHandler(NewMockEventBus())
		req := httptest.NewRequest(http.MethodGet, "/api/stream/patients//documents", nil)
		w := httptest.NewRecorder()

		handler.StreamPatientDocuments(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
