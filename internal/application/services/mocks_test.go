package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/medrecords/backend/internal/adapters/storage"
	"github.com/medrecords/backend/internal/application/pipeline"
	"github.com/medrecords/backend/internal/application/services"
	"github.com/medrecords/backend/internal/domain/entities"
	"github.com/medrecords/backend/internal/domain/providers"
	"github.com/medrecords/backend/pkg/config"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Mocks

type MockDocumentRepo struct {
	mock.Mock
}

func (m *MockDocumentRepo) Create(ctx context.Context, doc *entities.MedicalDocument) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentRepo) GetByID(ctx context.Context, id string) (*entities.MedicalDocument, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.MedicalDocument), args.Error(1)
}

func (m *MockDocumentRepo) ListByPatient(ctx context.Context, patientID string) ([]*entities.MedicalDocument, error) {
	args := m.Called(ctx, patientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.MedicalDocument), args.Error(1)
}

func (m *MockDocumentRepo) UpdateSummary(ctx context.Context, id, summary string) error {
	args := m.Called(ctx, id, summary)
	return args.Error(0)
}

func (m *MockDocumentRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDocumentRepo) ListIDsWithoutSummary(ctx context.Context, afterID string, limit int) ([]string, error) {
	args := m.Called(ctx, afterID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockAuditRepo struct {
	mock.Mock
}

func (m *MockAuditRepo) Create(ctx context.Context, entry *entities.AuditLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

type MockTaskQueue struct {
	mock.Mock
}

func (m *MockTaskQueue) Submit(ctx context.Context, taskType string, payload []byte) (*providers.TaskHandle, error) {
	args := m.Called(ctx, taskType, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.TaskHandle), args.Error(1)
}

// recordingBus keeps every published event.
type recordingBus struct {
	mu     sync.Mutex
	events map[string][]*entities.DocumentEvent
}

func newRecordingBus() *recordingBus {
	return &recordingBus{events: make(map[string][]*entities.DocumentEvent)}
}

func (b *recordingBus) Publish(ctx context.Context, channel string, event *entities.DocumentEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[channel] = append(b.events[channel], event)
	return nil
}

func (b *recordingBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.DocumentEvent, error) {
	return nil, errors.New("not supported")
}

func (b *recordingBus) Unsubscribe(ctx context.Context, channel string) error { return nil }
func (b *recordingBus) Close() error                                          { return nil }

func (b *recordingBus) published(channel string) []*entities.DocumentEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.events[channel]
}

// Fixtures

const labReply = `{
  "patient_info": {"name": "Jane Roe", "age": 54, "gender": "F", "date_of_birth": null},
  "test_date": "2024-01-02",
  "results": [{"test_name": "WBC", "value": "7.2", "unit": "x10^9/L", "reference_range": "4.0-11.0", "flag": null}],
  "abnormal_findings": [],
  "interpretation": "Within normal limits"
}`

const aggregateReply = `{
  "patient_overview": "54-year-old female with type 2 diabetes.",
  "current_health_status": {"active_conditions": ["Type 2 diabetes"]},
  "medical_history_timeline": ["2024-01-01: CBC normal"],
  "risk_assessment": {"allergies": ["Penicillin"]},
  "treatment_plan": ["Metformin 500 mg twice daily"],
  "critical_information": {"required_follow_ups": ["Repeat HbA1c in 3 months"]}
}`

func testPipelineConfig() config.PipelineConfig {
	return config.PipelineConfig{
		ClassificationPrefixChars: 1000,
		SummaryInputChars:         3000,
		MaxUploadBytes:            1024,
		AllowedExtensions:         []string{".pdf", ".txt"},
	}
}

func newPipeline(backend providers.GenerativeBackend) *pipeline.Pipeline {
	return pipeline.New(backend, testPipelineConfig())
}

func newLoader(store providers.BlobStore) *services.DocumentTextLoader {
	return services.NewDocumentTextLoader(store, pipeline.NewTextExtractor(), nil, 0)
}

// storeDocument puts text into store and returns a document pointing at it.
func storeDocument(t *testing.T, store *storage.MemoryStore, id, patientID, text string) *entities.MedicalDocument {
	t.Helper()
	locator, err := store.Put(context.Background(), id+".txt", []byte(text), "text/plain")
	require.NoError(t, err)
	return &entities.MedicalDocument{
		ID:          id,
		PatientID:   patientID,
		Title:       "Document " + id,
		FileLocator: locator,
		ContentType: "text/plain",
	}
}

func auditAction(action string) interface{} {
	return mock.MatchedBy(func(e *entities.AuditLog) bool { return e.Action == action })
}
