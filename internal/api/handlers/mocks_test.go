package handlers_test

import (
	"context"
	"sync"

	"github.com/medrecords/backend/internal/application/services"
	"github.com/medrecords/backend/internal/domain/entities"
	"github.com/medrecords/backend/internal/domain/providers"
	"github.com/stretchr/testify/mock"
)

type MockDocumentManager struct {
	mock.Mock
}

func (m *MockDocumentManager) Upload(ctx context.Context, in services.UploadInput) (*entities.MedicalDocument, *providers.TaskHandle, error) {
	args := m.Called(ctx, in)
	var doc *entities.MedicalDocument
	if v := args.Get(0); v != nil {
		doc = v.(*entities.MedicalDocument)
	}
	var handle *providers.TaskHandle
	if v := args.Get(1); v != nil {
		handle = v.(*providers.TaskHandle)
	}
	return doc, handle, args.Error(2)
}

func (m *MockDocumentManager) Get(ctx context.Context, id, userID string) (*entities.MedicalDocument, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.MedicalDocument), args.Error(1)
}

func (m *MockDocumentManager) ListByPatient(ctx context.Context, patientID, userID string) ([]*entities.MedicalDocument, error) {
	args := m.Called(ctx, patientID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.MedicalDocument), args.Error(1)
}

func (m *MockDocumentManager) Delete(ctx context.Context, id, userID string) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

func (m *MockDocumentManager) DownloadURL(ctx context.Context, id, userID string) (string, error) {
	args := m.Called(ctx, id, userID)
	return args.String(0), args.Error(1)
}

func (m *MockDocumentManager) RequestSummary(ctx context.Context, id, userID string) (*providers.TaskHandle, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providers.TaskHandle), args.Error(1)
}

type MockDocumentAnalyzer struct {
	mock.Mock
}

func (m *MockDocumentAnalyzer) Analyze(ctx context.Context, documentID string, override entities.DocumentType, userID string) (*services.AnalysisResult, error) {
	args := m.Called(ctx, documentID, override, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.AnalysisResult), args.Error(1)
}

func (m *MockDocumentAnalyzer) RenderAnalysis(ctx context.Context, result *services.AnalysisResult) (*entities.RenderedReport, error) {
	args := m.Called(ctx, result)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.RenderedReport), args.Error(1)
}

type MockReportGenerator struct {
	mock.Mock
}

func (m *MockReportGenerator) GenerateReport(ctx context.Context, patientID, userID string) (*entities.PatientReport, *entities.RenderedReport, error) {
	args := m.Called(ctx, patientID, userID)
	var report *entities.PatientReport
	if v := args.Get(0); v != nil {
		report = v.(*entities.PatientReport)
	}
	var rendered *entities.RenderedReport
	if v := args.Get(1); v != nil {
		rendered = v.(*entities.RenderedReport)
	}
	return report, rendered, args.Error(2)
}

func (m *MockReportGenerator) GenerateOverview(ctx context.Context, patientID, userID string) (*entities.PatientReport, string, error) {
	args := m.Called(ctx, patientID, userID)
	var report *entities.PatientReport
	if v := args.Get(0); v != nil {
		report = v.(*entities.PatientReport)
	}
	return report, args.String(1), args.Error(2)
}

// MockEventBus for testing
type MockEventBus struct {
	mu          sync.RWMutex
	subscribers map[string][]chan *entities.DocumentEvent
	published   []*entities.DocumentEvent
}

func NewMockEventBus() *MockEventBus {
	return &MockEventBus{
		subscribers: make(map[string][]chan *entities.DocumentEvent),
	}
}

func (m *MockEventBus) Publish(ctx context.Context, channel string, event *entities.DocumentEvent) error {
	m.mu.Lock()
	m.published = append(m.published, event)
	channels := append([]chan *entities.DocumentEvent(nil), m.subscribers[channel]...)
	m.mu.Unlock()

	for _, ch := range channels {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

func (m *MockEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.DocumentEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan *entities.DocumentEvent, 10)
	m.subscribers[channel] = append(m.subscribers[channel], ch)
	return ch, nil
}

func (m *MockEventBus) Unsubscribe(ctx context.Context, channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscribers, channel)
	return nil
}

func (m *MockEventBus) Close() error {
	return nil
}

func (m *MockEventBus) SubscriberCount(channel string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscribers[channel])
}
