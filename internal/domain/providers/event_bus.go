package providers

import (
	"context"
	"errors"

	"github.com/medrecords/backend/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.DocumentEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.DocumentEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

const (
	// EventChannelDocumentUpdates receives every document event
	EventChannelDocumentUpdates = "documents:updates"

	// EventChannelPatientPrefix is the prefix for patient-specific channels
	EventChannelPatientPrefix = "patient:"
)

// GetPatientDocumentsChannel returns the channel carrying events for one patient's documents
func GetPatientDocumentsChannel(patientID string) string {
	return EventChannelPatientPrefix + patientID + ":documents"
}

// PublishDocumentEvent sends event to the global feed and to the patient's channel.
// A nil bus is a no-op.
func PublishDocumentEvent(ctx context.Context, bus EventBus, event *entities.DocumentEvent) error {
	if bus == nil {
		return nil
	}
	var errs []error
	for _, channel := range []string{EventChannelDocumentUpdates, GetPatientDocumentsChannel(event.PatientID)} {
		if err := bus.Publish(ctx, channel, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
