package providers

import (
	"context"
	"errors"
)

// ErrGenerativeBackendUnauthorized is returned when the backend rejects the configured credentials.
var ErrGenerativeBackendUnauthorized = errors.New("generative backend unauthorized")

// CompletionRequest is a single call to a generative text model.
type CompletionRequest struct {
	SystemInstruction string
	UserContent       string
	// Structured asks the backend to reply with a JSON object.
	Structured      bool
	MaxOutputTokens int
	Temperature     float32
}

// GenerativeBackend completes text. Every call is fallible, billable and non-deterministic.
type GenerativeBackend interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
