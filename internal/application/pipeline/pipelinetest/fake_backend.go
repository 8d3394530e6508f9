// Package pipelinetest provides a deterministic generative backend for tests.
package pipelinetest

import (
	"context"
	"errors"
	"sync"

	"github.com/medrecords/backend/internal/domain/providers"
)

// ErrNoReplyScripted is returned once the scripted replies run out and no Respond func is set.
var ErrNoReplyScripted = errors.New("pipelinetest: no reply scripted")

// Reply is one scripted backend answer.
type Reply struct {
	Text string
	Err  error
}

// FakeBackend replays scripted replies in order and records every request.
type FakeBackend struct {
	mu      sync.Mutex
	Replies []Reply
	// Respond, when set, answers every call after the scripted replies are used up.
	Respond func(req providers.CompletionRequest) (string, error)
	Calls   []providers.CompletionRequest
}

// NewFakeBackend scripts successful replies with the given texts.
func NewFakeBackend(texts ...string) *FakeBackend {
	f := &FakeBackend{}
	for _, t := range texts {
		f.Replies = append(f.Replies, Reply{Text: t})
	}
	return f
}

// Failing returns a backend whose every call fails with err.
func Failing(err error) *FakeBackend {
	return &FakeBackend{
		Respond: func(providers.CompletionRequest) (string, error) { return "", err },
	}
}

// Then appends a scripted reply.
func (f *FakeBackend) Then(text string, err error) *FakeBackend {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Replies = append(f.Replies, Reply{Text: text, Err: err})
	return f
}

// Complete implements providers.GenerativeBackend.
func (f *FakeBackend) Complete(ctx context.Context, req providers.CompletionRequest) (string, error) {
	f.mu.Lock()
	f.Calls = append(f.Calls, req)
	var (
		reply   Reply
		have    bool
		respond = f.Respond
	)
	if len(f.Replies) > 0 {
		reply, have = f.Replies[0], true
		f.Replies = f.Replies[1:]
	}
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if have {
		return reply.Text, reply.Err
	}
	if respond != nil {
		return respond(req)
	}
	return "", ErrNoReplyScripted
}

// CallCount returns the number of Complete calls so far.
func (f *FakeBackend) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

// LastCall returns the most recent request.
func (f *FakeBackend) LastCall() providers.CompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Calls) == 0 {
		return providers.CompletionRequest{}
	}
	return f.Calls[len(f.Calls)-1]
}
