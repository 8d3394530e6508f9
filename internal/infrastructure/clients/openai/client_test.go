package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/medrecords/backend/internal/domain/providers"
	"github.com/medrecords/backend/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Model          string `json:"model"`
	MaxTokens      int    `json:"max_tokens"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(&config.OpenAIConfig{
		APIKey:         "test-key",
		Model:          "gpt-test",
		BaseURL:        server.URL + "/v1",
		RequestTimeout: 5 * time.Second,
		RateLimitRPM:   -1,
	})
	require.NoError(t, err)
	return client
}

func chatReply(content string) string {
	reply := map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"model":   "gpt-test",
		"choices": []map[string]any{{"index": 0, "message": map[string]string{"role": "assistant", "content": content}, "finish_reason": "stop"}},
	}
	data, _ := json.Marshal(reply)
	return string(data)
}

func TestComplete_StructuredRequest(t *testing.T) {
	var got capturedRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatReply(`{"test_date": "2024-01-02"}`)))
	})

	reply, err := client.Complete(context.Background(), providers.CompletionRequest{
		SystemInstruction: "Extract lab results.",
		UserContent:       "WBC 7.2",
		Structured:        true,
		MaxOutputTokens:   2000,
		Temperature:       0.2,
	})

	require.NoError(t, err)
	assert.Equal(t, `{"test_date": "2024-01-02"}`, reply)
	assert.Equal(t, "gpt-test", got.Model)
	assert.Equal(t, 2000, got.MaxTokens)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "WBC 7.2", got.Messages[1].Content)
}

func TestComplete_PlainRequestHasNoResponseFormat(t *testing.T) {
	var got capturedRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chatReply("lab_report")))
	})

	reply, err := client.Complete(context.Background(), providers.CompletionRequest{UserContent: "CBC"})

	require.NoError(t, err)
	assert.Equal(t, "lab_report", reply)
	assert.Nil(t, got.ResponseFormat)
	assert.Len(t, got.Messages, 1)
}

func TestComplete_Unauthorized(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "Incorrect API key", "type": "invalid_request_error"}}`))
	})

	_, err := client.Complete(context.Background(), providers.CompletionRequest{UserContent: "x"})

	assert.ErrorIs(t, err, providers.ErrGenerativeBackendUnauthorized)
}

func TestComplete_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error": {"message": "overloaded", "type": "server_error"}}`))
	})

	_, err := client.Complete(context.Background(), providers.CompletionRequest{UserContent: "x"})

	require.Error(t, err)
	assert.NotErrorIs(t, err, providers.ErrGenerativeBackendUnauthorized)
}

func TestComplete_EmptyChoices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": "x", "object": "chat.completion", "choices": []}`))
	})

	_, err := client.Complete(context.Background(), providers.CompletionRequest{UserContent: "x"})

	assert.ErrorContains(t, err, "missing output text")
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(&config.OpenAIConfig{})
	assert.Error(t, err)
}

func TestNewLimiter(t *testing.T) {
	assert.Nil(t, newLimiter(-1, 5))

	l := newLimiter(0, 0)
	require.NotNil(t, l)
	assert.Equal(t, 5, l.Burst())
	assert.InDelta(t, 1.0, float64(l.Limit()), 0.0001)
}
