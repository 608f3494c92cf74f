package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(&Config{Model: "m"}, zap.NewNop())
	assert.ErrorContains(t, err, "endpoint is required")

	_, err = NewClient(&Config{Endpoint: "http://localhost"}, zap.NewNop())
	assert.ErrorContains(t, err, "model is required")

	_, err = NewAnthropicClient(&Config{Model: "claude"}, zap.NewNop())
	assert.ErrorContains(t, err, "api key is required")
}

func TestClient_GenerateResponse(t *testing.T) {
	var received struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "llama-3.3-70b-versatile",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Cloud9 is 58% on Haven."}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 7, "total_tokens": 19}
		}`))
	}))
	defer server.Close()

	client, err := NewClient(&Config{
		Endpoint: server.URL + "/v1/",
		Model:    "llama-3.3-70b-versatile",
		APIKey:   "test-key",
	}, zap.NewNop())
	require.NoError(t, err)

	result, err := client.GenerateResponse(context.Background(), "question", "system", 0.2)
	require.NoError(t, err)

	assert.Equal(t, "Cloud9 is 58% on Haven.", result.Content)
	assert.Equal(t, 19, result.TotalTokens)
	assert.Equal(t, "llama-3.3-70b-versatile", received.Model)
	require.Len(t, received.Messages, 2)
	assert.Equal(t, "system", received.Messages[0].Role)
	assert.Equal(t, "question", received.Messages[1].Content)
}

func TestClient_GenerateResponse_ClassifiesThrottling(t *testing.T) {
	tests := []struct {
		name string
		body string
		want ErrorType
	}{
		{
			name: "rate limited",
			body: `{"error": {"message": "Rate limit reached for model", "type": "requests", "code": "rate_limit_exceeded"}}`,
			want: ErrorTypeRateLimit,
		},
		{
			name: "quota exhausted",
			body: `{"error": {"message": "You exceeded your current quota", "type": "insufficient_quota", "code": "insufficient_quota"}}`,
			want: ErrorTypeQuota,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, err := NewClient(&Config{Endpoint: server.URL, Model: "m", APIKey: "k"}, zap.NewNop())
			require.NoError(t, err)

			_, err = client.GenerateResponse(context.Background(), "q", "s", 0)
			require.Error(t, err)
			assert.Equal(t, tt.want, GetErrorType(err))
		})
	}
}

func TestAnthropicClient_GenerateResponse(t *testing.T) {
	var received struct {
		Model  string          `json:"model"`
		System json.RawMessage `json:"system"`
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-sonnet-4-5",
			"content": [{"type": "text", "text": "Sentinels favor Ascent."}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 10, "output_tokens": 5}
		}`))
	}))
	defer server.Close()

	client, err := NewAnthropicClient(&Config{
		Endpoint: server.URL + "/v1",
		Model:    "claude-sonnet-4-5",
		APIKey:   "test-key",
	}, zap.NewNop())
	require.NoError(t, err)

	result, err := client.GenerateResponse(context.Background(), "question", "be brief", 0)
	require.NoError(t, err)

	assert.Equal(t, "Sentinels favor Ascent.", result.Content)
	assert.Equal(t, 15, result.TotalTokens)
	assert.Equal(t, "claude-sonnet-4-5", received.Model)
	assert.Contains(t, string(received.System), "be brief")
}

func TestNewFromConfig(t *testing.T) {
	client, err := NewFromConfig(&Config{}, GuardedConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, client, "empty provider disables the LLM")

	_, err = NewFromConfig(&Config{Provider: "cohere"}, GuardedConfig{}, zap.NewNop())
	assert.ErrorContains(t, err, "unknown llm provider")

	client, err = NewFromConfig(&Config{Provider: "groq", Endpoint: "http://localhost:1/v1", Model: "m"}, GuardedConfig{}, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &GuardedClient{}, client)
	assert.Equal(t, "m", client.GetModel())
}
