package producer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAnthropicClient(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name: "valid config",
			config: Config{
				APIKey: "test-key",
			},
			wantErr: false,
		},
		{
			name: "missing API key",
			config: Config{
				APIKey: "",
			},
			wantErr: true,
		},
		{
			name: "custom model and settings",
			config: Config{
				APIKey:      "test-key",
				Model:       "claude-3-opus-20240229",
				Temperature: 0.5,
				MaxTokens:   800,
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := newAnthropicClient(tt.config)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, client)
			}
		})
	}
}

// anthropicContent wraps text in the messages-API response envelope.
func anthropicContent(t *testing.T, text string) []byte {
	t.Helper()
	payload := map[string]any{
		"id":   "msg_test",
		"type": "message",
		"role": "assistant",
		"content": []map[string]string{
			{"type": "text", "text": text},
		},
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return body
}

func newTestAnthropicClient(t *testing.T, handler http.HandlerFunc) (*anthropicClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := newAnthropicClient(Config{APIKey: "test-key"})
	require.NoError(t, err)

	ac, ok := client.(*anthropicClient)
	require.True(t, ok)
	ac.baseURL = server.URL
	return ac, server
}

func TestAnthropicClient_ProposeRule(t *testing.T) {
	client, _ := newTestAnthropicClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req["system"])

		_, _ = w.Write(anthropicContent(t, "```json\n{\"pattern\": \"^ACME\\\\s+COFFEE\", \"category_ids\": [10], \"confidence\": 0.9}\n```"))
	})

	resp, err := client.ProposeRule(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, `^ACME\s+COFFEE`, resp.Pattern)
	assert.Equal(t, []int64{10}, resp.CategoryIDs)
	assert.InDelta(t, 0.9, resp.Confidence, 1e-9)
}

func TestAnthropicClient_ProposeRuleAPIError(t *testing.T) {
	client, _ := newTestAnthropicClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"type": "rate_limit_error"}}`))
	})

	_, err := client.ProposeRule(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestAnthropicClient_ProposeRuleEmptyContent(t *testing.T) {
	client, _ := newTestAnthropicClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id": "msg_test", "content": []}`))
	})

	_, err := client.ProposeRule(context.Background(), "prompt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no content")
}

func TestAnthropicClient_InterpretFeedback(t *testing.T) {
	client, _ := newTestAnthropicClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(anthropicContent(t, `{"issue_category": "category-mismatch", "summary": "wrong sector", "confidence": 0.8}`))
	})

	resp, err := client.InterpretFeedback(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "category-mismatch", resp.IssueCategory)
	assert.Equal(t, "wrong sector", resp.Summary)
}
