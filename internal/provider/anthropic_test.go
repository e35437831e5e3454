package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge/appforge/internal/errors"
)

func TestNewAnthropicClientRequiresAPIKey(t *testing.T) {
	_, err := NewAnthropicClient(&Config{Name: "anthropic"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeProviderConfig))
}

func TestAnthropicGenerateText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicAPIVersion, r.Header.Get("anthropic-version"))

		var req anthropicRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "build it", req.Messages[0].Content[0].Text)

		json.NewEncoder(w).Encode(map[string]any{
			"id":    "msg_01",
			"model": "claude-sonnet-4-20250514",
			"content": []map[string]any{
				{"type": "text", "text": "done"},
			},
			"stop_reason": "end_turn",
			"usage":       map[string]int{"input_tokens": 10, "output_tokens": 5},
		})
	}))
	defer server.Close()

	client, err := NewAnthropicClient(&Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	resp, err := client.Generate(context.Background(), &GenerateRequest{
		Messages: []Message{{Role: RoleUser, Content: "build it"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "done", resp.Content)
	assert.Equal(t, FinishEndTurn, resp.FinishReason)
	assert.False(t, resp.WantsTools())
	assert.Equal(t, 15, resp.TokensUsed)
	assert.Equal(t, "anthropic", resp.Provider)
}

func TestAnthropicGenerateToolUse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"model": "claude-sonnet-4-20250514",
			"content": []map[string]any{
				{"type": "text", "text": "reading the handler first"},
				{"type": "tool_use", "id": "toolu_01", "name": "fs_read", "input": map[string]string{"path": "api/users.go"}},
			},
			"stop_reason": "tool_use",
			"usage":       map[string]int{"input_tokens": 20, "output_tokens": 8},
		})
	}))
	defer server.Close()

	client, err := NewAnthropicClient(&Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	resp, err := client.Generate(context.Background(), &GenerateRequest{
		Messages: []Message{{Role: RoleUser, Content: "go"}},
		Tools: []Tool{{
			Name:        "fs_read",
			Description: "Read a file",
			InputSchema: map[string]any{"type": "object"},
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, FinishToolUse, resp.FinishReason)
	require.True(t, resp.WantsTools())
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "toolu_01", resp.ToolCalls[0].ID)
	assert.Equal(t, "fs_read", resp.ToolCalls[0].Name)
	assert.JSONEq(t, `{"path":"api/users.go"}`, string(resp.ToolCalls[0].Arguments))
}

func TestAnthropicToolResultRoundTrip(t *testing.T) {
	var captured anthropicRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(map[string]any{
			"model":       "claude-sonnet-4-20250514",
			"content":     []map[string]any{{"type": "text", "text": "ok"}},
			"stop_reason": "end_turn",
			"usage":       map[string]int{"input_tokens": 1, "output_tokens": 1},
		})
	}))
	defer server.Close()

	client, err := NewAnthropicClient(&Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), &GenerateRequest{
		Messages: []Message{
			{Role: RoleUser, Content: "go"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "toolu_01", Name: "fs_read", Arguments: []byte(`{"path":"x"}`)}}},
			{Role: RoleTool, ToolCallID: "toolu_01", Content: "file contents", IsError: false},
		},
	})
	require.NoError(t, err)

	// The tool result must ride a user turn pointing at the call ID.
	require.Len(t, captured.Messages, 3)
	result := captured.Messages[2]
	assert.Equal(t, "user", result.Role)
	require.Len(t, result.Content, 1)
	assert.Equal(t, "tool_result", result.Content[0].Type)
	assert.Equal(t, "toolu_01", result.Content[0].ToolUseID)
	assert.Equal(t, "file contents", result.Content[0].Content)
}

func TestAnthropicAPIErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantCode errors.ErrorCode
	}{
		{"unauthorized", http.StatusUnauthorized, errors.ErrCodeProviderAuth},
		{"rate limited", http.StatusTooManyRequests, errors.ErrCodeProviderRateLimit},
		{"server error", http.StatusInternalServerError, errors.ErrCodeProviderAPI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(map[string]any{
					"error": map[string]string{"type": "api_error", "message": "nope"},
				})
			}))
			defer server.Close()

			client, err := NewAnthropicClient(&Config{APIKey: "test-key", BaseURL: server.URL})
			require.NoError(t, err)

			_, err = client.Generate(context.Background(), &GenerateRequest{
				Messages: []Message{{Role: RoleUser, Content: "go"}},
			})
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.wantCode))
		})
	}
}
