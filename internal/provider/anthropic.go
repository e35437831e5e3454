package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/appforge/appforge/internal/errors"
)

const (
	anthropicDefaultBaseURL = "https://api.anthropic.com/v1"
	anthropicDefaultModel   = "claude-sonnet-4-20250514"
	anthropicAPIVersion     = "2023-06-01"
)

// AnthropicClient implements Client for the Anthropic Messages API.
type AnthropicClient struct {
	config     *Config
	httpClient *http.Client
	baseURL    string
	model      string
}

// NewAnthropicClient creates a new Anthropic API client.
func NewAnthropicClient(config *Config) (*AnthropicClient, error) {
	if config.APIKey == "" {
		return nil, errors.New(errors.ErrCodeProviderConfig, "anthropic API key is required").
			WithSuggestion("Set ANTHROPIC_API_KEY or providers.anthropic.api_key in config")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = anthropicDefaultBaseURL
	}

	model := config.Model
	if model == "" {
		model = anthropicDefaultModel
	}

	return &AnthropicClient{
		config: config,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		baseURL: baseURL,
		model:   model,
	}, nil
}

// anthropicContentBlock is one block of message content. Text blocks
// carry Text; tool_use blocks carry ID/Name/Input; tool_result blocks
// carry ToolUseID/Content.
type anthropicContentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
	IsError   bool            `json:"is_error,omitempty"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Temperature float64            `json:"temperature,omitempty"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
}

type anthropicResponse struct {
	ID         string                  `json:"id"`
	Model      string                  `json:"model"`
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

type anthropicErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate sends a conversation to the Messages API and maps the
// response blocks back onto a GenerateResponse.
func (c *AnthropicClient) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	start := time.Now()

	apiReq, err := c.buildRequest(req)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.config.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeProviderAPI, "anthropic request failed", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, c.apiError(resp, respBody)
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	out := &GenerateResponse{
		Model:      apiResp.Model,
		Provider:   "anthropic",
		TokensUsed: apiResp.Usage.InputTokens + apiResp.Usage.OutputTokens,
		Latency:    time.Since(start),
	}

	for _, block := range apiResp.Content {
		switch block.Type {
		case "text":
			out.Content += block.Text
		case "tool_use":
			out.ToolCalls = append(out.ToolCalls, ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: []byte(block.Input),
			})
		}
	}

	switch apiResp.StopReason {
	case "tool_use":
		out.FinishReason = FinishToolUse
	case "max_tokens":
		out.FinishReason = FinishMaxTokens
	default:
		out.FinishReason = FinishEndTurn
	}

	return out, nil
}

func (c *AnthropicClient) buildRequest(req *GenerateRequest) (*anthropicRequest, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 8192
	}

	apiReq := &anthropicRequest{
		Model:       model,
		MaxTokens:   maxTokens,
		System:      req.SystemPrompt,
		Temperature: req.Temperature,
	}

	for _, t := range req.Tools {
		apiReq.Tools = append(apiReq.Tools, anthropicTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		})
	}

	for _, m := range req.Messages {
		switch m.Role {
		case RoleUser:
			apiReq.Messages = append(apiReq.Messages, anthropicMessage{
				Role:    "user",
				Content: []anthropicContentBlock{{Type: "text", Text: m.Content}},
			})

		case RoleAssistant:
			blocks := []anthropicContentBlock{}
			if m.Content != "" {
				blocks = append(blocks, anthropicContentBlock{Type: "text", Text: m.Content})
			}
			for _, tc := range m.ToolCalls {
				input := tc.Arguments
				if len(input) == 0 {
					input = []byte("{}")
				}
				blocks = append(blocks, anthropicContentBlock{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Name,
					Input: json.RawMessage(input),
				})
			}
			apiReq.Messages = append(apiReq.Messages, anthropicMessage{Role: "assistant", Content: blocks})

		case RoleTool:
			// Tool results ride on user turns in the Messages API.
			apiReq.Messages = append(apiReq.Messages, anthropicMessage{
				Role: "user",
				Content: []anthropicContentBlock{{
					Type:      "tool_result",
					ToolUseID: m.ToolCallID,
					Content:   m.Content,
					IsError:   m.IsError,
				}},
			})

		case RoleSystem:
			return nil, fmt.Errorf("system messages must use SystemPrompt, not the message list")

		default:
			return nil, fmt.Errorf("unknown message role: %s", m.Role)
		}
	}

	if len(apiReq.Messages) == 0 {
		return nil, fmt.Errorf("at least one message is required")
	}

	return apiReq, nil
}

func (c *AnthropicClient) apiError(resp *http.Response, body []byte) error {
	var apiErr anthropicErrorResponse
	msg := string(body)
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		msg = apiErr.Error.Message
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.NewProviderAuthError("anthropic")
	case http.StatusTooManyRequests:
		return errors.NewProviderRateLimitError("anthropic", resp.Header.Get("Retry-After"))
	default:
		return errors.New(errors.ErrCodeProviderAPI,
			fmt.Sprintf("anthropic API error (status %d): %s", resp.StatusCode, msg))
	}
}

// Info returns metadata about the Anthropic provider.
func (c *AnthropicClient) Info() *Info {
	return &Info{
		Name:        "anthropic",
		Model:       c.model,
		Description: "Anthropic Claude models via the Messages API",
	}
}

// Health checks connectivity with a minimal generation request.
func (c *AnthropicClient) Health(ctx context.Context) error {
	_, err := c.Generate(ctx, &GenerateRequest{
		Messages:  []Message{{Role: RoleUser, Content: "ping"}},
		MaxTokens: 1,
	})
	if err != nil {
		return fmt.Errorf("anthropic health check failed: %w", err)
	}
	return nil
}

// Close cleans up resources. HTTP clients need no explicit cleanup.
func (c *AnthropicClient) Close() error {
	return nil
}

var _ Client = (*AnthropicClient)(nil)
