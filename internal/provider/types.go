package provider

import (
	"time"
)

// Role identifies who produced a message in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one turn of a conversation with a model. Tool results are
// carried as RoleTool messages with ToolCallID linking back to the call
// they answer.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`

	// ToolCalls is populated on assistant messages that requested tools.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a RoleTool message to the call it responds to.
	ToolCallID string `json:"tool_call_id,omitempty"`

	// IsError marks a tool-result message that carries a failure
	// observation rather than a successful result.
	IsError bool `json:"is_error,omitempty"`
}

// Tool describes a callable tool exposed to the model.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`

	// InputSchema is a JSON Schema object describing the tool's arguments.
	InputSchema map[string]any `json:"input_schema"`
}

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	// ID is the provider-assigned call identifier, echoed back on the
	// corresponding tool-result message.
	ID string `json:"id"`

	Name string `json:"name"`

	// Arguments is the raw JSON object the model supplied.
	Arguments []byte `json:"arguments"`
}

// GenerateRequest is a request to generate the model's next turn.
type GenerateRequest struct {
	// SystemPrompt sets the behavior and constraints for the model.
	SystemPrompt string `json:"system_prompt,omitempty"`

	// Messages is the conversation so far, oldest first.
	Messages []Message `json:"messages"`

	// Tools the model may call this turn. Empty means text-only.
	Tools []Tool `json:"tools,omitempty"`

	// MaxTokens caps the length of the generated turn.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls randomness (0.0 to 1.0).
	Temperature float64 `json:"temperature,omitempty"`

	// Model overrides the provider's default model when set.
	Model string `json:"model,omitempty"`
}

// FinishReason explains why the model stopped generating.
type FinishReason string

const (
	// FinishEndTurn means the model produced a complete text answer.
	FinishEndTurn FinishReason = "end_turn"

	// FinishToolUse means the model stopped to request tool calls.
	FinishToolUse FinishReason = "tool_use"

	// FinishMaxTokens means the turn was truncated at the token cap.
	FinishMaxTokens FinishReason = "max_tokens"
)

// GenerateResponse is the model's next turn.
type GenerateResponse struct {
	// Content is the text portion of the turn. May be empty when the
	// model only requested tools.
	Content string `json:"content"`

	// ToolCalls the model requested, in the order it emitted them.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	FinishReason FinishReason `json:"finish_reason"`

	// TokensUsed is total tokens consumed (prompt + completion).
	TokensUsed int `json:"tokens_used"`

	// Model is the exact model that produced the turn.
	Model string `json:"model"`

	// Provider that generated this response.
	Provider string `json:"provider"`

	// Latency is wall-clock time for the provider call.
	Latency time.Duration `json:"latency"`
}

// WantsTools reports whether the turn ended with tool calls to execute.
func (r *GenerateResponse) WantsTools() bool {
	return len(r.ToolCalls) > 0
}
