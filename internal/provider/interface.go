package provider

import (
	"context"
)

// Client is the generative capability boundary. The orchestrator treats
// a provider as a pure function of the conversation it supplies: given
// messages and tool definitions, the model answers with either tool
// calls or a final text answer. Providers own no conversation state.
type Client interface {
	// Generate sends a conversation and returns the model's next turn.
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)

	// Info returns metadata about the provider
	Info() *Info

	// Health performs a connectivity check on the provider.
	// Returns nil if healthy, error describing the problem otherwise.
	Health(ctx context.Context) error

	// Close cleans up any resources used by the provider
	Close() error
}

// Info contains metadata about a provider
type Info struct {
	// Name is the provider identifier (e.g., "anthropic", "openai")
	Name string

	// Model is the default model this provider targets
	Model string

	// Description is a human-readable description of the provider
	Description string
}
