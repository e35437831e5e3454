// Package agent implements the bounded observe-act loops that drive
// generation. An agent alternates model turns with tool dispatch until
// the model produces a final answer or the iteration cap is hit. Tool
// failures never abort a loop; they are returned to the model as error
// observations so it can adjust.
package agent

import (
	"context"
	"fmt"

	"github.com/appforge/appforge/internal/log"
	"github.com/appforge/appforge/internal/provider"
	"github.com/appforge/appforge/internal/router"
	"github.com/appforge/appforge/internal/tools"
)

// LoopConfig bounds and parameterizes one agent loop.
type LoopConfig struct {
	// Phase selects the model via the router.
	Phase router.Phase

	// ReadOnly restricts the tool surface to non-mutating tools.
	ReadOnly bool

	// MaxIterations caps the number of model turns.
	MaxIterations int

	MaxTokens   int
	Temperature float64
}

// Loop is one configured observe-act loop.
type Loop struct {
	router   *router.Router
	registry *tools.Registry
	config   LoopConfig
	logger   *log.Logger
}

// NewLoop creates a loop over the given router and tool registry.
func NewLoop(r *router.Router, registry *tools.Registry, config LoopConfig, logger *log.Logger) *Loop {
	if config.MaxIterations < 1 {
		config.MaxIterations = 1
	}
	return &Loop{router: r, registry: registry, config: config, logger: logger}
}

// Outcome is the result of a completed loop.
type Outcome struct {
	// Final is the model's closing text answer. Empty when the loop
	// exhausted its iteration cap before the model finished.
	Final string

	// Iterations is the number of model turns consumed.
	Iterations int

	// Exhausted reports that the iteration cap ended the loop.
	Exhausted bool

	// ToolCalls counts tool invocations across the whole loop.
	ToolCalls int
}

// Run drives the loop to completion. nodeID is used for usage
// accounting and logging only.
func (l *Loop) Run(ctx context.Context, nodeID, systemPrompt, userPrompt string) (*Outcome, error) {
	defs := l.registry.Definitions(l.config.ReadOnly)
	messages := []provider.Message{{Role: provider.RoleUser, Content: userPrompt}}
	outcome := &Outcome{}

	for iter := 0; iter < l.config.MaxIterations; iter++ {
		outcome.Iterations = iter + 1

		sel, err := l.router.Select(l.config.Phase)
		if err != nil {
			return nil, err
		}

		resp, err := sel.Client.Generate(ctx, &provider.GenerateRequest{
			SystemPrompt: systemPrompt,
			Messages:     messages,
			Tools:        defs,
			MaxTokens:    l.config.MaxTokens,
			Temperature:  l.config.Temperature,
			Model:        sel.Model,
		})
		if err != nil {
			return nil, err
		}
		l.router.Record(sel, l.config.Phase, nodeID, resp.TokensUsed, resp.Latency)

		if !resp.WantsTools() {
			outcome.Final = resp.Content
			return outcome, nil
		}

		messages = append(messages, provider.Message{
			Role:      provider.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		results, err := l.registry.Dispatch(ctx, resp.ToolCalls)
		if err != nil {
			return nil, err
		}
		outcome.ToolCalls += len(results)

		for _, res := range results {
			msg := provider.Message{
				Role:       provider.RoleTool,
				ToolCallID: res.CallID,
				Content:    res.Output,
			}
			if res.Err != nil {
				msg.Content = fmt.Sprintf("tool error: %v", res.Err)
				msg.IsError = true
				l.logger.Warn("tool call failed",
					"node_id", nodeID,
					"tool", res.Name,
					"error", res.Err)
			}
			messages = append(messages, msg)
		}
	}

	l.logger.Warn("agent loop exhausted iteration cap",
		"node_id", nodeID,
		"phase", string(l.config.Phase),
		"iterations", outcome.Iterations)
	outcome.Exhausted = true
	return outcome, nil
}
