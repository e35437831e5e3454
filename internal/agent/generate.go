package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/appforge/appforge/internal/log"
	"github.com/appforge/appforge/internal/plan"
	"github.com/appforge/appforge/internal/router"
	"github.com/appforge/appforge/internal/tools"
)

// GenerationResult is the outcome of generating one batch.
type GenerationResult struct {
	NodeIDs []string

	// Summary is the model's closing description of the work.
	Summary string

	Iterations int
	ToolCalls  int

	// Exhausted reports that the loop hit its iteration cap before
	// the model finished. Some files may still have been written; the
	// orchestrator verifies completeness on disk.
	Exhausted bool
}

// GenerationAgent implements one batch of plan nodes with the full
// tool surface.
type GenerationAgent struct {
	loop *Loop
}

// NewGenerationAgent creates a generation agent.
func NewGenerationAgent(r *router.Router, registry *tools.Registry, maxIterations, maxTokens int, temperature float64, logger *log.Logger) *GenerationAgent {
	loop := NewLoop(r, registry, LoopConfig{
		Phase:         router.PhaseGeneration,
		ReadOnly:      false,
		MaxIterations: maxIterations,
		MaxTokens:     maxTokens,
		Temperature:   temperature,
	}, logger)
	return &GenerationAgent{loop: loop}
}

// Generate implements one batch. The context bundle may be nil when
// the survey was skipped or exhausted.
func (a *GenerationAgent) Generate(ctx context.Context, p *plan.ApplicationPlan, nodes []*plan.PlanNode, bundle *ContextBundle) (*GenerationResult, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("batch has no nodes")
	}

	var prompt strings.Builder
	prompt.WriteString("Implement every node in the following batch. Each node is one file.\n")
	if s := stackBrief(p); s != "" {
		prompt.WriteString(s + "\n")
	}
	ids := make([]string, 0, len(nodes))
	for _, node := range nodes {
		ids = append(ids, node.ID)
		prompt.WriteString("\n")
		prompt.WriteString(nodeBrief(node))
	}
	if bundle != nil && bundle.Brief != "" {
		prompt.WriteString("\nContext brief from the codebase survey:\n")
		prompt.WriteString(bundle.Brief)
		prompt.WriteString("\n")
	}

	outcome, err := a.loop.Run(ctx, strings.Join(ids, ","), generationSystemPrompt, prompt.String())
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	return &GenerationResult{
		NodeIDs:    ids,
		Summary:    outcome.Final,
		Iterations: outcome.Iterations,
		ToolCalls:  outcome.ToolCalls,
		Exhausted:  outcome.Exhausted,
	}, nil
}
