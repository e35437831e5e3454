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

// ContextBundle is the survey a context agent produces for one batch.
// It is ephemeral: built immediately before generation, discarded after.
type ContextBundle struct {
	NodeIDs []string

	// Brief is the model's context summary. Empty when the loop
	// exhausted its iterations; generation then proceeds without it.
	Brief string

	Iterations int
	Exhausted  bool
}

// ContextAgent surveys the workspace before each batch is generated.
// It only ever sees read-only tools, including the usage-index and
// plan lookups.
type ContextAgent struct {
	loop *Loop
}

// NewContextAgent creates a context agent with a read-only tool surface.
func NewContextAgent(r *router.Router, registry *tools.Registry, maxIterations, maxTokens int, logger *log.Logger) *ContextAgent {
	loop := NewLoop(r, registry, LoopConfig{
		Phase:         router.PhaseContext,
		ReadOnly:      true,
		MaxIterations: maxIterations,
		MaxTokens:     maxTokens,
		Temperature:   0,
	}, logger)
	return &ContextAgent{loop: loop}
}

// Gather runs the survey loop for one batch of nodes.
func (a *ContextAgent) Gather(ctx context.Context, p *plan.ApplicationPlan, nodes []*plan.PlanNode) (*ContextBundle, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("batch has no nodes")
	}

	var prompt strings.Builder
	prompt.WriteString("Survey the codebase for the following batch of target nodes.\n")
	if s := stackBrief(p); s != "" {
		prompt.WriteString(s + "\n")
	}
	ids := make([]string, 0, len(nodes))
	for _, node := range nodes {
		ids = append(ids, node.ID)
		prompt.WriteString("\n")
		prompt.WriteString(nodeBrief(node))
	}

	outcome, err := a.loop.Run(ctx, strings.Join(ids, ","), contextSystemPrompt, prompt.String())
	if err != nil {
		return nil, fmt.Errorf("context survey failed: %w", err)
	}

	return &ContextBundle{
		NodeIDs:    ids,
		Brief:      outcome.Final,
		Iterations: outcome.Iterations,
		Exhausted:  outcome.Exhausted,
	}, nil
}
