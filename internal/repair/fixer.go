package repair

import (
	"context"
	"fmt"
	"strings"

	"github.com/appforge/appforge/internal/agent"
	"github.com/appforge/appforge/internal/log"
	"github.com/appforge/appforge/internal/plan"
	"github.com/appforge/appforge/internal/router"
	"github.com/appforge/appforge/internal/testrun"
	"github.com/appforge/appforge/internal/tools"
)

const repairSystemPrompt = `You are a senior engineer fixing failing end-to-end tests in a generated application.
Use the tools to read the failing code and tests, diagnose the failures, and write fixes with fs_write.
Only change files belonging to the nodes in scope. Do not weaken or delete tests.
When the fixes are written, reply with a short summary of the root causes and what you changed.`

// AgentFixer applies repair attempts through a bounded observe-act
// loop with the full tool surface.
type AgentFixer struct {
	loop *agent.Loop
}

// NewAgentFixer creates the agent-backed fixer.
func NewAgentFixer(r *router.Router, registry *tools.Registry, maxIterations, maxTokens int, logger *log.Logger) *AgentFixer {
	loop := agent.NewLoop(r, registry, agent.LoopConfig{
		Phase:         router.PhaseRepair,
		ReadOnly:      false,
		MaxIterations: maxIterations,
		MaxTokens:     maxTokens,
		Temperature:   0,
	}, logger)
	return &AgentFixer{loop: loop}
}

// Repair runs one attempt over the scoped nodes.
func (f *AgentFixer) Repair(ctx context.Context, p *plan.ApplicationPlan, scope []string, run *testrun.Run) error {
	var prompt strings.Builder
	prompt.WriteString("The end-to-end suite is failing.\n\nFailing tests:\n")
	for _, c := range run.Cases {
		if c.Passed {
			continue
		}
		fmt.Fprintf(&prompt, "- %s", c.Name)
		if c.Detail != "" {
			fmt.Fprintf(&prompt, ": %s", c.Detail)
		}
		prompt.WriteString("\n")
	}

	prompt.WriteString("\nNodes in scope:\n")
	for _, id := range scope {
		node, ok := p.Node(id)
		if !ok {
			continue
		}
		fmt.Fprintf(&prompt, "- %s (%s): %s\n", node.ID, node.Path, node.Behavior)
	}

	if tailOut := tailLines(run.Output, 40); tailOut != "" {
		prompt.WriteString("\nTest runner output (tail):\n")
		prompt.WriteString(tailOut)
		prompt.WriteString("\n")
	}

	_, err := f.loop.Run(ctx, strings.Join(scope, ","), repairSystemPrompt, prompt.String())
	if err != nil {
		return fmt.Errorf("repair attempt failed: %w", err)
	}
	return nil
}

func tailLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

var _ Fixer = (*AgentFixer)(nil)
