package orchestrator

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

const scaffoldSystemPrompt = `You are a senior engineer writing an end-to-end test suite for a generated application.
The API contract is at ` + testrun.SpecPath + ` in the workspace. Write a test file that exercises every operation it declares.
Name each route test exactly "METHOD path" (for example "GET /api/v1/users") so failures can be traced to the owning component.
Use the stack's conventional test runner. Write the suite with fs_write, then reply with the command to run it.`

// AgentScaffolder materializes the API contract and has a bounded
// agent loop write the end-to-end suite against it.
type AgentScaffolder struct {
	ws   *tools.Workspace
	loop *agent.Loop
}

// NewAgentScaffolder creates the agent-backed scaffolder.
func NewAgentScaffolder(ws *tools.Workspace, r *router.Router, registry *tools.Registry, maxIterations, maxTokens int, logger *log.Logger) *AgentScaffolder {
	loop := agent.NewLoop(r, registry, agent.LoopConfig{
		Phase:         router.PhaseTesting,
		ReadOnly:      false,
		MaxIterations: maxIterations,
		MaxTokens:     maxTokens,
		Temperature:   0,
	}, logger)
	return &AgentScaffolder{ws: ws, loop: loop}
}

// Scaffold writes the OpenAPI contract and the e2e test file.
func (s *AgentScaffolder) Scaffold(ctx context.Context, p *plan.ApplicationPlan) error {
	if err := testrun.WriteOpenAPISpec(s.ws, p); err != nil {
		return err
	}

	var prompt strings.Builder
	prompt.WriteString("Write the end-to-end suite for this application.\n")
	if p.Stack.Backend != "" {
		fmt.Fprintf(&prompt, "Backend stack: %s\n", p.Stack.Backend)
	}
	prompt.WriteString("Declared routes:\n")
	for _, rc := range testrun.BuildRouteCases(p) {
		fmt.Fprintf(&prompt, "- %s (implemented by %s)\n", rc.Name, rc.NodeID)
	}

	_, err := s.loop.Run(ctx, "e2e", scaffoldSystemPrompt, prompt.String())
	if err != nil {
		return fmt.Errorf("test scaffolding failed: %w", err)
	}
	return nil
}

var _ TestScaffolder = (*AgentScaffolder)(nil)
