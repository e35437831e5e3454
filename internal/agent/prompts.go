package agent

import (
	"fmt"
	"strings"

	"github.com/appforge/appforge/internal/plan"
)

const contextSystemPrompt = `You are a senior engineer surveying an application codebase before a change.
You have read-only tools. Use them to inspect the files relevant to the target nodes, then reply with a concise context brief:
- existing files and exported symbols the implementations must integrate with
- conventions already established in the codebase (naming, structure, error handling)
- anything that would break if the target nodes are implemented naively
Reply with the brief as plain text. Do not propose an implementation.`

const generationSystemPrompt = `You are a senior engineer implementing a batch of files for an application.
Use the tools to read anything you need and write each target file with fs_write. Write only the files the batch declares.
Each implementation must satisfy its node's declared behavior and routes exactly, and integrate with the components it uses.
When every file in the batch is written and consistent with its dependencies, reply with a one-paragraph summary of what you implemented.`

// nodeBrief renders one plan node for inclusion in a prompt.
func nodeBrief(node *plan.PlanNode) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Node %s\n", node.ID)
	fmt.Fprintf(&b, "File: %s\n", node.Path)
	fmt.Fprintf(&b, "Kind: %s\n", node.Kind)
	fmt.Fprintf(&b, "Behavior: %s\n", node.Behavior)
	if len(node.DependsOn) > 0 {
		fmt.Fprintf(&b, "Depends on: %s\n", strings.Join(node.DependsOn, ", "))
	}
	if len(node.Uses) > 0 {
		fmt.Fprintf(&b, "Uses components: %s\n", strings.Join(node.Uses, ", "))
	}
	for _, r := range node.Routes {
		fmt.Fprintf(&b, "Route: %s %s\n", r.Method, r.Path)
	}
	return b.String()
}

// stackBrief renders the plan's technology stack for prompts.
func stackBrief(p *plan.ApplicationPlan) string {
	var parts []string
	if p.Stack.Backend != "" {
		parts = append(parts, "backend: "+p.Stack.Backend)
	}
	if p.Stack.Frontend != "" {
		parts = append(parts, "frontend: "+p.Stack.Frontend)
	}
	if p.Stack.Database != "" {
		parts = append(parts, "database: "+p.Stack.Database)
	}
	if len(parts) == 0 {
		return ""
	}
	return "Stack: " + strings.Join(parts, ", ")
}
