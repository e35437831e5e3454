package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/appforge/appforge/internal/errors"
	"github.com/appforge/appforge/internal/plan"
	"github.com/appforge/appforge/internal/usage"
)

// PlanNodeTool exposes one plan node's declaration to the model.
type PlanNodeTool struct {
	Store *plan.Store
}

func (t *PlanNodeTool) Name() string        { return "plan_node" }
func (t *PlanNodeTool) Description() string { return "Look up a plan node by ID" }
func (t *PlanNodeTool) ReadOnly() bool      { return true }

func (t *PlanNodeTool) InputSchema() map[string]any {
	return objectSchema(map[string]any{
		"node_id": map[string]any{"type": "string"},
	}, "node_id")
}

func (t *PlanNodeTool) Invoke(_ context.Context, args []byte) (string, error) {
	var in struct {
		NodeID string `json:"node_id"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}

	p := t.Store.Current()
	node, ok := p.Node(in.NodeID)
	if !ok {
		return "", errors.New(errors.ErrCodePlanNodeMissing,
			fmt.Sprintf("plan node not found: %s", in.NodeID))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "id: %s\npath: %s\nkind: %s\nstatus: %s\n", node.ID, node.Path, node.Kind, node.Status)
	fmt.Fprintf(&b, "behavior: %s\n", node.Behavior)
	if len(node.DependsOn) > 0 {
		fmt.Fprintf(&b, "depends_on: %s\n", strings.Join(node.DependsOn, ", "))
	}
	if len(node.Uses) > 0 {
		fmt.Fprintf(&b, "uses: %s\n", strings.Join(node.Uses, ", "))
	}
	for _, r := range node.Routes {
		fmt.Fprintf(&b, "route: %s %s\n", r.Method, r.Path)
	}
	return b.String(), nil
}

// ComponentsUsedByTool answers "which components does this page use"
// from the usage index snapshot.
type ComponentsUsedByTool struct {
	Index *usage.Index
}

func (t *ComponentsUsedByTool) Name() string { return "components_used_by" }
func (t *ComponentsUsedByTool) Description() string {
	return "List the component nodes a page node uses"
}
func (t *ComponentsUsedByTool) ReadOnly() bool { return true }

func (t *ComponentsUsedByTool) InputSchema() map[string]any {
	return objectSchema(map[string]any{
		"page_id": map[string]any{"type": "string"},
	}, "page_id")
}

func (t *ComponentsUsedByTool) Invoke(_ context.Context, args []byte) (string, error) {
	var in struct {
		PageID string `json:"page_id"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	ids := t.Index.ComponentsUsedBy(in.PageID)
	if len(ids) == 0 {
		return "none", nil
	}
	return strings.Join(ids, "\n"), nil
}

// PagesUsingTool answers "which pages use this component".
type PagesUsingTool struct {
	Index *usage.Index
}

func (t *PagesUsingTool) Name() string { return "pages_using" }
func (t *PagesUsingTool) Description() string {
	return "List the page nodes that use a component node"
}
func (t *PagesUsingTool) ReadOnly() bool { return true }

func (t *PagesUsingTool) InputSchema() map[string]any {
	return objectSchema(map[string]any{
		"component_id": map[string]any{"type": "string"},
	}, "component_id")
}

func (t *PagesUsingTool) Invoke(_ context.Context, args []byte) (string, error) {
	var in struct {
		ComponentID string `json:"component_id"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	ids := t.Index.PagesUsing(in.ComponentID)
	if len(ids) == 0 {
		return "none", nil
	}
	return strings.Join(ids, "\n"), nil
}
