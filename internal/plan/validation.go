package plan

import (
	"fmt"
	"strings"

	"github.com/appforge/appforge/internal/errors"
)

// Validate checks if a PlanNode is well formed
func (n *PlanNode) Validate() error {
	if strings.TrimSpace(n.ID) == "" {
		return fmt.Errorf("node ID cannot be empty")
	}

	if strings.TrimSpace(n.Path) == "" {
		return fmt.Errorf("node %s has no target path", n.ID)
	}

	switch n.Kind {
	case KindBackend, KindFrontend, KindDB, KindTest:
	default:
		return fmt.Errorf("node %s has unknown kind %q", n.ID, n.Kind)
	}

	if strings.TrimSpace(n.Behavior) == "" {
		return fmt.Errorf("node %s has no behavior description", n.ID)
	}

	for _, dep := range n.DependsOn {
		if dep == n.ID {
			return fmt.Errorf("node %s depends on itself", n.ID)
		}
	}

	return nil
}

// Validate checks the whole plan: node validity, unique IDs and paths,
// and dependency/usage references pointing at existing nodes. Cycle
// handling is deliberately not here; the dependency planner decides
// whether a cycle is a legal unsplittable unit.
func (p *ApplicationPlan) Validate() error {
	if len(p.Nodes) == 0 {
		return errors.New(errors.ErrCodePlanInvalid, "plan must have at least one node")
	}

	ids := make(map[string]bool, len(p.Nodes))
	paths := make(map[string]string, len(p.Nodes))
	for i, node := range p.Nodes {
		if err := node.Validate(); err != nil {
			return errors.Wrap(errors.ErrCodePlanInvalid,
				fmt.Sprintf("node at index %d is invalid", i), err)
		}

		if ids[node.ID] {
			return errors.New(errors.ErrCodePlanInvalid,
				fmt.Sprintf("duplicate node ID %q at index %d", node.ID, i))
		}
		ids[node.ID] = true

		if prev, taken := paths[node.Path]; taken {
			return errors.New(errors.ErrCodePlanInvalid,
				fmt.Sprintf("nodes %s and %s both target path %s", prev, node.ID, node.Path))
		}
		paths[node.Path] = node.ID
	}

	for _, node := range p.Nodes {
		for _, dep := range node.DependsOn {
			if !ids[dep] {
				return errors.New(errors.ErrCodePlanNodeMissing,
					fmt.Sprintf("node %s depends on unknown node %q", node.ID, dep))
			}
		}
		for _, used := range node.Uses {
			if !ids[used] {
				return errors.New(errors.ErrCodePlanNodeMissing,
					fmt.Sprintf("node %s uses unknown component %q", node.ID, used))
			}
		}
	}

	return nil
}
