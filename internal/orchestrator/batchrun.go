package orchestrator

import (
	"context"
	"fmt"

	"github.com/appforge/appforge/internal/agent"
	"github.com/appforge/appforge/internal/batch"
	"github.com/appforge/appforge/internal/checkpoint"
	"github.com/appforge/appforge/internal/errors"
	"github.com/appforge/appforge/internal/plan"
	"github.com/appforge/appforge/internal/repair"
	"github.com/appforge/appforge/internal/testrun"
)

// maxConflictRestarts bounds how often one batch restarts because of
// concurrent plan edits before the run gives up with ConflictError.
const maxConflictRestarts = 3

// runBatch generates one batch, handling mid-run plan edits and the
// single incompleteness retry. It returns the plan snapshot the batch
// was committed against.
func (o *Orchestrator) runBatch(ctx context.Context, state *checkpoint.State, p *plan.ApplicationPlan, b batch.Batch) (*plan.ApplicationPlan, error) {
	restarts := 0

	for {
		versionAtStart := o.store.Version()
		if p.Version != versionAtStart {
			p = o.store.Current()
		}

		nodes, err := resolveNodes(p, b.NodeIDs)
		if err != nil {
			return nil, err
		}

		o.logger.Info("generating batch",
			"batch", b.Index,
			"nodes", b.NodeIDs,
			"plan_version", p.Version)

		pending, err := o.generateOnce(ctx, p, nodes, "")
		if err != nil {
			return nil, err
		}

		// One retry when files are missing, with the gap spelled out.
		if len(pending) > 0 {
			o.logger.Warn("batch incomplete, retrying once",
				"batch", b.Index,
				"pending", pending)
			retryNote := fmt.Sprintf(
				"A previous pass left these files unwritten: %v. Write every missing file.", pending)
			pending, err = o.generateOnce(ctx, p, nodes, retryNote)
			if err != nil {
				return nil, err
			}
			if len(pending) > 0 {
				return nil, errors.NewBatchIncompleteError(b.Index, pending)
			}
		}

		// Concurrent plan edits invalidate the batch only when they
		// touch its own nodes; edits elsewhere proceed unaffected.
		if cur := o.store.Version(); cur != versionAtStart {
			latest := o.store.Current()
			changed := plan.ChangedNodes(p, latest)
			if intersects(changed, b.NodeIDs) {
				restarts++
				if restarts > maxConflictRestarts {
					return nil, errors.NewPlanConflictError(versionAtStart, cur)
				}
				o.logger.Warn("plan changed under in-flight batch, restarting it",
					"batch", b.Index,
					"changed", changed,
					"restart", restarts)
				p = latest
				continue
			}
			p = latest
		}

		for _, id := range b.NodeIDs {
			if err := o.store.UpdateStatus(id, plan.StatusGenerated); err != nil {
				return nil, err
			}
			state.NodeStatus[id] = plan.StatusGenerated
		}
		state.BatchCompleted(b.Index, b.NodeIDs, restarts > 0)
		return p, nil
	}
}

// generateOnce runs one gather+generate pass and reports which node
// files are still missing afterwards.
func (o *Orchestrator) generateOnce(ctx context.Context, p *plan.ApplicationPlan, nodes []*plan.PlanNode, note string) ([]string, error) {
	bundle, err := o.gatherer.Gather(ctx, p, nodes)
	if err != nil {
		return nil, err
	}
	if note != "" {
		if bundle == nil {
			bundle = &agent.ContextBundle{}
		}
		bundle.Brief = note + "\n" + bundle.Brief
	}

	if _, err := o.generator.Generate(ctx, p, nodes, bundle); err != nil {
		return nil, err
	}

	var pending []string
	for _, node := range nodes {
		if !o.ws.Exists(node.Path) {
			pending = append(pending, node.ID)
		}
	}
	return pending, nil
}

// runTestRepair scaffolds the end-to-end suite and drives the repair
// loop. Node statuses move to verified on success, failed otherwise.
func (o *Orchestrator) runTestRepair(ctx context.Context, state *checkpoint.State, p *plan.ApplicationPlan) (*repair.Result, error) {
	if state.RepairDone {
		o.logger.Info("test-repair already completed in previous run")
		return nil, nil
	}

	if err := o.scaffolder.Scaffold(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to scaffold end-to-end tests: %w", err)
	}

	result, err := o.repair.Run(ctx, p, p.NodeIDs())
	if result != nil {
		state.RepairAttempts = result.Attempts
	}
	if err != nil {
		o.markFailingNodes(state, p, result)
		return result, err
	}

	for _, id := range p.NodeIDs() {
		if updateErr := o.store.UpdateStatus(id, plan.StatusVerified); updateErr == nil {
			state.NodeStatus[id] = plan.StatusVerified
		}
	}
	state.RepairDone = true
	return result, nil
}

func (o *Orchestrator) markFailingNodes(state *checkpoint.State, p *plan.ApplicationPlan, result *repair.Result) {
	if result == nil || result.FinalRun == nil {
		return
	}
	idx := testrun.NewRouteIndex(p)
	ids, _ := idx.NodesFor(result.FinalRun, p)
	for _, id := range ids {
		if err := o.store.UpdateStatus(id, plan.StatusFailed); err == nil {
			state.NodeStatus[id] = plan.StatusFailed
		}
	}
}

func resolveNodes(p *plan.ApplicationPlan, ids []string) ([]*plan.PlanNode, error) {
	nodes := make([]*plan.PlanNode, 0, len(ids))
	for _, id := range ids {
		node, ok := p.Node(id)
		if !ok {
			return nil, errors.New(errors.ErrCodePlanNodeMissing,
				fmt.Sprintf("scheduled node %s no longer exists in plan version %d", id, p.Version)).
				WithSuggestion("Start a fresh run after structural plan edits")
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func intersects(a, b []string) bool {
	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[s] = true
	}
	for _, s := range b {
		if set[s] {
			return true
		}
	}
	return false
}
