// Package orchestrator runs a full generation: dependency ordering,
// batch scheduling, the per-batch context and generation loops, and
// the final test-repair pass. Batches run strictly one after another;
// progress is checkpointed after each batch so an interrupted run can
// resume without regenerating finished work.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/appforge/appforge/internal/agent"
	"github.com/appforge/appforge/internal/batch"
	"github.com/appforge/appforge/internal/checkpoint"
	"github.com/appforge/appforge/internal/depgraph"
	"github.com/appforge/appforge/internal/log"
	"github.com/appforge/appforge/internal/plan"
	"github.com/appforge/appforge/internal/repair"
	"github.com/appforge/appforge/internal/tools"
)

// ContextGatherer surveys the workspace for one batch.
type ContextGatherer interface {
	Gather(ctx context.Context, p *plan.ApplicationPlan, nodes []*plan.PlanNode) (*agent.ContextBundle, error)
}

// BatchGenerator implements one batch of nodes.
type BatchGenerator interface {
	Generate(ctx context.Context, p *plan.ApplicationPlan, nodes []*plan.PlanNode, bundle *agent.ContextBundle) (*agent.GenerationResult, error)
}

// TestScaffolder materializes the end-to-end test surface (API
// contract plus the test file exercising it) into the workspace.
type TestScaffolder interface {
	Scaffold(ctx context.Context, p *plan.ApplicationPlan) error
}

// RepairLoop runs the bounded test-repair loop.
type RepairLoop interface {
	Run(ctx context.Context, p *plan.ApplicationPlan, fullScope []string) (*repair.Result, error)
}

// Options wires an orchestrator.
type Options struct {
	Store      *plan.Store
	Workspace  *tools.Workspace
	Checkpoint *checkpoint.Manager
	Context    ContextGatherer
	Generator  BatchGenerator
	Scaffolder TestScaffolder
	Repair     RepairLoop
	BatchSize  int
	Logger     *log.Logger
}

// Orchestrator drives one generation run end to end.
type Orchestrator struct {
	store      *plan.Store
	ws         *tools.Workspace
	ckpt       *checkpoint.Manager
	gatherer   ContextGatherer
	generator  BatchGenerator
	scaffolder TestScaffolder
	repair     RepairLoop
	batchSize  int
	logger     *log.Logger
}

// New validates options and builds an orchestrator.
func New(opts Options) (*Orchestrator, error) {
	if opts.Store == nil || opts.Workspace == nil || opts.Checkpoint == nil {
		return nil, fmt.Errorf("store, workspace, and checkpoint manager are required")
	}
	if opts.Context == nil || opts.Generator == nil || opts.Scaffolder == nil || opts.Repair == nil {
		return nil, fmt.Errorf("context, generator, scaffolder, and repair components are required")
	}
	if opts.BatchSize < 1 {
		return nil, fmt.Errorf("batch size must be at least 1, got %d", opts.BatchSize)
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Orchestrator{
		store:      opts.Store,
		ws:         opts.Workspace,
		ckpt:       opts.Checkpoint,
		gatherer:   opts.Context,
		generator:  opts.Generator,
		scaffolder: opts.Scaffolder,
		repair:     opts.Repair,
		batchSize:  opts.BatchSize,
		logger:     opts.Logger,
	}, nil
}

// RunStatus is the terminal state of a run.
type RunStatus string

const (
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// RunResult summarizes one completed run.
type RunResult struct {
	Status           RunStatus
	RunID            string
	BatchesTotal     int
	BatchesCompleted int
	BatchesSkipped   int
	Repair           *repair.Result
	Duration         time.Duration
	Err              error
}

// Run executes the whole pipeline: order, schedule, generate batch by
// batch, then test and repair. resume loads the previous checkpoint
// and skips batches it already completed.
func (o *Orchestrator) Run(ctx context.Context, resume bool) (*RunResult, error) {
	start := time.Now()

	state, err := o.loadOrCreateState(resume)
	if err != nil {
		return nil, err
	}

	result := &RunResult{RunID: state.RunID}
	finish := func(status RunStatus, runErr error) (*RunResult, error) {
		result.Status = status
		result.Err = runErr
		result.Duration = time.Since(start)
		state.Status = checkpoint.StatusCompleted
		if runErr != nil {
			state.Status = checkpoint.StatusFailed
			state.Error = runErr.Error()
		}
		if saveErr := o.ckpt.Save(state); saveErr != nil {
			o.logger.Error("failed to save checkpoint", "error", saveErr)
		}
		return result, runErr
	}

	p := o.store.Current()
	batches, err := o.schedule(p)
	if err != nil {
		return finish(RunFailed, err)
	}
	result.BatchesTotal = len(batches)

	for _, b := range batches {
		if state.IsBatchCompleted(b.Index) {
			o.logger.Info("skipping completed batch", "batch", b.Index)
			result.BatchesSkipped++
			continue
		}

		p, err = o.runBatch(ctx, state, p, b)
		if err != nil {
			return finish(RunFailed, err)
		}
		result.BatchesCompleted++

		if err := o.ckpt.Save(state); err != nil {
			return finish(RunFailed, fmt.Errorf("failed to checkpoint batch %d: %w", b.Index, err))
		}
	}

	repairResult, err := o.runTestRepair(ctx, state, p)
	result.Repair = repairResult
	if err != nil {
		return finish(RunFailed, err)
	}

	return finish(RunSucceeded, nil)
}

// schedule computes the deterministic batch sequence for a plan.
func (o *Orchestrator) schedule(p *plan.ApplicationPlan) ([]batch.Batch, error) {
	order, err := depgraph.Compute(p, o.batchSize)
	if err != nil {
		return nil, err
	}
	return batch.Schedule(order, o.batchSize)
}

func (o *Orchestrator) loadOrCreateState(resume bool) (*checkpoint.State, error) {
	p := o.store.Current()
	hash := o.store.Hash()

	if resume && o.ckpt.Exists() {
		state, err := o.ckpt.Load()
		if err != nil {
			return nil, err
		}
		if state.PlanHash != hash {
			o.logger.Warn("plan changed since checkpoint, completed batches for changed nodes may regenerate",
				"checkpoint_version", state.PlanVersion,
				"plan_version", p.Version)
		}
		// Restore node progress into the store.
		for id, status := range state.NodeStatus {
			if err := o.store.UpdateStatus(id, status); err != nil {
				o.logger.Warn("stale node in checkpoint", "node_id", id)
			}
		}
		state.Status = checkpoint.StatusRunning
		return state, nil
	}

	return checkpoint.NewState(p, hash), nil
}
