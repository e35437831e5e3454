package orchestrator

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge/appforge/internal/agent"
	"github.com/appforge/appforge/internal/checkpoint"
	"github.com/appforge/appforge/internal/errors"
	"github.com/appforge/appforge/internal/log"
	"github.com/appforge/appforge/internal/plan"
	"github.com/appforge/appforge/internal/repair"
	"github.com/appforge/appforge/internal/testrun"
	"github.com/appforge/appforge/internal/tools"
)

func chainPlan() *plan.ApplicationPlan {
	return &plan.ApplicationPlan{
		Version: 1,
		Project: "demo",
		Nodes: []plan.PlanNode{
			{ID: "node-a", Path: "db/schema.sql", Kind: plan.KindDB, Behavior: "schema"},
			{ID: "node-b", Path: "api/users.go", Kind: plan.KindBackend, Behavior: "users",
				DependsOn: []string{"node-a"},
				Routes:    []plan.Route{{Method: "GET", Path: "/users"}}},
			{ID: "node-c", Path: "web/users.tsx", Kind: plan.KindFrontend, Behavior: "user page",
				DependsOn: []string{"node-b"}, Uses: []string{"node-b"}},
		},
	}
}

type fakeGatherer struct{ calls int }

func (f *fakeGatherer) Gather(_ context.Context, _ *plan.ApplicationPlan, nodes []*plan.PlanNode) (*agent.ContextBundle, error) {
	f.calls++
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return &agent.ContextBundle{NodeIDs: ids, Brief: "brief"}, nil
}

// fakeGenerator runs a per-call hook; by default it writes every node
// file like a well-behaved generation loop.
type fakeGenerator struct {
	ws    *tools.Workspace
	calls int
	hook  func(call int, nodes []*plan.PlanNode) error
}

func (f *fakeGenerator) Generate(_ context.Context, _ *plan.ApplicationPlan, nodes []*plan.PlanNode, _ *agent.ContextBundle) (*agent.GenerationResult, error) {
	f.calls++
	if f.hook != nil {
		if err := f.hook(f.calls, nodes); err != nil {
			return nil, err
		}
		return &agent.GenerationResult{}, nil
	}
	for _, n := range nodes {
		if err := f.ws.WriteFile(n.Path, "// "+n.ID); err != nil {
			return nil, err
		}
	}
	return &agent.GenerationResult{}, nil
}

type fakeScaffolder struct{ calls int }

func (f *fakeScaffolder) Scaffold(context.Context, *plan.ApplicationPlan) error {
	f.calls++
	return nil
}

type fakeRepair struct {
	result *repair.Result
	err    error
	scopes [][]string
}

func (f *fakeRepair) Run(_ context.Context, _ *plan.ApplicationPlan, fullScope []string) (*repair.Result, error) {
	f.scopes = append(f.scopes, fullScope)
	return f.result, f.err
}

type fixture struct {
	store  *plan.Store
	ws     *tools.Workspace
	ckpt   *checkpoint.Manager
	gather *fakeGatherer
	gen    *fakeGenerator
	scaf   *fakeScaffolder
	rep    *fakeRepair
	orch   *Orchestrator
}

func newFixture(t *testing.T, p *plan.ApplicationPlan, batchSize int) *fixture {
	t.Helper()

	store, err := plan.NewStore(p)
	require.NoError(t, err)

	ws, err := tools.NewWorkspace(t.TempDir(), 0)
	require.NoError(t, err)

	f := &fixture{
		store:  store,
		ws:     ws,
		ckpt:   checkpoint.NewManager(filepath.Join(t.TempDir(), "checkpoint.json")),
		gather: &fakeGatherer{},
		scaf:   &fakeScaffolder{},
		rep:    &fakeRepair{result: &repair.Result{Passed: true, FinalRun: &testrun.Run{Passed: true}}},
	}
	f.gen = &fakeGenerator{ws: ws}

	f.orch, err = New(Options{
		Store:      store,
		Workspace:  ws,
		Checkpoint: f.ckpt,
		Context:    f.gather,
		Generator:  f.gen,
		Scaffolder: f.scaf,
		Repair:     f.rep,
		BatchSize:  batchSize,
		Logger:     log.New(log.DevelopmentConfig()),
	})
	require.NoError(t, err)
	return f
}

func TestRunHappyPath(t *testing.T) {
	f := newFixture(t, chainPlan(), 2)

	result, err := f.orch.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, RunSucceeded, result.Status)
	// A→B→C with N=2 schedules as [a,b], [c].
	assert.Equal(t, 2, result.BatchesTotal)
	assert.Equal(t, 2, result.BatchesCompleted)
	assert.Equal(t, 2, f.gather.calls)
	assert.Equal(t, 2, f.gen.calls)
	assert.Equal(t, 1, f.scaf.calls)

	// Every node ends verified and the checkpoint is terminal.
	for _, n := range f.store.Current().Nodes {
		assert.Equal(t, plan.StatusVerified, n.Status, n.ID)
	}
	state, err := f.ckpt.Load()
	require.NoError(t, err)
	assert.Equal(t, checkpoint.StatusCompleted, state.Status)
	assert.True(t, state.RepairDone)
	assert.True(t, state.IsBatchCompleted(0))
	assert.True(t, state.IsBatchCompleted(1))
}

func TestRunBatchIncompleteRetriesOnceThenFails(t *testing.T) {
	f := newFixture(t, chainPlan(), 2)

	// node-b's file is never written, on any attempt.
	f.gen.hook = func(_ int, nodes []*plan.PlanNode) error {
		for _, n := range nodes {
			if n.ID == "node-b" {
				continue
			}
			if err := f.ws.WriteFile(n.Path, "x"); err != nil {
				return err
			}
		}
		return nil
	}

	_, err := f.orch.Run(context.Background(), false)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeBatchIncomplete))
	// Exactly one retry: two generation passes for the first batch.
	assert.Equal(t, 2, f.gen.calls)

	state, loadErr := f.ckpt.Load()
	require.NoError(t, loadErr)
	assert.Equal(t, checkpoint.StatusFailed, state.Status)
}

func TestRunBatchIncompleteRecoversOnRetry(t *testing.T) {
	f := newFixture(t, chainPlan(), 2)

	f.gen.hook = func(call int, nodes []*plan.PlanNode) error {
		for _, n := range nodes {
			// First pass skips node-b; the retry writes everything.
			if call == 1 && n.ID == "node-b" {
				continue
			}
			if err := f.ws.WriteFile(n.Path, "x"); err != nil {
				return err
			}
		}
		return nil
	}

	result, err := f.orch.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, RunSucceeded, result.Status)
	// Batch 0 took two passes, batch 1 one.
	assert.Equal(t, 3, f.gen.calls)
}

func TestRunResumeSkipsCompletedBatches(t *testing.T) {
	p := chainPlan()
	f := newFixture(t, p, 2)

	// Simulate a prior run that completed batch 0 then stopped.
	hash := f.store.Hash()
	state := checkpoint.NewState(p, hash)
	state.NodeStatus["node-a"] = plan.StatusGenerated
	state.NodeStatus["node-b"] = plan.StatusGenerated
	state.BatchCompleted(0, []string{"node-a", "node-b"}, false)
	require.NoError(t, f.ckpt.Save(state))

	result, err := f.orch.Run(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, RunSucceeded, result.Status)
	assert.Equal(t, 1, result.BatchesSkipped)
	assert.Equal(t, 1, result.BatchesCompleted)
	// Only the second batch was generated.
	assert.Equal(t, 1, f.gen.calls)
	assert.Equal(t, state.RunID, result.RunID)
}

func TestRunRestartsBatchOnConflictingPlanEdit(t *testing.T) {
	f := newFixture(t, chainPlan(), 2)

	f.gen.hook = func(call int, nodes []*plan.PlanNode) error {
		// While the first batch is in flight, the plan's node-b is
		// edited. The batch must restart against the new version.
		if call == 1 {
			_, err := f.store.ApplyEdit(f.store.Version(), func(p *plan.ApplicationPlan) error {
				for i := range p.Nodes {
					if p.Nodes[i].ID == "node-b" {
						p.Nodes[i].Behavior = "users with pagination"
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		for _, n := range nodes {
			if err := f.ws.WriteFile(n.Path, "x"); err != nil {
				return err
			}
		}
		return nil
	}

	result, err := f.orch.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, RunSucceeded, result.Status)
	// Batch 0 generated twice (restart), batch 1 once.
	assert.Equal(t, 3, f.gen.calls)

	// The restarted batch saw the edited behavior.
	node, ok := f.store.Current().Node("node-b")
	require.True(t, ok)
	assert.Equal(t, "users with pagination", node.Behavior)
}

func TestRunUnrelatedPlanEditDoesNotRestartBatch(t *testing.T) {
	f := newFixture(t, chainPlan(), 2)

	f.gen.hook = func(call int, nodes []*plan.PlanNode) error {
		// Editing node-c while the [a,b] batch is in flight must not
		// restart it.
		if call == 1 {
			_, err := f.store.ApplyEdit(f.store.Version(), func(p *plan.ApplicationPlan) error {
				for i := range p.Nodes {
					if p.Nodes[i].ID == "node-c" {
						p.Nodes[i].Behavior = "user page with filters"
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		for _, n := range nodes {
			if err := f.ws.WriteFile(n.Path, "x"); err != nil {
				return err
			}
		}
		return nil
	}

	result, err := f.orch.Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, RunSucceeded, result.Status)
	assert.Equal(t, 2, f.gen.calls)
}

func TestRunRepairFailureMarksFailingNodes(t *testing.T) {
	f := newFixture(t, chainPlan(), 2)

	failingRun := &testrun.Run{Cases: []testrun.CaseResult{
		{Name: "GET /users", Passed: false},
	}}
	f.rep.result = &repair.Result{Passed: false, FinalRun: failingRun}
	f.rep.err = errors.NewRepairBudgetExhaustedError(3, failingRun.Failing())

	_, err := f.orch.Run(context.Background(), false)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeRepairBudgetExhausted))

	node, ok := f.store.Current().Node("node-b")
	require.True(t, ok)
	assert.Equal(t, plan.StatusFailed, node.Status)
}
