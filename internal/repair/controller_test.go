package repair

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge/appforge/internal/errors"
	"github.com/appforge/appforge/internal/log"
	"github.com/appforge/appforge/internal/plan"
	"github.com/appforge/appforge/internal/testrun"
)

// scriptedRunner replays a fixed sequence of test runs.
type scriptedRunner struct {
	runs []*testrun.Run
	i    int
}

func (s *scriptedRunner) Execute(context.Context) (*testrun.Run, error) {
	if s.i >= len(s.runs) {
		return s.runs[len(s.runs)-1], nil
	}
	run := s.runs[s.i]
	s.i++
	return run, nil
}

// recordingFixer records the scope of every repair attempt.
type recordingFixer struct {
	scopes [][]string
}

func (f *recordingFixer) Repair(_ context.Context, _ *plan.ApplicationPlan, scope []string, _ *testrun.Run) error {
	f.scopes = append(f.scopes, scope)
	return nil
}

func passing() *testrun.Run {
	return &testrun.Run{Passed: true}
}

func failing(names ...string) *testrun.Run {
	run := &testrun.Run{}
	for _, n := range names {
		run.Cases = append(run.Cases, testrun.CaseResult{Name: n, Passed: false})
	}
	return run
}

func repairPlan() *plan.ApplicationPlan {
	return &plan.ApplicationPlan{
		Version: 1,
		Project: "demo",
		Nodes: []plan.PlanNode{
			{ID: "node-001", Path: "api/users.go", Kind: plan.KindBackend, Behavior: "users",
				Routes: []plan.Route{{Method: "GET", Path: "/users"}}},
			{ID: "node-002", Path: "api/orders.go", Kind: plan.KindBackend, Behavior: "orders",
				Routes: []plan.Route{{Method: "GET", Path: "/orders"}}},
		},
	}
}

func testLogger() *log.Logger {
	return log.New(log.DevelopmentConfig())
}

var fullScope = []string{"node-001", "node-002"}

func TestRepairPassesImmediately(t *testing.T) {
	runner := &scriptedRunner{runs: []*testrun.Run{passing()}}
	fixer := &recordingFixer{}
	c := NewController(runner, fixer, 3, testLogger())

	result, err := c.Run(context.Background(), repairPlan(), fullScope)
	require.NoError(t, err)
	assert.True(t, result.Passed)
	assert.Empty(t, result.Attempts)
	assert.Empty(t, fixer.scopes)
}

func TestRepairFixesOnFirstAttemptWithScopedNodes(t *testing.T) {
	runner := &scriptedRunner{runs: []*testrun.Run{
		failing("GET /users"),
		passing(),
	}}
	fixer := &recordingFixer{}
	c := NewController(runner, fixer, 3, testLogger())

	result, err := c.Run(context.Background(), repairPlan(), fullScope)
	require.NoError(t, err)
	assert.True(t, result.Passed)
	require.Len(t, result.Attempts, 1)
	assert.True(t, result.Attempts[0].Fixed)
	// Failure maps to node-001 via its route; only that node is in scope.
	require.Len(t, fixer.scopes, 1)
	assert.Equal(t, []string{"node-001"}, fixer.scopes[0])
}

func TestRepairNoProgressWidensExactlyOnce(t *testing.T) {
	// Identical failing set three times: attempt 1 scoped, attempt 2
	// widened to the full scope, then the loop gives up.
	runner := &scriptedRunner{runs: []*testrun.Run{
		failing("GET /users"),
		failing("GET /users"),
		failing("GET /users"),
	}}
	fixer := &recordingFixer{}
	c := NewController(runner, fixer, 5, testLogger())

	result, err := c.Run(context.Background(), repairPlan(), fullScope)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeRepairNoProgress))

	require.Len(t, fixer.scopes, 2)
	assert.Equal(t, []string{"node-001"}, fixer.scopes[0])
	assert.Equal(t, fullScope, fixer.scopes[1])
	require.Len(t, result.Attempts, 2)
	assert.False(t, result.Attempts[0].Widened)
	assert.True(t, result.Attempts[1].Widened)
}

func TestRepairBudgetExhausted(t *testing.T) {
	// The failing set keeps changing, so no-progress never fires and
	// the budget is the bound.
	runner := &scriptedRunner{runs: []*testrun.Run{
		failing("GET /users"),
		failing("GET /orders"),
		failing("GET /users"),
		failing("GET /orders"),
	}}
	fixer := &recordingFixer{}
	c := NewController(runner, fixer, 3, testLogger())

	result, err := c.Run(context.Background(), repairPlan(), fullScope)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeRepairBudgetExhausted))
	assert.Len(t, result.Attempts, 3)
	assert.Len(t, fixer.scopes, 3)
}

func TestRepairUnattributableFailureUsesFullScope(t *testing.T) {
	runner := &scriptedRunner{runs: []*testrun.Run{
		failing("TestMystery"),
		passing(),
	}}
	fixer := &recordingFixer{}
	c := NewController(runner, fixer, 3, testLogger())

	result, err := c.Run(context.Background(), repairPlan(), fullScope)
	require.NoError(t, err)
	assert.True(t, result.Passed)
	require.Len(t, fixer.scopes, 1)
	assert.Equal(t, fullScope, fixer.scopes[0])
}
