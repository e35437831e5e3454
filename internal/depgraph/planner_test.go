package depgraph

import (
	"testing"

	"github.com/appforge/appforge/internal/errors"
	"github.com/appforge/appforge/internal/plan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func node(id string, deps ...string) plan.PlanNode {
	return plan.PlanNode{
		ID:        id,
		Path:      "src/" + id + ".py",
		Kind:      plan.KindBackend,
		Behavior:  "behavior of " + id,
		DependsOn: deps,
	}
}

func planOf(nodes ...plan.PlanNode) *plan.ApplicationPlan {
	return &plan.ApplicationPlan{Version: 1, Project: "p", Nodes: nodes}
}

func TestAcyclicOrderRespectsDependencies(t *testing.T) {
	p := planOf(
		node("c", "b"),
		node("b", "a"),
		node("a"),
	)

	order, err := Compute(p, 10)
	require.NoError(t, err)

	ids := order.NodeIDs()
	pos := map[string]int{}
	for i, id := range ids {
		pos[id] = i
	}
	assert.Less(t, pos["a"], pos["b"])
	assert.Less(t, pos["b"], pos["c"])
}

func TestOrderIsDeterministic(t *testing.T) {
	p := planOf(
		node("a"),
		node("b"),
		node("c"),
		node("d", "a", "b"),
	)

	first, err := Compute(p, 10)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := Compute(p, 10)
		require.NoError(t, err)
		assert.Equal(t, first.NodeIDs(), again.NodeIDs())
	}

	// Independent nodes keep declaration order.
	assert.Equal(t, []string{"a", "b", "c", "d"}, first.NodeIDs())
}

func TestCycleCollapsedIntoUnit(t *testing.T) {
	p := planOf(
		node("a", "b"),
		node("b", "a"),
		node("c", "a"),
	)

	order, err := Compute(p, 3)
	require.NoError(t, err)
	require.Len(t, order.Units, 2)

	unit := order.Units[0]
	assert.True(t, unit.Cyclic())
	assert.Equal(t, []string{"a", "b"}, unit.NodeIDs, "unit members keep declaration order")
	assert.Equal(t, []string{"c"}, order.Units[1].NodeIDs)
}

func TestCycleLargerThanBatchSizeFails(t *testing.T) {
	p := planOf(
		node("a", "c"),
		node("b", "a"),
		node("c", "b"),
	)

	_, err := Compute(p, 2)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodePlanCycle))
}

func TestNestedCyclesOrderedCorrectly(t *testing.T) {
	// Two separate 2-cycles, the second depending on the first.
	p := planOf(
		node("x", "y"),
		node("y", "x"),
		node("p", "q", "x"),
		node("q", "p"),
	)

	order, err := Compute(p, 2)
	require.NoError(t, err)
	require.Len(t, order.Units, 2)
	assert.Equal(t, []string{"x", "y"}, order.Units[0].NodeIDs)
	assert.Equal(t, []string{"p", "q"}, order.Units[1].NodeIDs)
}

func TestSingleNodePlan(t *testing.T) {
	order, err := Compute(planOf(node("only")), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, order.NodeIDs())
}
