package batch

import (
	"testing"

	"github.com/appforge/appforge/internal/depgraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unit(ids ...string) depgraph.Unit {
	return depgraph.Unit{NodeIDs: ids}
}

func TestChainSplitsAtBatchSize(t *testing.T) {
	// A -> B -> C with N=2 yields [A,B], [C].
	order := &depgraph.Order{Units: []depgraph.Unit{unit("a"), unit("b"), unit("c")}}

	batches, err := Schedule(order, 2)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, []string{"a", "b"}, batches[0].NodeIDs)
	assert.Equal(t, []string{"c"}, batches[1].NodeIDs)
	assert.Equal(t, 0, batches[0].Index)
	assert.Equal(t, 1, batches[1].Index)
}

func TestCyclicUnitKeptIntact(t *testing.T) {
	// Mutually dependent A,B with N=3: single batch, unit whole, and an
	// independent node fits alongside.
	order := &depgraph.Order{Units: []depgraph.Unit{unit("a", "b"), unit("c")}}

	batches, err := Schedule(order, 3)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, []string{"a", "b", "c"}, batches[0].NodeIDs)
}

func TestUnitMovedWholeToNextBatch(t *testing.T) {
	order := &depgraph.Order{Units: []depgraph.Unit{unit("a"), unit("b", "c")}}

	batches, err := Schedule(order, 2)
	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, []string{"a"}, batches[0].NodeIDs)
	assert.Equal(t, []string{"b", "c"}, batches[1].NodeIDs)
}

func TestOversizedUnitStandsAlone(t *testing.T) {
	order := &depgraph.Order{Units: []depgraph.Unit{unit("a"), unit("x", "y", "z"), unit("b")}}

	batches, err := Schedule(order, 2)
	require.NoError(t, err)
	require.Len(t, batches, 3)
	assert.Equal(t, []string{"a"}, batches[0].NodeIDs)
	assert.Equal(t, []string{"x", "y", "z"}, batches[1].NodeIDs)
	assert.Equal(t, []string{"b"}, batches[2].NodeIDs)
}

func TestAllBatchesWithinSize(t *testing.T) {
	var units []depgraph.Unit
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		units = append(units, unit(id))
	}
	order := &depgraph.Order{Units: units}

	batches, err := Schedule(order, 3)
	require.NoError(t, err)
	total := 0
	for _, b := range batches {
		assert.LessOrEqual(t, b.Size(), 3)
		total += b.Size()
	}
	assert.Equal(t, 7, total)
}

func TestInvalidSize(t *testing.T) {
	_, err := Schedule(&depgraph.Order{}, 0)
	require.Error(t, err)
}
