// Package batch partitions the generation order into context-sized
// batches. Batches are processed strictly in list order: a later batch
// may assume every node of every earlier batch already exists on disk.
package batch

import (
	"fmt"

	"github.com/appforge/appforge/internal/depgraph"
)

// Batch is an ordered group of plan nodes generated together within one
// bounded context window.
type Batch struct {
	Index   int
	NodeIDs []string
}

// Size returns the number of nodes in the batch
func (b Batch) Size() int {
	return len(b.NodeIDs)
}

// Schedule walks the generation order and accumulates units into
// batches of at most size nodes. A unit that would straddle the
// boundary moves whole into the next batch; a unit larger than size
// stands alone (the planner normally rejects such cycles, but the
// scheduler still keeps the unit intact rather than splitting it).
func Schedule(order *depgraph.Order, size int) ([]Batch, error) {
	if size < 1 {
		return nil, fmt.Errorf("batch size must be at least 1, got %d", size)
	}

	var batches []Batch
	current := Batch{Index: 0}

	flush := func() {
		if len(current.NodeIDs) > 0 {
			batches = append(batches, current)
			current = Batch{Index: len(batches)}
		}
	}

	for _, unit := range order.Units {
		if unit.Size() > size {
			// Oversized unsplittable unit: emit alone.
			flush()
			current.NodeIDs = append(current.NodeIDs, unit.NodeIDs...)
			flush()
			continue
		}

		if len(current.NodeIDs)+unit.Size() > size {
			flush()
		}
		current.NodeIDs = append(current.NodeIDs, unit.NodeIDs...)
	}
	flush()

	return batches, nil
}
