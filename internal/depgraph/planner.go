// Package depgraph computes the generation order over plan nodes. The
// order is a deterministic topological sort of the dependency graph with
// cyclic groups collapsed into unsplittable units, so mutually dependent
// files are always generated inside one batch with full mutual context.
package depgraph

import (
	"github.com/appforge/appforge/internal/errors"
	"github.com/appforge/appforge/internal/plan"
)

// Unit is one scheduling atom: a single node, or a cyclic group of
// mutually dependent nodes that must be generated together. NodeIDs
// keeps plan declaration order.
type Unit struct {
	NodeIDs []string
}

// Size returns the number of nodes in the unit
func (u Unit) Size() int {
	return len(u.NodeIDs)
}

// Cyclic reports whether this unit is a collapsed dependency cycle
func (u Unit) Cyclic() bool {
	return len(u.NodeIDs) > 1
}

// Order is the total generation order, unit by unit. Every node appears
// after all its dependencies outside its own unit.
type Order struct {
	Units []Unit
}

// NodeIDs flattens the order into a node ID sequence
func (o *Order) NodeIDs() []string {
	var ids []string
	for _, u := range o.Units {
		ids = append(ids, u.NodeIDs...)
	}
	return ids
}

// Compute builds the generation order for a plan. A dependency cycle
// larger than batchSize cannot be generated with correct mutual context
// and is reported as a plan error rather than silently split.
//
// Determinism: given the same plan the same order comes out. Strongly
// connected components are discovered in declaration order and ties in
// the condensation are broken by the earliest declared member.
func Compute(p *plan.ApplicationPlan, batchSize int) (*Order, error) {
	n := len(p.Nodes)
	declIndex := make(map[string]int, n)
	for i, node := range p.Nodes {
		declIndex[node.ID] = i
	}

	// adjacency: dependency -> dependents is not needed; Tarjan walks
	// node -> its dependencies.
	deps := make([][]int, n)
	for i, node := range p.Nodes {
		for _, depID := range node.DependsOn {
			j, ok := declIndex[depID]
			if !ok {
				return nil, errors.New(errors.ErrCodePlanNodeMissing,
					"node "+node.ID+" depends on unknown node "+depID)
			}
			deps[i] = append(deps[i], j)
		}
	}

	sccs := tarjan(n, deps)

	// Map node -> component, check unit sizes against the batch budget.
	comp := make([]int, n)
	for ci, members := range sccs {
		if len(members) > batchSize {
			ids := make([]string, len(members))
			for k, m := range members {
				ids[k] = p.Nodes[m].ID
			}
			return nil, errors.NewPlanCycleError(ids, batchSize)
		}
		for _, m := range members {
			comp[m] = ci
		}
	}

	// Condensation DAG: edge from dependency's component to dependent's.
	nc := len(sccs)
	indegree := make([]int, nc)
	succ := make([][]int, nc)
	seen := make(map[[2]int]bool)
	for i := range p.Nodes {
		for _, j := range deps[i] {
			ci, cj := comp[i], comp[j]
			if ci == cj {
				continue
			}
			key := [2]int{cj, ci}
			if seen[key] {
				continue
			}
			seen[key] = true
			succ[cj] = append(succ[cj], ci)
			indegree[ci]++
		}
	}

	// Earliest declared member decides ordering between ready units.
	minDecl := make([]int, nc)
	for ci, members := range sccs {
		minDecl[ci] = members[0]
		for _, m := range members {
			if m < minDecl[ci] {
				minDecl[ci] = m
			}
		}
	}

	var ready []int
	for ci := 0; ci < nc; ci++ {
		if indegree[ci] == 0 {
			ready = append(ready, ci)
		}
	}

	order := &Order{}
	for len(ready) > 0 {
		// Pick the ready unit with the earliest declaration.
		best := 0
		for k := 1; k < len(ready); k++ {
			if minDecl[ready[k]] < minDecl[ready[best]] {
				best = k
			}
		}
		ci := ready[best]
		ready = append(ready[:best], ready[best+1:]...)

		members := append([]int(nil), sccs[ci]...)
		// Members in declaration order.
		for a := 1; a < len(members); a++ {
			for b := a; b > 0 && members[b] < members[b-1]; b-- {
				members[b], members[b-1] = members[b-1], members[b]
			}
		}
		unit := Unit{NodeIDs: make([]string, len(members))}
		for k, m := range members {
			unit.NodeIDs[k] = p.Nodes[m].ID
		}
		order.Units = append(order.Units, unit)

		for _, next := range succ[ci] {
			indegree[next]--
			if indegree[next] == 0 {
				ready = append(ready, next)
			}
		}
	}

	return order, nil
}

// tarjan returns strongly connected components in a deterministic order:
// DFS roots are visited in declaration order, and components come out
// reverse-topologically (dependencies before dependents within a root).
func tarjan(n int, adj [][]int) [][]int {
	const unvisited = -1

	index := make([]int, n)
	lowlink := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = unvisited
	}

	var (
		counter int
		stack   []int
		sccs    [][]int
	)

	var strongconnect func(v int)
	strongconnect = func(v int) {
		index[v] = counter
		lowlink[v] = counter
		counter++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range adj[v] {
			if index[w] == unvisited {
				strongconnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] && index[w] < lowlink[v] {
				lowlink[v] = index[w]
			}
		}

		if lowlink[v] == index[v] {
			var members []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				members = append(members, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, members)
		}
	}

	for v := 0; v < n; v++ {
		if index[v] == unvisited {
			strongconnect(v)
		}
	}

	return sccs
}
