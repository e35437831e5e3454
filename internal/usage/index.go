// Package usage maintains the derived mapping between components and the
// pages that reference them. The index is a materialized view over the
// application plan: rebuilt from scratch on every plan commit and
// published atomically so concurrent readers never observe a partial
// update.
package usage

import (
	"sort"
	"sync/atomic"

	"github.com/appforge/appforge/internal/plan"
)

// Edge records that a page references a component
type Edge struct {
	ComponentID string `json:"component_id"`
	PageID      string `json:"page_id"`
}

type snapshot struct {
	planVersion      int64
	edges            []Edge
	componentsByPage map[string][]string
	pagesByComponent map[string][]string
}

var emptySnapshot = &snapshot{
	componentsByPage: map[string][]string{},
	pagesByComponent: map[string][]string{},
}

// Index answers component/page usage queries. Safe for concurrent use:
// readers load the current snapshot pointer, writers build a complete
// replacement and swap it in.
type Index struct {
	snap atomic.Pointer[snapshot]
}

// NewIndex creates an empty index
func NewIndex() *Index {
	idx := &Index{}
	idx.snap.Store(emptySnapshot)
	return idx
}

// Bind subscribes the index to a plan store so every committed plan
// change rebuilds it.
func Bind(store *plan.Store) *Index {
	idx := NewIndex()
	store.Subscribe(idx.Rebuild)
	return idx
}

// Rebuild recomputes the index from a plan snapshot. Edges whose
// endpoints are gone from the plan simply never make it into the new
// snapshot, which is how pruning happens.
func (i *Index) Rebuild(p *plan.ApplicationPlan) {
	next := &snapshot{
		planVersion:      p.Version,
		componentsByPage: make(map[string][]string),
		pagesByComponent: make(map[string][]string),
	}

	known := make(map[string]bool, len(p.Nodes))
	for _, n := range p.Nodes {
		known[n.ID] = true
	}

	for _, n := range p.Nodes {
		for _, componentID := range n.Uses {
			if !known[componentID] {
				continue
			}
			next.edges = append(next.edges, Edge{ComponentID: componentID, PageID: n.ID})
			next.componentsByPage[n.ID] = append(next.componentsByPage[n.ID], componentID)
			next.pagesByComponent[componentID] = append(next.pagesByComponent[componentID], n.ID)
		}
	}

	for _, ids := range next.componentsByPage {
		sort.Strings(ids)
	}
	for _, ids := range next.pagesByComponent {
		sort.Strings(ids)
	}
	sort.Slice(next.edges, func(a, b int) bool {
		if next.edges[a].PageID != next.edges[b].PageID {
			return next.edges[a].PageID < next.edges[b].PageID
		}
		return next.edges[a].ComponentID < next.edges[b].ComponentID
	})

	i.snap.Store(next)
}

// ComponentsUsedBy returns the components a page references
func (i *Index) ComponentsUsedBy(pageID string) []string {
	return append([]string(nil), i.snap.Load().componentsByPage[pageID]...)
}

// PagesUsing returns the pages that reference a component
func (i *Index) PagesUsing(componentID string) []string {
	return append([]string(nil), i.snap.Load().pagesByComponent[componentID]...)
}

// Edges returns all usage edges in the current snapshot
func (i *Index) Edges() []Edge {
	return append([]Edge(nil), i.snap.Load().edges...)
}

// PlanVersion reports which plan version the current snapshot reflects
func (i *Index) PlanVersion() int64 {
	return i.snap.Load().planVersion
}
