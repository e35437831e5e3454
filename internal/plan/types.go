package plan

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"
)

// NodeKind categorizes what a plan node generates
type NodeKind string

const (
	KindBackend  NodeKind = "backend"
	KindFrontend NodeKind = "frontend"
	KindDB       NodeKind = "db"
	KindTest     NodeKind = "test"
)

// NodeStatus tracks a node through the generation lifecycle.
// Status only advances forward except on explicit regeneration.
type NodeStatus string

const (
	StatusPending   NodeStatus = "pending"
	StatusGenerated NodeStatus = "generated"
	StatusVerified  NodeStatus = "verified"
	StatusFailed    NodeStatus = "failed"
)

// Route is one HTTP endpoint a backend node declares it will serve
type Route struct {
	Method string `yaml:"method" json:"method"`
	Path   string `yaml:"path" json:"path"`
}

// PlanNode is one generatable unit: a file the orchestrator will produce
type PlanNode struct {
	ID       string   `yaml:"id" json:"id"`
	Path     string   `yaml:"path" json:"path"`
	Kind     NodeKind `yaml:"kind" json:"kind"`
	Behavior string   `yaml:"behavior" json:"behavior"`

	// DependsOn lists node IDs whose files must exist before this node
	// can be generated correctly.
	DependsOn []string `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`

	// Uses lists component node IDs this node references when rendered.
	// Only meaningful for frontend pages; feeds the usage index.
	Uses []string `yaml:"uses,omitempty" json:"uses,omitempty"`

	// Routes lists endpoints a backend node declares. The end-to-end
	// test generator exercises every declared route.
	Routes []Route `yaml:"routes,omitempty" json:"routes,omitempty"`

	Status NodeStatus `yaml:"status,omitempty" json:"status,omitempty"`
}

// Stack records the global technology choices for the generated project
type Stack struct {
	Backend  string `yaml:"backend" json:"backend"`
	Frontend string `yaml:"frontend,omitempty" json:"frontend,omitempty"`
	Database string `yaml:"database,omitempty" json:"database,omitempty"`
}

// ApplicationPlan is the versioned collection of plan nodes plus global
// metadata. The plan store owns it; everything else reads snapshots.
type ApplicationPlan struct {
	Version     int64      `yaml:"version" json:"version"`
	Project     string     `yaml:"project" json:"project"`
	Description string     `yaml:"description,omitempty" json:"description,omitempty"`
	Stack       Stack      `yaml:"stack" json:"stack"`
	Nodes       []PlanNode `yaml:"nodes" json:"nodes"`
}

// Node returns the node with the given ID, if present
func (p *ApplicationPlan) Node(id string) (*PlanNode, bool) {
	for i := range p.Nodes {
		if p.Nodes[i].ID == id {
			return &p.Nodes[i], true
		}
	}
	return nil, false
}

// NodeIDs returns all node IDs in declaration order
func (p *ApplicationPlan) NodeIDs() []string {
	ids := make([]string, len(p.Nodes))
	for i, n := range p.Nodes {
		ids[i] = n.ID
	}
	return ids
}

// Clone returns a deep copy so snapshot holders cannot mutate store state
func (p *ApplicationPlan) Clone() *ApplicationPlan {
	cp := *p
	cp.Nodes = make([]PlanNode, len(p.Nodes))
	for i, n := range p.Nodes {
		cn := n
		cn.DependsOn = append([]string(nil), n.DependsOn...)
		cn.Uses = append([]string(nil), n.Uses...)
		cn.Routes = append([]Route(nil), n.Routes...)
		cp.Nodes[i] = cn
	}
	return &cp
}

// contentView strips volatile fields (version, status) so the hash covers
// only plan content. Two plans with the same nodes hash identically even
// when generation progress differs.
type contentView struct {
	Project     string
	Description string
	Stack       Stack
	Nodes       []contentNode
}

type contentNode struct {
	ID        string
	Path      string
	Kind      NodeKind
	Behavior  string
	DependsOn []string
	Uses      []string
	Routes    []Route
}

func nodeView(n *PlanNode) contentNode {
	deps := append([]string(nil), n.DependsOn...)
	uses := append([]string(nil), n.Uses...)
	sort.Strings(deps)
	sort.Strings(uses)
	return contentNode{
		ID:        n.ID,
		Path:      n.Path,
		Kind:      n.Kind,
		Behavior:  n.Behavior,
		DependsOn: deps,
		Uses:      uses,
		Routes:    append([]Route(nil), n.Routes...),
	}
}

// Hash returns a stable blake3 digest of the plan content
func (p *ApplicationPlan) Hash() (string, error) {
	view := contentView{
		Project:     p.Project,
		Description: p.Description,
		Stack:       p.Stack,
	}
	for _, n := range p.Nodes {
		view.Nodes = append(view.Nodes, nodeView(&n))
	}

	data, err := yaml.Marshal(view)
	if err != nil {
		return "", fmt.Errorf("marshaling plan for hashing: %w", err)
	}
	sum := blake3.Sum256(data)
	return fmt.Sprintf("%x", sum), nil
}

// ContentEquals reports whether two nodes declare the same content.
// Status is deliberately ignored; it records progress, not content.
func (n *PlanNode) ContentEquals(other *PlanNode) bool {
	a, err := yaml.Marshal(nodeView(n))
	if err != nil {
		return false
	}
	b, err := yaml.Marshal(nodeView(other))
	if err != nil {
		return false
	}
	return bytes.Equal(a, b)
}

// ChangedNodes lists node IDs whose declarations differ between two
// plan snapshots, including nodes present in only one of them. Sorted.
func ChangedNodes(old, cur *ApplicationPlan) []string {
	oldByID := make(map[string]*PlanNode, len(old.Nodes))
	for i := range old.Nodes {
		oldByID[old.Nodes[i].ID] = &old.Nodes[i]
	}

	changed := make(map[string]bool)
	for i := range cur.Nodes {
		n := &cur.Nodes[i]
		prev, ok := oldByID[n.ID]
		if !ok || !prev.ContentEquals(n) {
			changed[n.ID] = true
		}
		delete(oldByID, n.ID)
	}
	for id := range oldByID {
		changed[id] = true
	}

	ids := make([]string, 0, len(changed))
	for id := range changed {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
