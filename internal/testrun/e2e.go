package testrun

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/appforge/appforge/internal/plan"
	"github.com/appforge/appforge/internal/tools"
)

// SpecPath is where the materialized API contract lands in the
// workspace. The generated test suite reads it to know which routes
// must exist.
const SpecPath = "e2e/openapi.json"

// RouteCase ties one declared route to the node that implements it.
// Test case names for routes follow "METHOD path" so failures can be
// traced back to nodes.
type RouteCase struct {
	Name   string
	Method string
	Path   string
	NodeID string
}

// BuildRouteCases lists every declared route in plan order.
func BuildRouteCases(p *plan.ApplicationPlan) []RouteCase {
	var cases []RouteCase
	for _, node := range p.Nodes {
		for _, r := range node.Routes {
			method := strings.ToUpper(r.Method)
			cases = append(cases, RouteCase{
				Name:   method + " " + r.Path,
				Method: method,
				Path:   r.Path,
				NodeID: node.ID,
			})
		}
	}
	return cases
}

// BuildOpenAPISpec materializes the plan's declared routes as an
// OpenAPI document. Each operation's ID carries the owning node so the
// contract round-trips node identity.
func BuildOpenAPISpec(p *plan.ApplicationPlan) (*openapi3.T, error) {
	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       p.Project,
			Description: p.Description,
			Version:     fmt.Sprintf("%d", p.Version),
		},
		Paths: openapi3.NewPaths(),
	}

	for _, rc := range BuildRouteCases(p) {
		item := doc.Paths.Value(rc.Path)
		if item == nil {
			item = &openapi3.PathItem{}
			doc.Paths.Set(rc.Path, item)
		}

		op := openapi3.NewOperation()
		op.OperationID = operationID(rc)
		op.Summary = fmt.Sprintf("Implemented by %s", rc.NodeID)
		op.Responses = openapi3.NewResponses()

		switch rc.Method {
		case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodHead, http.MethodOptions:
			item.SetOperation(rc.Method, op)
		default:
			return nil, fmt.Errorf("node %s declares unsupported method %s", rc.NodeID, rc.Method)
		}
	}

	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("generated OpenAPI document is invalid: %w", err)
	}
	return doc, nil
}

// WriteOpenAPISpec materializes and persists the contract into the
// workspace at SpecPath.
func WriteOpenAPISpec(ws *tools.Workspace, p *plan.ApplicationPlan) error {
	doc, err := BuildOpenAPISpec(p)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal OpenAPI document: %w", err)
	}
	return ws.WriteFile(SpecPath, string(data))
}

// operationID derives a stable ID like "node-002-get-api-v1-users".
func operationID(rc RouteCase) string {
	path := strings.Trim(rc.Path, "/")
	path = strings.NewReplacer("/", "-", "{", "", "}", "", ":", "").Replace(path)
	return fmt.Sprintf("%s-%s-%s", rc.NodeID, strings.ToLower(rc.Method), path)
}

// RouteIndex maps test case names back to node IDs.
type RouteIndex struct {
	byName map[string]string
}

// NewRouteIndex builds the lookup from a plan.
func NewRouteIndex(p *plan.ApplicationPlan) *RouteIndex {
	idx := &RouteIndex{byName: make(map[string]string)}
	for _, rc := range BuildRouteCases(p) {
		idx.byName[rc.Name] = rc.NodeID
	}
	return idx
}

// NodeFor resolves a test case name to the owning node. Route-named
// cases match directly; otherwise the case detail is scanned for node
// file paths.
func (idx *RouteIndex) NodeFor(c CaseResult, p *plan.ApplicationPlan) (string, bool) {
	if id, ok := idx.byName[c.Name]; ok {
		return id, true
	}
	// A case name like "GET /api/v1/users returns 200" still contains
	// the route; try the longest route-name prefix.
	for name, id := range idx.byName {
		if strings.Contains(c.Name, name) || strings.Contains(c.Detail, name) {
			return id, true
		}
	}
	for _, node := range p.Nodes {
		if strings.Contains(c.Detail, node.Path) || strings.Contains(c.Name, node.Path) {
			return node.ID, true
		}
	}
	return "", false
}

// NodesFor maps a whole failing run onto the set of implicated node
// IDs, sorted. Unmatchable failures return ok=false so callers can
// widen scope to the entire batch.
func (idx *RouteIndex) NodesFor(run *Run, p *plan.ApplicationPlan) (ids []string, ok bool) {
	set := make(map[string]bool)
	ok = true
	for _, c := range run.Cases {
		if c.Passed {
			continue
		}
		id, matched := idx.NodeFor(c, p)
		if !matched {
			ok = false
			continue
		}
		set[id] = true
	}
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, ok
}
