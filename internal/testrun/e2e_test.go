package testrun

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge/appforge/internal/plan"
	"github.com/appforge/appforge/internal/tools"
)

func routedPlan() *plan.ApplicationPlan {
	return &plan.ApplicationPlan{
		Version:     3,
		Project:     "talenthub",
		Description: "hiring portal",
		Nodes: []plan.PlanNode{
			{
				ID: "node-001", Path: "api/users.go", Kind: plan.KindBackend,
				Behavior: "user CRUD",
				Routes: []plan.Route{
					{Method: "GET", Path: "/api/v1/users"},
					{Method: "POST", Path: "/api/v1/users"},
				},
			},
			{
				ID: "node-002", Path: "api/health.go", Kind: plan.KindBackend,
				Behavior: "health probe",
				Routes:   []plan.Route{{Method: "GET", Path: "/api/v1/health"}},
			},
		},
	}
}

func TestBuildOpenAPISpec(t *testing.T) {
	doc, err := BuildOpenAPISpec(routedPlan())
	require.NoError(t, err)

	users := doc.Paths.Value("/api/v1/users")
	require.NotNil(t, users)
	require.NotNil(t, users.Get)
	require.NotNil(t, users.Post)
	assert.Equal(t, "node-001-get-api-v1-users", users.Get.OperationID)

	health := doc.Paths.Value("/api/v1/health")
	require.NotNil(t, health)
	assert.Nil(t, health.Post)
}

func TestBuildOpenAPISpecRejectsBadMethod(t *testing.T) {
	p := routedPlan()
	p.Nodes[0].Routes[0].Method = "YEET"
	_, err := BuildOpenAPISpec(p)
	assert.Error(t, err)
}

func TestWriteOpenAPISpec(t *testing.T) {
	ws, err := tools.NewWorkspace(t.TempDir(), 0)
	require.NoError(t, err)

	require.NoError(t, WriteOpenAPISpec(ws, routedPlan()))

	content, _, err := ws.ReadFile(SpecPath)
	require.NoError(t, err)
	assert.Contains(t, content, `"/api/v1/users"`)
	assert.Contains(t, content, "talenthub")
}

func TestRouteIndexMatching(t *testing.T) {
	p := routedPlan()
	idx := NewRouteIndex(p)

	// Exact route-named case.
	id, ok := idx.NodeFor(CaseResult{Name: "GET /api/v1/users"}, p)
	require.True(t, ok)
	assert.Equal(t, "node-001", id)

	// Route name embedded in a longer case name.
	id, ok = idx.NodeFor(CaseResult{Name: "GET /api/v1/health returns 200"}, p)
	require.True(t, ok)
	assert.Equal(t, "node-002", id)

	// File path in the failure detail.
	id, ok = idx.NodeFor(CaseResult{Name: "TestUsers", Detail: "api/users.go:42: boom"}, p)
	require.True(t, ok)
	assert.Equal(t, "node-001", id)

	// Unmatchable.
	_, ok = idx.NodeFor(CaseResult{Name: "TestMystery", Detail: "???"}, p)
	assert.False(t, ok)
}

func TestRouteIndexNodesForRun(t *testing.T) {
	p := routedPlan()
	idx := NewRouteIndex(p)

	run := &Run{Cases: []CaseResult{
		{Name: "GET /api/v1/users", Passed: false},
		{Name: "GET /api/v1/health", Passed: true},
		{Name: "POST /api/v1/users", Passed: false},
	}}
	ids, ok := idx.NodesFor(run, p)
	require.True(t, ok)
	assert.Equal(t, []string{"node-001"}, ids)

	run.Cases = append(run.Cases, CaseResult{Name: "TestMystery", Passed: false})
	ids, ok = idx.NodesFor(run, p)
	assert.False(t, ok)
	assert.Equal(t, []string{"node-001"}, ids)
}
