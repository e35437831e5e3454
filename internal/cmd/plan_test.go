package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge/appforge/internal/errors"
)

const testPlanYAML = `version: 1
project: demo
nodes:
  - id: node-001
    path: api/users.go
    kind: backend
    behavior: user CRUD endpoints
    routes:
      - method: GET
        path: /api/v1/users
  - id: node-002
    path: web/users.tsx
    kind: frontend
    behavior: user list page
    depends_on: [node-001]
    uses: [node-001]
`

func writeRunDir(t *testing.T, planYAML string) string {
	t.Helper()
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "implementation_plan.yaml"), []byte(planYAML), 0o644))
	configYAML := "workspace:\n  root: " + dir + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "appforge.yaml"), []byte(configYAML), 0o644))
	return dir
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(context.Background())
}

func TestPlanValidate(t *testing.T) {
	dir := writeRunDir(t, testPlanYAML)

	err := execute(t, "plan", "validate", "--config", filepath.Join(dir, "appforge.yaml"))
	assert.NoError(t, err)
}

func TestPlanValidateRejectsUnknownDependency(t *testing.T) {
	broken := `version: 1
project: demo
nodes:
  - id: node-001
    path: api/users.go
    kind: backend
    behavior: user CRUD endpoints
    depends_on: [node-missing]
`
	dir := writeRunDir(t, broken)

	err := execute(t, "plan", "validate", "--config", filepath.Join(dir, "appforge.yaml"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodePlanNodeMissing))
}

func TestPlanShowListsNodes(t *testing.T) {
	dir := writeRunDir(t, testPlanYAML)

	err := execute(t, "plan", "show", "--config", filepath.Join(dir, "appforge.yaml"))
	assert.NoError(t, err)
}

func TestStatusWithoutCheckpoint(t *testing.T) {
	dir := writeRunDir(t, testPlanYAML)

	err := execute(t, "status", "--config", filepath.Join(dir, "appforge.yaml"))
	assert.NoError(t, err)
}
