package testrun

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge/appforge/internal/tools"
)

func TestParseGoTestOutput(t *testing.T) {
	out := `=== RUN   TestListUsers
--- FAIL: TestListUsers (0.01s)
    users_test.go:20: expected 200, got 500
--- PASS: TestHealth (0.00s)
FAIL
`
	cases := parseCases(out)
	require.Len(t, cases, 2)
	assert.Equal(t, "TestListUsers", cases[0].Name)
	assert.False(t, cases[0].Passed)
	assert.True(t, cases[1].Passed)
}

func TestParsePytestOutput(t *testing.T) {
	out := `PASSED tests/test_health.py::test_health
FAILED tests/test_users.py::test_list - assert 500 == 200
`
	cases := parseCases(out)
	require.Len(t, cases, 2)
	assert.True(t, cases[0].Passed)
	assert.Equal(t, "tests/test_users.py::test_list", cases[1].Name)
	assert.Equal(t, "assert 500 == 200", cases[1].Detail)
}

func TestFailureKeyIsOrderInsensitive(t *testing.T) {
	a := &Run{Cases: []CaseResult{
		{Name: "b", Passed: false},
		{Name: "a", Passed: false},
		{Name: "c", Passed: true},
	}}
	b := &Run{Cases: []CaseResult{
		{Name: "a", Passed: false},
		{Name: "b", Passed: false},
	}}
	assert.Equal(t, a.FailureKey(), b.FailureKey())
	assert.Equal(t, []string{"a", "b"}, a.Failing())
}

func TestExecutorFailingSuiteIsAResult(t *testing.T) {
	ws, err := tools.NewWorkspace(t.TempDir(), 0)
	require.NoError(t, err)
	runner := tools.NewRunner(ws, []string{"sh"}, time.Minute, 0)

	exec, err := NewExecutor(runner, []string{"sh", "-c", `echo "--- FAIL: TestX (0.00s)"; exit 1`})
	require.NoError(t, err)

	run, err := exec.Execute(context.Background())
	require.NoError(t, err)
	assert.False(t, run.Passed)
	assert.Equal(t, 1, run.ExitCode)
	assert.Equal(t, []string{"TestX"}, run.Failing())
}

func TestExecutorUnparseableFailureBecomesSyntheticCase(t *testing.T) {
	ws, err := tools.NewWorkspace(t.TempDir(), 0)
	require.NoError(t, err)
	runner := tools.NewRunner(ws, []string{"sh"}, time.Minute, 0)

	exec, err := NewExecutor(runner, []string{"sh", "-c", "echo build broken; exit 2"})
	require.NoError(t, err)

	run, err := exec.Execute(context.Background())
	require.NoError(t, err)
	assert.False(t, run.Passed)
	require.Len(t, run.Cases, 1)
	assert.Equal(t, "suite", run.Cases[0].Name)
	assert.Contains(t, run.Cases[0].Detail, "build broken")
}
