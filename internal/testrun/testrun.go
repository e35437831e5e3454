// Package testrun executes the generated application's test suite and
// turns its output into structured results the repair loop can act on.
package testrun

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/appforge/appforge/internal/errors"
	"github.com/appforge/appforge/internal/tools"
)

// CaseResult is one test case's outcome.
type CaseResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`

	// Detail carries the failure message and any file/route references
	// the framework printed.
	Detail string `json:"detail,omitempty"`
}

// Run is the structured outcome of one test suite execution.
type Run struct {
	Passed   bool         `json:"passed"`
	ExitCode int          `json:"exit_code"`
	Cases    []CaseResult `json:"cases"`
	Output   string       `json:"output"`
}

// Failing returns the names of failing cases, sorted.
func (r *Run) Failing() []string {
	var names []string
	for _, c := range r.Cases {
		if !c.Passed {
			names = append(names, c.Name)
		}
	}
	sort.Strings(names)
	return names
}

// FailureKey is a stable identity for the failing set. Two runs with
// the same key failed in exactly the same way, which is how the repair
// loop detects that it is not making progress.
func (r *Run) FailureKey() string {
	return strings.Join(r.Failing(), "\n")
}

// Executor runs the configured test command through the sandboxed
// runner and parses the output.
type Executor struct {
	runner  *tools.Runner
	command []string
}

// NewExecutor creates an executor for one test command.
func NewExecutor(runner *tools.Runner, command []string) (*Executor, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("test command is required")
	}
	return &Executor{runner: runner, command: command}, nil
}

// Execute runs the suite once. A failing suite is a normal result, not
// an error; errors mean the suite could not be run at all.
func (e *Executor) Execute(ctx context.Context) (*Run, error) {
	result, err := e.runner.Run(ctx, e.command)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRepairTestRunFailed,
			fmt.Sprintf("test command failed to run: %v", e.command), err)
	}

	output := result.Stdout
	if result.Stderr != "" {
		output += "\n" + result.Stderr
	}

	run := &Run{
		ExitCode: result.ExitCode,
		Output:   output,
		Cases:    parseCases(output),
	}

	// When the framework output is unparseable, fall back to one
	// synthetic case covering the whole run.
	if len(run.Cases) == 0 && result.ExitCode != 0 {
		run.Cases = []CaseResult{{
			Name:   "suite",
			Passed: false,
			Detail: tail(output, 2000),
		}}
	}

	run.Passed = result.ExitCode == 0 && len(run.Failing()) == 0
	return run, nil
}

var (
	// go test: "--- FAIL: TestName (0.00s)" / "--- PASS: TestName".
	goTestLine = regexp.MustCompile(`^--- (FAIL|PASS): (\S+)`)

	// pytest summary: "FAILED tests/test_users.py::test_list - detail"
	// and "PASSED tests/test_users.py::test_list".
	pytestLine = regexp.MustCompile(`^(FAILED|PASSED) (\S+?)(?: - (.*))?$`)

	// jest/vitest: "✓ users lists all" / "✕ users lists all".
	jsTestLine = regexp.MustCompile(`^\s*([✓✕]) (.+?)(?: \(\d+ ?ms\))?$`)
)

func parseCases(output string) []CaseResult {
	var cases []CaseResult
	seen := make(map[string]bool)

	add := func(name string, passed bool, detail string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		cases = append(cases, CaseResult{Name: name, Passed: passed, Detail: detail})
	}

	for _, line := range strings.Split(output, "\n") {
		if m := goTestLine.FindStringSubmatch(line); m != nil {
			add(m[2], m[1] == "PASS", "")
			continue
		}
		if m := pytestLine.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			add(m[2], m[1] == "PASSED", m[3])
			continue
		}
		if m := jsTestLine.FindStringSubmatch(line); m != nil {
			add(strings.TrimSpace(m[2]), m[1] == "✓", "")
			continue
		}
	}
	return cases
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
