package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/appforge/appforge/internal/errors"
)

// Runner executes allow-listed commands inside the workspace root.
type Runner struct {
	ws             *Workspace
	allowed        map[string]bool
	timeout        time.Duration
	maxOutputBytes int
}

// CommandResult is the captured outcome of one subprocess.
type CommandResult struct {
	Command   []string      `json:"command"`
	ExitCode  int           `json:"exit_code"`
	Stdout    string        `json:"stdout"`
	Stderr    string        `json:"stderr"`
	Duration  time.Duration `json:"duration"`
	TimedOut  bool          `json:"timed_out"`
	Truncated bool          `json:"truncated"`
}

// NewRunner creates a runner restricted to the given command names.
func NewRunner(ws *Workspace, allowedCommands []string, timeout time.Duration, maxOutputBytes int) *Runner {
	allowed := make(map[string]bool, len(allowedCommands))
	for _, c := range allowedCommands {
		allowed[c] = true
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	if maxOutputBytes <= 0 {
		maxOutputBytes = 64 * 1024
	}
	return &Runner{ws: ws, allowed: allowed, timeout: timeout, maxOutputBytes: maxOutputBytes}
}

// Run executes argv with the workspace root as working directory.
// A non-zero exit is not an error; it is reported in the result so the
// caller can treat it as an observation.
func (r *Runner) Run(ctx context.Context, argv []string) (*CommandResult, error) {
	if len(argv) == 0 {
		return nil, errors.New(errors.ErrCodeToolInvalidArgs, "command must not be empty")
	}
	if !r.allowed[argv[0]] {
		return nil, errors.New(errors.ErrCodeToolUnknown,
			fmt.Sprintf("command not allowed: %s", argv[0])).
			WithSuggestion("Add the command to tools.allowed_commands if it should be permitted")
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Dir = r.ws.Root()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	result := &CommandResult{
		Command:  argv,
		Duration: time.Since(start),
		TimedOut: runCtx.Err() == context.DeadlineExceeded,
	}

	result.Stdout, result.Truncated = r.truncate(stdout.Bytes())
	errOut, errTruncated := r.truncate(stderr.Bytes())
	result.Stderr = errOut
	result.Truncated = result.Truncated || errTruncated

	if runErr != nil {
		var exitErr *exec.ExitError
		switch {
		case result.TimedOut:
			return nil, errors.New(errors.ErrCodeToolTimeout,
				fmt.Sprintf("command timed out after %s: %v", r.timeout, argv))
		case errors.As(runErr, &exitErr):
			result.ExitCode = exitErr.ExitCode()
		default:
			return nil, fmt.Errorf("failed to run %v: %w", argv, runErr)
		}
	}

	return result, nil
}

func (r *Runner) truncate(b []byte) (string, bool) {
	if len(b) <= r.maxOutputBytes {
		return string(b), false
	}
	return string(b[:r.maxOutputBytes]) + "\n[output truncated]", true
}

// CmdRunTool exposes the runner as an agent tool.
type CmdRunTool struct {
	Runner *Runner
}

func (t *CmdRunTool) Name() string { return "cmd_run" }
func (t *CmdRunTool) Description() string {
	return "Run an allow-listed command in the workspace root"
}
func (t *CmdRunTool) ReadOnly() bool { return false }

func (t *CmdRunTool) InputSchema() map[string]any {
	return objectSchema(map[string]any{
		"command": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
	}, "command")
}

func (t *CmdRunTool) Invoke(ctx context.Context, args []byte) (string, error) {
	var in struct {
		Command []string `json:"command"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	result, err := t.Runner.Run(ctx, in.Command)
	if err != nil {
		return "", err
	}
	out := fmt.Sprintf("exit code: %d\n", result.ExitCode)
	if result.Stdout != "" {
		out += "stdout:\n" + result.Stdout + "\n"
	}
	if result.Stderr != "" {
		out += "stderr:\n" + result.Stderr + "\n"
	}
	return out, nil
}
