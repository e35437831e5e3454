// Package repair drives the bounded test-repair loop that follows each
// generated batch. Every attempt reruns the suite, maps failures back
// to plan nodes, and hands the implicated scope to a repair agent. The
// loop is budgeted: it ends in a passing suite, a no-progress verdict
// after one widened retry, or an exhausted budget.
package repair

import (
	"context"
	"time"

	"github.com/appforge/appforge/internal/errors"
	"github.com/appforge/appforge/internal/log"
	"github.com/appforge/appforge/internal/plan"
	"github.com/appforge/appforge/internal/testrun"
)

// TestRunner runs the generated application's test suite once.
type TestRunner interface {
	Execute(ctx context.Context) (*testrun.Run, error)
}

// Fixer applies one repair attempt over the given node scope.
type Fixer interface {
	Repair(ctx context.Context, p *plan.ApplicationPlan, scope []string, run *testrun.Run) error
}

// Attempt records one repair attempt for checkpointing and reporting.
type Attempt struct {
	Number     int       `json:"number"`
	Scope      []string  `json:"scope"`
	Widened    bool      `json:"widened"`
	FailureKey string    `json:"failure_key"`
	Fixed      bool      `json:"fixed"`
	StartedAt  time.Time `json:"started_at"`
}

// Result is the outcome of a full repair loop.
type Result struct {
	Passed   bool
	Attempts []Attempt

	// FinalRun is the last test run observed.
	FinalRun *testrun.Run
}

// Controller owns the repair loop for one batch.
type Controller struct {
	runner      TestRunner
	fixer       Fixer
	maxAttempts int
	logger      *log.Logger
}

// NewController creates a repair controller.
func NewController(runner TestRunner, fixer Fixer, maxAttempts int, logger *log.Logger) *Controller {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Controller{runner: runner, fixer: fixer, maxAttempts: maxAttempts, logger: logger}
}

// Run executes the loop. fullScope is the complete node set of the
// run, used when failures cannot be attributed to specific nodes and
// when the loop widens after a no-progress attempt.
//
// The loop ends in one of three ways:
//   - the suite passes: Result.Passed is true, no error
//   - two consecutive identical failing sets trigger one widened
//     retry; if that retry also fails identically, the loop stops with
//     a no-progress error
//   - the attempt budget runs out: RepairBudgetExhausted
func (c *Controller) Run(ctx context.Context, p *plan.ApplicationPlan, fullScope []string) (*Result, error) {
	result := &Result{}

	run, err := c.runner.Execute(ctx)
	if err != nil {
		return nil, err
	}
	result.FinalRun = run
	if run.Passed {
		result.Passed = true
		return result, nil
	}

	idx := testrun.NewRouteIndex(p)
	widened := false

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		scope, matched := idx.NodesFor(run, p)
		if !matched || len(scope) == 0 || widened {
			scope = fullScope
		}

		rec := Attempt{
			Number:     attempt,
			Scope:      scope,
			Widened:    widened,
			FailureKey: run.FailureKey(),
			StartedAt:  time.Now(),
		}

		c.logger.Info("repair attempt",
			"attempt", attempt,
			"max_attempts", c.maxAttempts,
			"scope", scope,
			"widened", widened,
			"failing", run.Failing())

		if err := c.fixer.Repair(ctx, p, scope, run); err != nil {
			return nil, err
		}

		run, err = c.runner.Execute(ctx)
		if err != nil {
			return nil, err
		}
		result.FinalRun = run

		if run.Passed {
			rec.Fixed = true
			result.Attempts = append(result.Attempts, rec)
			result.Passed = true
			return result, nil
		}
		result.Attempts = append(result.Attempts, rec)

		// Identical failing set across consecutive runs means the
		// attempt changed nothing observable.
		if run.FailureKey() == rec.FailureKey {
			if widened {
				// The widened retry changed nothing either.
				return result, errors.NewNoProgressError(run.Failing())
			}
			c.logger.Warn("no progress detected, widening repair scope",
				"failing", run.Failing())
			widened = true
		} else {
			widened = false
		}
	}

	return result, errors.NewRepairBudgetExhaustedError(c.maxAttempts, run.Failing())
}
