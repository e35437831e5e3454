// Package exitcode maps run outcomes onto process exit codes so
// scripts driving appforge can branch on what went wrong.
package exitcode

import (
	"os"

	"github.com/appforge/appforge/internal/errors"
)

const (
	// Success indicates the run completed and every node verified.
	Success = 0

	// GeneralError covers failures with no more specific code.
	GeneralError = 1

	// UsageError indicates invalid flags or arguments.
	UsageError = 2

	// PlanError indicates the application plan could not be loaded,
	// validated, or ordered.
	PlanError = 3

	// BatchError indicates a batch finished without all its nodes.
	BatchError = 4

	// RepairError indicates the test-repair loop ended with failures
	// still on the board.
	RepairError = 5

	// ProviderError indicates a model provider problem: missing keys,
	// auth failures, rate limits, or an exhausted spend budget.
	ProviderError = 6

	// Interrupted indicates the run was cancelled by a signal.
	Interrupted = 130
)

// Exit terminates the process with the given code.
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError terminates the process with the code matching err.
func ExitWithError(err error) {
	Exit(FromError(err))
}

// FromError picks the exit code for an error by its ForgeError code.
func FromError(err error) int {
	if err == nil {
		return Success
	}

	switch {
	case errors.HasCode(err, errors.ErrCodePlanNotFound),
		errors.HasCode(err, errors.ErrCodePlanInvalid),
		errors.HasCode(err, errors.ErrCodePlanCycle),
		errors.HasCode(err, errors.ErrCodePlanNodeMissing),
		errors.HasCode(err, errors.ErrCodePlanConflict):
		return PlanError

	case errors.HasCode(err, errors.ErrCodeBatchIncomplete),
		errors.HasCode(err, errors.ErrCodeBatchAborted):
		return BatchError

	case errors.HasCode(err, errors.ErrCodeRepairBudgetExhausted),
		errors.HasCode(err, errors.ErrCodeRepairNoProgress),
		errors.HasCode(err, errors.ErrCodeRepairTestRunFailed):
		return RepairError

	case errors.HasCode(err, errors.ErrCodeProviderNotFound),
		errors.HasCode(err, errors.ErrCodeProviderConfig),
		errors.HasCode(err, errors.ErrCodeProviderAuth),
		errors.HasCode(err, errors.ErrCodeProviderAPI),
		errors.HasCode(err, errors.ErrCodeProviderRateLimit),
		errors.HasCode(err, errors.ErrCodeProviderTimeout),
		errors.HasCode(err, errors.ErrCodeProviderBudget):
		return ProviderError
	}

	return GeneralError
}

// Describe returns a short human-readable label for an exit code.
func Describe(code int) string {
	switch code {
	case Success:
		return "success"
	case GeneralError:
		return "general error"
	case UsageError:
		return "usage error"
	case PlanError:
		return "plan error"
	case BatchError:
		return "batch incomplete"
	case RepairError:
		return "tests failing after repair"
	case ProviderError:
		return "provider error"
	case Interrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}
