package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Is and As re-export the standard helpers so callers need only one
// errors import.
func Is(err, target error) bool { return stderrors.Is(err, target) }
func As(err error, target any) bool { return stderrors.As(err, target) }

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Plan errors (PLAN-001 to PLAN-099)
	ErrCodePlanNotFound    ErrorCode = "PLAN-001"
	ErrCodePlanInvalid     ErrorCode = "PLAN-002"
	ErrCodePlanCycle       ErrorCode = "PLAN-003"
	ErrCodePlanNodeMissing ErrorCode = "PLAN-004"
	ErrCodePlanConflict    ErrorCode = "PLAN-005"

	// Batch errors (BATCH-001 to BATCH-099)
	ErrCodeBatchIncomplete ErrorCode = "BATCH-001"
	ErrCodeBatchAborted    ErrorCode = "BATCH-002"

	// Tool errors (TOOL-001 to TOOL-099)
	ErrCodeToolUnknown      ErrorCode = "TOOL-001"
	ErrCodeToolInvalidArgs  ErrorCode = "TOOL-002"
	ErrCodeToolPathEscape   ErrorCode = "TOOL-003"
	ErrCodeToolFileNotFound ErrorCode = "TOOL-004"
	ErrCodeToolWriteFailed  ErrorCode = "TOOL-005"
	ErrCodeToolTimeout      ErrorCode = "TOOL-006"

	// Provider errors (PROVIDER-001 to PROVIDER-099)
	ErrCodeProviderNotFound  ErrorCode = "PROVIDER-001"
	ErrCodeProviderConfig    ErrorCode = "PROVIDER-002"
	ErrCodeProviderAuth      ErrorCode = "PROVIDER-003"
	ErrCodeProviderAPI       ErrorCode = "PROVIDER-004"
	ErrCodeProviderRateLimit ErrorCode = "PROVIDER-005"
	ErrCodeProviderTimeout   ErrorCode = "PROVIDER-006"
	ErrCodeProviderBudget    ErrorCode = "PROVIDER-007"

	// Repair errors (REPAIR-001 to REPAIR-099)
	ErrCodeRepairBudgetExhausted ErrorCode = "REPAIR-001"
	ErrCodeRepairNoProgress      ErrorCode = "REPAIR-002"
	ErrCodeRepairTestRunFailed   ErrorCode = "REPAIR-003"

	// File I/O errors (IO-001 to IO-099)
	ErrCodeFileNotFound    ErrorCode = "IO-001"
	ErrCodeFileReadFailed  ErrorCode = "IO-002"
	ErrCodeFileWriteFailed ErrorCode = "IO-003"
	ErrCodeFileUnmarshal   ErrorCode = "IO-004"
	ErrCodeFileMarshal     ErrorCode = "IO-005"
)

// ForgeError represents an enhanced error with code, suggestions, and a cause chain
type ForgeError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	Cause       error
}

// Error implements the error interface
func (e *ForgeError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *ForgeError) Unwrap() error {
	return e.Cause
}

// New creates a new ForgeError
func New(code ErrorCode, message string) *ForgeError {
	return &ForgeError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new ForgeError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *ForgeError {
	return &ForgeError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *ForgeError) WithSuggestion(suggestion string) *ForgeError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *ForgeError) WithSuggestions(suggestions ...string) *ForgeError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// HasCode reports whether err carries the given error code anywhere in its chain
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		if fe, ok := err.(*ForgeError); ok && fe.Code == code {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Common error constructors for frequently used errors

// NewPlanCycleError reports a dependency cycle too large to generate as one unit
func NewPlanCycleError(nodeIDs []string, batchSize int) *ForgeError {
	return New(ErrCodePlanCycle, fmt.Sprintf(
		"dependency cycle of %d nodes exceeds batch size %d: %s",
		len(nodeIDs), batchSize, strings.Join(nodeIDs, " -> "))).
		WithSuggestion("Break the cycle by removing a dependency edge in the plan").
		WithSuggestion("Increase batch_size so the cycle fits in one batch")
}

// NewPlanConflictError reports an edit or commit against a stale plan version
func NewPlanConflictError(expected, actual int64) *ForgeError {
	return New(ErrCodePlanConflict, fmt.Sprintf(
		"plan version conflict: expected v%d, store is at v%d", expected, actual)).
		WithSuggestion("Reload the current plan and re-apply the edit")
}

// NewBatchIncompleteError reports agent loop exhaustion with pending nodes left
func NewBatchIncompleteError(batchIndex int, pendingIDs []string) *ForgeError {
	return New(ErrCodeBatchIncomplete, fmt.Sprintf(
		"batch %d finished with %d nodes still pending: %s",
		batchIndex, len(pendingIDs), strings.Join(pendingIDs, ", "))).
		WithSuggestion("Check the generation agent transcript for tool failures").
		WithSuggestion("Increase max_iterations if the batch is context-heavy")
}

// NewRepairBudgetExhaustedError reports a repair loop that did not converge
func NewRepairBudgetExhaustedError(attempts int, failing []string) *ForgeError {
	return New(ErrCodeRepairBudgetExhausted, fmt.Sprintf(
		"repair budget of %d attempts exhausted, %d tests still failing: %s",
		attempts, len(failing), strings.Join(failing, ", "))).
		WithSuggestion("Inspect the failing tests and edit the plan node behaviors").
		WithSuggestion("Increase max_repair_attempts to allow more iterations")
}

// NewNoProgressError reports two consecutive repair attempts with identical failures
func NewNoProgressError(failing []string) *ForgeError {
	return New(ErrCodeRepairNoProgress, fmt.Sprintf(
		"repair made no progress, failing set unchanged: %s", strings.Join(failing, ", ")))
}

// NewToolPathEscapeError reports a tool path outside the workspace sandbox
func NewToolPathEscapeError(path string) *ForgeError {
	return New(ErrCodeToolPathEscape, fmt.Sprintf("path escapes workspace root: %s", path)).
		WithSuggestion("Use paths relative to the workspace root")
}

// NewProviderAuthError creates a provider authentication error
func NewProviderAuthError(provider string) *ForgeError {
	return New(ErrCodeProviderAuth, fmt.Sprintf("authentication failed for provider: %s", provider)).
		WithSuggestion(fmt.Sprintf("Set the %s_API_KEY environment variable", strings.ToUpper(provider))).
		WithSuggestion("Check if your API key is valid and not expired")
}

// NewProviderRateLimitError creates a rate limit error
func NewProviderRateLimitError(provider string, retryAfter string) *ForgeError {
	msg := fmt.Sprintf("rate limit exceeded for provider: %s", provider)
	if retryAfter != "" {
		msg += fmt.Sprintf(" (retry after: %s)", retryAfter)
	}

	return New(ErrCodeProviderRateLimit, msg).
		WithSuggestion("Wait before retrying the request").
		WithSuggestion("Use a different provider if available")
}

// NewFileNotFoundError creates a file not found error
func NewFileNotFoundError(path string) *ForgeError {
	return New(ErrCodeFileNotFound, fmt.Sprintf("file not found: %s", path)).
		WithSuggestion("Check if the file path is correct")
}

// NewFileUnmarshalError creates an unmarshal error
func NewFileUnmarshalError(path string, format string, cause error) *ForgeError {
	return Wrap(ErrCodeFileUnmarshal, fmt.Sprintf("failed to parse %s file: %s", format, path), cause).
		WithSuggestion("Check the file syntax and format").
		WithSuggestion(fmt.Sprintf("Ensure the file is valid %s", format))
}
