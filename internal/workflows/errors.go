package workflows

import (
	"errors"
	"fmt"
)

// Error severity levels for workflow errors
type ErrorSeverity string

const (
	// ErrorSeverityCritical ends the session (fetch failure, broken invariant).
	ErrorSeverityCritical ErrorSeverity = "critical"
	// ErrorSeverityHigh degrades one branch; the pipeline continues.
	ErrorSeverityHigh ErrorSeverity = "high"
	// ErrorSeverityLow is logged only.
	ErrorSeverityLow ErrorSeverity = "low"
)

// Caller-input and session errors
var (
	// ErrInvalidInput indicates a malformed request.
	ErrInvalidInput = errors.New("invalid review input")

	// ErrEmptyField indicates a required field is empty.
	ErrEmptyField = errors.New("required field is empty")

	// ErrInvariant indicates the session state was found inconsistent.
	ErrInvariant = errors.New("review state invariant violated")
)

// Stock reasoning recorded when arbitration could not run.
const ArbitratorUnavailable = "arbitrator unavailable"

// WorkflowError represents a structured error in a workflow
type WorkflowError struct {
	Operation string        // The operation that failed (e.g., "fetch_artifact", "run_specialist")
	Severity  ErrorSeverity // How severe the error is
	Err       error         // The underlying error
	Context   string        // Additional context about the error
}

// Error implements the error interface
func (e *WorkflowError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s failed: %s (%s)", e.Operation, e.Err.Error(), e.Context)
	}
	return fmt.Sprintf("%s failed: %s", e.Operation, e.Err.Error())
}

// Unwrap allows errors.Is and errors.As to work with WorkflowError
func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// NewWorkflowError creates a new workflow error with context
func NewWorkflowError(operation string, severity ErrorSeverity, err error, context string) *WorkflowError {
	return &WorkflowError{
		Operation: operation,
		Severity:  severity,
		Err:       err,
		Context:   context,
	}
}

// FormatErrorForResult formats an error for a state field shown to observers.
func FormatErrorForResult(operation string, err error) string {
	return fmt.Sprintf("%s: %v", operation, err)
}

// ErrorHandlingGuidelines documents how review workflows treat failures.
//
// CRITICAL (Record & Finish):
//   - Fetch failure, after the fetch policy's retries are spent
//   - Pattern: set ReviewState.FetchError, mark complete, return the state
//     with a nil error so callers never have to catch a workflow failure
//
// HIGH (Record Degraded Outcome, Continue):
//   - Specialist timeout or exhausted retries: slot becomes timed-out/failed
//   - Challenger failure: "no challenge, verdict=agree"
//   - Arbitration failure: ruling=upheld with ArbitratorUnavailable
//   - Synthesis failure: SynthesisError set, Verdict stays nil
//
// LOW (Log Only):
//   - Persistence failure after retries
//   - Challenger report or progress signal that could not be delivered
//   - Progress event publishing
