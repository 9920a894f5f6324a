package core

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors for handling decisions.
type ErrorCategory string

const (
	ErrCatSchema     ErrorCategory = "schema"     // Malformed or incomplete definition
	ErrCatGraph      ErrorCategory = "graph"      // Dependency graph violation
	ErrCatMatch      ErrorCategory = "match"      // No workflow matched
	ErrCatExecution  ErrorCategory = "execution"  // Step runtime failure
	ErrCatTimeout    ErrorCategory = "timeout"    // Step timed out
	ErrCatValidation ErrorCategory = "validation" // Output validation failed
	ErrCatHook       ErrorCategory = "hook"       // Hook action failed
	ErrCatGate       ErrorCategory = "gate"       // Quality gate rejected
	ErrCatState      ErrorCategory = "state"      // Store state conflict
	ErrCatNotFound   ErrorCategory = "not_found"  // Resource not found
	ErrCatInternal   ErrorCategory = "internal"   // Unexpected internal error
)

// Error codes. Load-time codes abort before any execution; run-time
// codes surface through the execution record and the CLI exit status.
const (
	CodeSchemaError       = "SCHEMA_ERROR"
	CodeCycleDetected     = "CYCLE_DETECTED"
	CodeDanglingReference = "DANGLING_REFERENCE"
	CodeOutputConflict    = "OUTPUT_CONFLICT"
	CodeMatchNotFound     = "MATCH_NOT_FOUND"
	CodeStepTimeout       = "STEP_TIMEOUT"
	CodeStepValidation    = "STEP_VALIDATION_FAILED"
	CodeHookFailed        = "HOOK_FAILED"
	CodeGateRejected      = "GATE_REJECTED"

	CodeWorkflowNotFound = "WORKFLOW_NOT_FOUND"
	CodeReadOnly         = "READ_ONLY_WORKFLOW"
	CodeRunAborted       = "RUN_ABORTED"
)

// DomainError is a structured error carrying the taxonomy category,
// a stable code, and the offending workflow/step/field path.
type DomainError struct {
	Category ErrorCategory
	Code     string
	Message  string
	Path     string // offending workflow/step/field, e.g. "deploy/steps/build/depends_on"
	Cause    error
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s: %s", e.Category, e.Code, e.Message)
	if e.Path != "" {
		msg = fmt.Sprintf("[%s] %s: %s (at %s)", e.Category, e.Code, e.Message, e.Path)
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *DomainError) Unwrap() error { return e.Cause }

// Is matches on category and code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Category == t.Category && e.Code == t.Code
}

// WithCause wraps an underlying error.
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// ErrSchema reports a malformed definition.
func ErrSchema(path, message string) *DomainError {
	return &DomainError{Category: ErrCatSchema, Code: CodeSchemaError, Message: message, Path: path}
}

// ErrCycle reports a dependency cycle.
func ErrCycle(workflow, message string) *DomainError {
	return &DomainError{Category: ErrCatGraph, Code: CodeCycleDetected, Message: message, Path: workflow}
}

// ErrDangling reports a reference to a step that does not exist.
func ErrDangling(path, ref string) *DomainError {
	return &DomainError{
		Category: ErrCatGraph,
		Code:     CodeDanglingReference,
		Message:  fmt.Sprintf("reference to unknown step %q", ref),
		Path:     path,
	}
}

// ErrOutputConflict reports two concurrently eligible steps declaring
// the same output artifact.
func ErrOutputConflict(workflow, stepA, stepB, output string) *DomainError {
	return &DomainError{
		Category: ErrCatGraph,
		Code:     CodeOutputConflict,
		Message:  fmt.Sprintf("steps %q and %q may run concurrently but both write %q", stepA, stepB, output),
		Path:     workflow,
	}
}

// ErrMatchNotFound reports that no workflow scored above the threshold.
func ErrMatchNotFound(description string) *DomainError {
	return &DomainError{
		Category: ErrCatMatch,
		Code:     CodeMatchNotFound,
		Message:  fmt.Sprintf("no workflow matches %q", description),
	}
}

// ErrStepTimeout reports a step exceeding its timeout.
func ErrStepTimeout(workflow, step string) *DomainError {
	return &DomainError{
		Category: ErrCatTimeout,
		Code:     CodeStepTimeout,
		Message:  "step timed out",
		Path:     workflow + "/steps/" + step,
	}
}

// ErrStepValidation reports an output validation failure.
func ErrStepValidation(workflow, step, reason string) *DomainError {
	return &DomainError{
		Category: ErrCatValidation,
		Code:     CodeStepValidation,
		Message:  reason,
		Path:     workflow + "/steps/" + step,
	}
}

// ErrHookFailed reports a required hook failure.
func ErrHookFailed(phase HookPhase, action, reason string) *DomainError {
	return &DomainError{
		Category: ErrCatHook,
		Code:     CodeHookFailed,
		Message:  reason,
		Path:     string(phase) + "/" + action,
	}
}

// ErrGateRejected reports a required quality gate failure.
func ErrGateRejected(gate, reason string) *DomainError {
	return &DomainError{
		Category: ErrCatGate,
		Code:     CodeGateRejected,
		Message:  reason,
		Path:     gate,
	}
}

// ErrWorkflowNotFound reports a missing workflow.
func ErrWorkflowNotFound(name string) *DomainError {
	return &DomainError{
		Category: ErrCatNotFound,
		Code:     CodeWorkflowNotFound,
		Message:  fmt.Sprintf("workflow %q not found", name),
		Path:     name,
	}
}

// ErrReadOnly reports an attempt to modify a system definition.
func ErrReadOnly(name string) *DomainError {
	return &DomainError{
		Category: ErrCatState,
		Code:     CodeReadOnly,
		Message:  fmt.Sprintf("workflow %q is a system definition and cannot be modified", name),
		Path:     name,
	}
}

// ErrRunAborted reports a run that stopped before completing because a
// required step failed.
func ErrRunAborted(workflow, reason string) *DomainError {
	return &DomainError{
		Category: ErrCatExecution,
		Code:     CodeRunAborted,
		Message:  reason,
		Path:     workflow,
	}
}

// GetCategory extracts the error category, defaulting to internal.
func GetCategory(err error) ErrorCategory {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Category
	}
	return ErrCatInternal
}

// GetCode extracts the error code, or "" for non-domain errors.
func GetCode(err error) string {
	var domErr *DomainError
	if errors.As(err, &domErr) {
		return domErr.Code
	}
	return ""
}

// ExitCode maps an error to the CLI exit status. Each taxonomy
// category has a distinct nonzero code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	switch GetCode(err) {
	case CodeSchemaError, CodeReadOnly:
		return 2
	case CodeCycleDetected:
		return 3
	case CodeDanglingReference:
		return 4
	case CodeOutputConflict:
		return 5
	case CodeMatchNotFound, CodeWorkflowNotFound:
		return 6
	case CodeStepTimeout:
		return 7
	case CodeStepValidation, CodeRunAborted:
		return 8
	case CodeHookFailed:
		return 9
	case CodeGateRejected:
		return 10
	default:
		return 1
	}
}
