package core

import (
	"context"
	"time"
)

// DispatchStatus is the terminal status of one agent delegation.
type DispatchStatus string

const (
	DispatchSucceeded DispatchStatus = "succeeded"
	DispatchFailed    DispatchStatus = "failed"
	DispatchTimedOut  DispatchStatus = "timed_out"
)

// DispatchRequest describes one step's delegated action.
type DispatchRequest struct {
	Agent     string
	Action    string
	Inputs    []string
	Workspace string
	Timeout   time.Duration
}

// DispatchResult is the outcome of one delegation. It is a value, not
// an error: the scheduler inspects every step's terminal status
// uniformly.
type DispatchResult struct {
	Status  DispatchStatus
	Outputs []string
	Reason  string
}

// Dispatcher delegates one step's action to a named agent. The engine
// never inspects agent internals; implementations live outside the
// core. The context carries the step timeout; an implementation that
// observes ctx.Err() == context.DeadlineExceeded must report
// DispatchTimedOut.
type Dispatcher interface {
	Delegate(ctx context.Context, req DispatchRequest) DispatchResult
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, req DispatchRequest) DispatchResult

// Delegate implements Dispatcher.
func (f DispatcherFunc) Delegate(ctx context.Context, req DispatchRequest) DispatchResult {
	return f(ctx, req)
}

// RunContext is the slice of run state exposed to hook handlers.
type RunContext struct {
	RecordID     string
	WorkflowName string
	Task         string
	Workspace    string
}

// HookHandler executes one hook action kind. Implementations are
// registered by action identifier (git integration and similar
// collaborators live outside the core).
type HookHandler interface {
	Execute(ctx context.Context, action HookAction, run RunContext) error
}

// HookHandlerFunc adapts a function to the HookHandler interface.
type HookHandlerFunc func(ctx context.Context, action HookAction, run RunContext) error

// Execute implements HookHandler.
func (f HookHandlerFunc) Execute(ctx context.Context, action HookAction, run RunContext) error {
	return f(ctx, action, run)
}

// Approver supplies decisions for manual quality gates. The context
// carries the configured approval timeout.
type Approver interface {
	Approve(ctx context.Context, gate QualityGate) (bool, error)
}

// ApproverFunc adapts a function to the Approver interface.
type ApproverFunc func(ctx context.Context, gate QualityGate) (bool, error)

// Approve implements Approver.
func (f ApproverFunc) Approve(ctx context.Context, gate QualityGate) (bool, error) {
	return f(ctx, gate)
}

// Recorder persists execution records. Records are append-only:
// implementations never modify or delete a record once written.
type Recorder interface {
	// Append writes one record. Writes are serialized; concurrent
	// runs never interleave records.
	Append(ctx context.Context, rec *Record) error

	// List returns records newest first, up to limit (0 = no limit).
	List(ctx context.Context, limit int) ([]*Record, error)

	// ListByWorkflow returns records for one workflow, newest first.
	ListByWorkflow(ctx context.Context, name string, limit int) ([]*Record, error)

	// Close releases any underlying resources.
	Close() error
}
