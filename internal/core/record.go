package core

import (
	"fmt"
	"time"
)

// StepStatus is the terminal status of one step in a run.
type StepStatus string

const (
	StepSucceeded StepStatus = "succeeded"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
	StepTimedOut  StepStatus = "timed_out"
)

// Outcome is the overall result of a run.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeAborted   Outcome = "aborted"
)

// ValidationResult is the outcome of one rule applied to one step.
type ValidationResult struct {
	Rule   string `json:"rule"`
	Passed bool   `json:"passed"`
	Reason string `json:"reason,omitempty"`
}

// StepResult is the immutable outcome of one step.
type StepResult struct {
	StepID     string             `json:"step_id"`
	Name       string             `json:"name,omitempty"`
	Agent      string             `json:"agent,omitempty"`
	Status     StepStatus         `json:"status"`
	Outputs    []string           `json:"outputs,omitempty"`
	Validation []ValidationResult `json:"validation,omitempty"`
	Reason     string             `json:"reason,omitempty"`
	StartedAt  *time.Time         `json:"started_at,omitempty"`
	EndedAt    *time.Time         `json:"ended_at,omitempty"`
}

// Duration returns the step's wall-clock duration, or zero if it
// never started.
func (s *StepResult) Duration() time.Duration {
	if s.StartedAt == nil || s.EndedAt == nil {
		return 0
	}
	return s.EndedAt.Sub(*s.StartedAt)
}

// GateDecision is the recorded outcome of one quality gate.
type GateDecision struct {
	Name      string `json:"name"`
	AfterStep string `json:"after_step"`
	Passed    bool   `json:"passed"`
	Reason    string `json:"reason,omitempty"`
}

// Record is the immutable outcome log of one run. A record with an
// empty WorkflowName is an ad-hoc run (direct agent delegation without
// a workflow), which is what the learning engine mines.
type Record struct {
	ID              string         `json:"id"`
	WorkflowName    string         `json:"workflow_name,omitempty"`
	WorkflowVersion string         `json:"workflow_version,omitempty"`
	Task            string         `json:"task"`
	StartedAt       time.Time      `json:"started_at"`
	EndedAt         time.Time      `json:"ended_at"`
	Steps           []StepResult   `json:"steps"`
	Gates           []GateDecision `json:"gates,omitempty"`
	Outcome         Outcome        `json:"outcome"`
}

// Key content-addresses the record by workflow name and start time.
func (r *Record) Key() string {
	return fmt.Sprintf("%s@%s", r.WorkflowName, r.StartedAt.UTC().Format(time.RFC3339Nano))
}

// Succeeded reports whether the run completed.
func (r *Record) Succeeded() bool { return r.Outcome == OutcomeCompleted }

// AdHoc reports whether the record is a non-workflow invocation.
func (r *Record) AdHoc() bool { return r.WorkflowName == "" }

// Duration returns the run's wall-clock duration.
func (r *Record) Duration() time.Duration { return r.EndedAt.Sub(r.StartedAt) }

// AgentSequence returns the agents of succeeded steps in order. This
// is the signature the learning engine groups ad-hoc runs by.
func (r *Record) AgentSequence() []string {
	var seq []string
	for _, s := range r.Steps {
		if s.Status == StepSucceeded && s.Agent != "" {
			seq = append(seq, s.Agent)
		}
	}
	return seq
}

// StepCounts returns the number of steps per terminal status.
func (r *Record) StepCounts() (succeeded, failed, skipped, timedOut int) {
	for _, s := range r.Steps {
		switch s.Status {
		case StepSucceeded:
			succeeded++
		case StepFailed:
			failed++
		case StepSkipped:
			skipped++
		case StepTimedOut:
			timedOut++
		}
	}
	return
}
