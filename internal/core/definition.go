package core

import (
	"sort"
	"time"
)

// Priority influences matching and list ordering.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Weight returns the match-score multiplier for the priority.
func (p Priority) Weight() float64 {
	switch p {
	case PriorityHigh:
		return 1.2
	case PriorityLow:
		return 0.8
	default:
		return 1.0
	}
}

// Rank returns the sort rank for the priority (lower sorts first).
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

// Source identifies where a definition was loaded from.
type Source string

const (
	SourceSystem  Source = "system"  // built-in templates, read-only
	SourceUser    Source = "user"    // user-defined, mutable
	SourcePending Source = "pending" // learned drafts, inert until promoted
)

// Definition is an immutable workflow template. Only the usage
// statistics (UsageCount, SuccessRate) change after creation.
type Definition struct {
	Name              string        `yaml:"name" json:"name"`
	Version           string        `yaml:"version" json:"version"`
	Description       string        `yaml:"description" json:"description"`
	Author            string        `yaml:"author,omitempty" json:"author,omitempty"`
	Created           string        `yaml:"created,omitempty" json:"created,omitempty"`
	Updated           string        `yaml:"updated,omitempty" json:"updated,omitempty"`
	TaskTypes         []string      `yaml:"task_types" json:"task_types"`
	AgentsRequired    []string      `yaml:"agents_required" json:"agents_required"`
	Steps             []Step        `yaml:"steps" json:"steps"`
	Hooks             Hooks         `yaml:"hooks,omitempty" json:"hooks,omitempty"`
	QualityGates      []QualityGate `yaml:"quality_gates,omitempty" json:"quality_gates,omitempty"`
	Tags              []string      `yaml:"tags,omitempty" json:"tags,omitempty"`
	Priority          Priority      `yaml:"priority,omitempty" json:"priority,omitempty"`
	EstimatedDuration int           `yaml:"estimated_duration,omitempty" json:"estimated_duration,omitempty"` // seconds
	UsageCount        int           `yaml:"usage_count" json:"usage_count"`
	SuccessRate       float64       `yaml:"success_rate" json:"success_rate"`

	// Source is assigned by the store at load time and never serialized.
	Source Source `yaml:"-" json:"-"`
}

// Step is one unit of delegated work within a workflow.
type Step struct {
	ID         string   `yaml:"id" json:"id"`
	Name       string   `yaml:"name,omitempty" json:"name,omitempty"`
	Agent      string   `yaml:"agent" json:"agent"`
	Action     string   `yaml:"action" json:"action"`
	Required   *bool    `yaml:"required,omitempty" json:"required,omitempty"`
	DependsOn  []string `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`
	Inputs     []string `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Outputs    []string `yaml:"outputs,omitempty" json:"outputs,omitempty"`
	Timeout    int      `yaml:"timeout,omitempty" json:"timeout,omitempty"` // seconds
	Validation []Rule   `yaml:"validation,omitempty" json:"validation,omitempty"`
}

// IsRequired reports whether the step is required. Steps are required
// unless explicitly marked otherwise.
func (s *Step) IsRequired() bool {
	return s.Required == nil || *s.Required
}

// TimeoutOr returns the step timeout, falling back to def when unset.
func (s *Step) TimeoutOr(def time.Duration) time.Duration {
	if s.Timeout <= 0 {
		return def
	}
	return time.Duration(s.Timeout) * time.Second
}

// GateType distinguishes manual approval gates from automatic ones.
type GateType string

const (
	GateManual    GateType = "manual"
	GateAutomatic GateType = "automatic"
)

// QualityGate is a checkpoint evaluated after a step reaches a
// terminal state.
type QualityGate struct {
	Name        string   `yaml:"name" json:"name"`
	AfterStep   string   `yaml:"after_step" json:"after_step"`
	Type        GateType `yaml:"type" json:"type"`
	Condition   string   `yaml:"condition,omitempty" json:"condition,omitempty"`
	Required    bool     `yaml:"required,omitempty" json:"required,omitempty"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
}

// HookPhase names a workflow phase boundary where hooks run.
type HookPhase string

const (
	HookPreWorkflow  HookPhase = "pre_workflow"
	HookPostWorkflow HookPhase = "post_workflow"
	HookOnError      HookPhase = "on_error"
)

// HookAction is a named side-effecting action run at a phase boundary.
type HookAction struct {
	Action      string            `yaml:"action" json:"action"`
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Params      map[string]string `yaml:"params,omitempty" json:"params,omitempty"`
	Required    bool              `yaml:"required,omitempty" json:"required,omitempty"`
}

// Hooks groups hook actions by phase.
type Hooks struct {
	PreWorkflow  []HookAction `yaml:"pre_workflow,omitempty" json:"pre_workflow,omitempty"`
	PostWorkflow []HookAction `yaml:"post_workflow,omitempty" json:"post_workflow,omitempty"`
	OnError      []HookAction `yaml:"on_error,omitempty" json:"on_error,omitempty"`
}

// ForPhase returns the actions declared for a phase.
func (h Hooks) ForPhase(p HookPhase) []HookAction {
	switch p {
	case HookPreWorkflow:
		return h.PreWorkflow
	case HookPostWorkflow:
		return h.PostWorkflow
	case HookOnError:
		return h.OnError
	}
	return nil
}

// Step returns the step with the given id.
func (d *Definition) Step(id string) (*Step, bool) {
	for i := range d.Steps {
		if d.Steps[i].ID == id {
			return &d.Steps[i], true
		}
	}
	return nil, false
}

// StepIDs returns the ids of all steps in declaration order.
func (d *Definition) StepIDs() []string {
	ids := make([]string, len(d.Steps))
	for i := range d.Steps {
		ids[i] = d.Steps[i].ID
	}
	return ids
}

// GatesAfter returns the quality gates declared after the given step.
func (d *Definition) GatesAfter(stepID string) []QualityGate {
	var gates []QualityGate
	for _, g := range d.QualityGates {
		if g.AfterStep == stepID {
			gates = append(gates, g)
		}
	}
	return gates
}

// EstimatedDurationValue returns the estimated duration as a Duration.
func (d *Definition) EstimatedDurationValue() time.Duration {
	return time.Duration(d.EstimatedDuration) * time.Second
}

// SortDefinitions orders definitions by priority rank, then name.
func SortDefinitions(defs []*Definition) {
	sort.SliceStable(defs, func(i, j int) bool {
		if defs[i].Priority.Rank() != defs[j].Priority.Rank() {
			return defs[i].Priority.Rank() < defs[j].Priority.Rank()
		}
		return defs[i].Name < defs[j].Name
	})
}
