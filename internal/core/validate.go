package core

import (
	"fmt"
	"regexp"
)

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// ValidateDefinition runs the full load-time validation pipeline:
// schema, dangling references, cycle detection, and the
// disjoint-output invariant for concurrently eligible steps. The first
// violation is returned with the offending field path.
func ValidateDefinition(d *Definition) error {
	if err := validateSchema(d); err != nil {
		return err
	}

	g, err := NewGraph(d)
	if err != nil {
		return err
	}
	if _, err := g.TopoSort(); err != nil {
		return err
	}
	if err := g.CheckOutputConflicts(); err != nil {
		return err
	}

	return nil
}

func validateSchema(d *Definition) error {
	if d.Name == "" {
		return ErrSchema("name", "missing required field")
	}
	if !namePattern.MatchString(d.Name) {
		return ErrSchema(d.Name+"/name", "workflow name must be alphanumeric with hyphens or underscores")
	}
	if d.Version == "" {
		return ErrSchema(d.Name+"/version", "missing required field")
	}
	if d.Description == "" {
		return ErrSchema(d.Name+"/description", "missing required field")
	}
	switch d.Priority {
	case "", PriorityHigh, PriorityMedium, PriorityLow:
	default:
		return ErrSchema(d.Name+"/priority", fmt.Sprintf("invalid priority %q", d.Priority))
	}

	seen := make(map[string]bool, len(d.Steps))
	for i := range d.Steps {
		s := &d.Steps[i]
		path := fmt.Sprintf("%s/steps[%d]", d.Name, i)
		if s.ID == "" {
			return ErrSchema(path+"/id", "missing required field")
		}
		if seen[s.ID] {
			return ErrSchema(path+"/id", fmt.Sprintf("duplicate step id %q", s.ID))
		}
		seen[s.ID] = true
		if s.Agent == "" {
			return ErrSchema(d.Name+"/steps/"+s.ID+"/agent", "missing required field")
		}
		if s.Action == "" {
			return ErrSchema(d.Name+"/steps/"+s.ID+"/action", "missing required field")
		}
		if s.Timeout < 0 {
			return ErrSchema(d.Name+"/steps/"+s.ID+"/timeout", "timeout cannot be negative")
		}
		for j, r := range s.Validation {
			if r.Variant() == nil {
				return ErrSchema(fmt.Sprintf("%s/steps/%s/validation[%d]", d.Name, s.ID, j), "rule has no type")
			}
		}
	}

	for i, gate := range d.QualityGates {
		path := fmt.Sprintf("%s/quality_gates[%d]", d.Name, i)
		if gate.Name == "" {
			return ErrSchema(path+"/name", "missing required field")
		}
		if gate.AfterStep == "" {
			return ErrSchema(path+"/after_step", "missing required field")
		}
		if !seen[gate.AfterStep] {
			return ErrDangling(d.Name+"/quality_gates/"+gate.Name+"/after_step", gate.AfterStep)
		}
		switch gate.Type {
		case GateManual, GateAutomatic:
		default:
			return ErrSchema(path+"/type", fmt.Sprintf("invalid gate type %q", gate.Type))
		}
	}

	for _, phase := range []HookPhase{HookPreWorkflow, HookPostWorkflow, HookOnError} {
		for i, action := range d.Hooks.ForPhase(phase) {
			if action.Action == "" {
				return ErrSchema(fmt.Sprintf("%s/hooks/%s[%d]/action", d.Name, phase, i), "missing required field")
			}
		}
	}

	return nil
}
