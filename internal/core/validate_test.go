package core

import (
	"testing"
)

func validDefinition() *Definition {
	return &Definition{
		Name:        "code-review",
		Version:     "1.0.0",
		Description: "Review code changes",
		TaskTypes:   []string{"review"},
		Steps: []Step{
			{ID: "analyze", Agent: "reviewer", Action: "Analyze the diff"},
			{ID: "report", Agent: "writer", Action: "Write findings", DependsOn: []string{"analyze"}},
		},
	}
}

func TestValidateDefinition_OK(t *testing.T) {
	if err := ValidateDefinition(validDefinition()); err != nil {
		t.Fatalf("ValidateDefinition() error = %v", err)
	}
}

func TestValidateDefinition_SchemaErrors(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Definition)
		wantCode string
	}{
		{
			name:     "missing name",
			mutate:   func(d *Definition) { d.Name = "" },
			wantCode: CodeSchemaError,
		},
		{
			name:     "invalid name",
			mutate:   func(d *Definition) { d.Name = "-bad name!" },
			wantCode: CodeSchemaError,
		},
		{
			name:     "missing version",
			mutate:   func(d *Definition) { d.Version = "" },
			wantCode: CodeSchemaError,
		},
		{
			name:     "missing description",
			mutate:   func(d *Definition) { d.Description = "" },
			wantCode: CodeSchemaError,
		},
		{
			name:     "invalid priority",
			mutate:   func(d *Definition) { d.Priority = "urgent" },
			wantCode: CodeSchemaError,
		},
		{
			name:     "duplicate step id",
			mutate:   func(d *Definition) { d.Steps[1].ID = "analyze" },
			wantCode: CodeSchemaError,
		},
		{
			name:     "missing agent",
			mutate:   func(d *Definition) { d.Steps[0].Agent = "" },
			wantCode: CodeSchemaError,
		},
		{
			name:     "negative timeout",
			mutate:   func(d *Definition) { d.Steps[0].Timeout = -5 },
			wantCode: CodeSchemaError,
		},
		{
			name:     "dangling dependency",
			mutate:   func(d *Definition) { d.Steps[1].DependsOn = []string{"nope"} },
			wantCode: CodeDanglingReference,
		},
		{
			name:     "self dependency cycle",
			mutate:   func(d *Definition) { d.Steps[0].DependsOn = []string{"report"} },
			wantCode: CodeCycleDetected,
		},
		{
			name: "gate after unknown step",
			mutate: func(d *Definition) {
				d.QualityGates = []QualityGate{{Name: "g", AfterStep: "nope", Type: GateManual}}
			},
			wantCode: CodeDanglingReference,
		},
		{
			name: "gate with bad type",
			mutate: func(d *Definition) {
				d.QualityGates = []QualityGate{{Name: "g", AfterStep: "analyze", Type: "psychic"}}
			},
			wantCode: CodeSchemaError,
		},
		{
			name: "hook without action",
			mutate: func(d *Definition) {
				d.Hooks.PreWorkflow = []HookAction{{Description: "no action set"}}
			},
			wantCode: CodeSchemaError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := validDefinition()
			tt.mutate(def)
			err := ValidateDefinition(def)
			if err == nil {
				t.Fatal("ValidateDefinition() should fail")
			}
			if GetCode(err) != tt.wantCode {
				t.Errorf("GetCode() = %q, want %q (err: %v)", GetCode(err), tt.wantCode, err)
			}
		})
	}
}

func TestExitCode_Mapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{ErrSchema("x", "bad"), 2},
		{ErrReadOnly("sys"), 2},
		{ErrCycle("w", "cycle"), 3},
		{ErrDangling("w/steps/a", "b"), 4},
		{ErrOutputConflict("w", "a", "b", "out.md"), 5},
		{ErrMatchNotFound("task"), 6},
		{ErrWorkflowNotFound("w"), 6},
		{ErrStepTimeout("w", "s"), 7},
		{ErrStepValidation("w", "s", "too short"), 8},
		{ErrRunAborted("w", "required step failed"), 8},
		{ErrHookFailed(HookPreWorkflow, "log", "boom"), 9},
		{ErrGateRejected("review", "rejected"), 10},
	}
	for _, tt := range tests {
		if got := ExitCode(tt.err); got != tt.want {
			t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
