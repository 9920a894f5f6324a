// Package gates evaluates quality gates between workflow waves.
package gates

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/weftlabs/weft/internal/core"
	"github.com/weftlabs/weft/internal/fsutil"
	"github.com/weftlabs/weft/internal/logging"
)

// Evaluator decides quality gates. Manual gates ask the configured
// Approver; automatic gates evaluate their condition against completed
// step results and the workspace.
type Evaluator struct {
	// Workspace resolves output: conditions.
	Workspace string

	// Approver answers manual gates. Nil means every manual gate is
	// rejected unless AutoApprove is set.
	Approver core.Approver

	// ApprovalTimeout bounds how long one manual gate may wait.
	ApprovalTimeout time.Duration

	// AutoApprove passes manual gates without consulting the Approver.
	AutoApprove bool

	Logger *logging.Logger
}

// Evaluate decides one gate. The returned decision always carries a
// reason when the gate did not pass.
func (e *Evaluator) Evaluate(ctx context.Context, gate core.QualityGate, steps map[string]*core.StepResult) core.GateDecision {
	d := core.GateDecision{Name: gate.Name, AfterStep: gate.AfterStep}
	switch gate.Type {
	case core.GateManual:
		d.Passed, d.Reason = e.manual(ctx, gate)
	case core.GateAutomatic:
		d.Passed, d.Reason = e.automatic(gate.Condition, steps)
	default:
		d.Reason = fmt.Sprintf("unknown gate type %q", gate.Type)
	}
	if e.Logger != nil {
		e.Logger.Debug("gate evaluated", "gate", gate.Name, "passed", d.Passed, "reason", d.Reason)
	}
	return d
}

func (e *Evaluator) manual(ctx context.Context, gate core.QualityGate) (bool, string) {
	if e.AutoApprove {
		return true, ""
	}
	if e.Approver == nil {
		return false, "manual gate has no approver configured"
	}
	if e.ApprovalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.ApprovalTimeout)
		defer cancel()
	}
	ok, err := e.Approver.Approve(ctx, gate)
	if err != nil {
		if ctx.Err() != nil {
			return false, "approval timed out"
		}
		return false, fmt.Sprintf("approval failed: %v", err)
	}
	if !ok {
		return false, "rejected by approver"
	}
	return true, ""
}

// automatic evaluates a condition expression. The grammar is small:
//
//	<step-id>.succeeded   the step finished with status succeeded
//	<step-id>.validated   the step succeeded and every rule passed
//	output:<path>         the workspace-relative path exists
//
// An empty condition passes; anything unrecognized fails closed.
func (e *Evaluator) automatic(condition string, steps map[string]*core.StepResult) (bool, string) {
	cond := strings.TrimSpace(condition)
	if cond == "" {
		return true, ""
	}
	if path, ok := strings.CutPrefix(cond, "output:"); ok {
		path = strings.TrimSpace(path)
		full := path
		if !filepath.IsAbs(full) {
			full = filepath.Join(e.Workspace, full)
		}
		if !fsutil.Exists(full) {
			return false, fmt.Sprintf("required output %s does not exist", path)
		}
		return true, ""
	}
	if id, ok := strings.CutSuffix(cond, ".succeeded"); ok {
		step, found := steps[id]
		if !found {
			return false, fmt.Sprintf("condition references unknown step %q", id)
		}
		if step.Status != core.StepSucceeded {
			return false, fmt.Sprintf("step %s has status %s", id, step.Status)
		}
		return true, ""
	}
	if id, ok := strings.CutSuffix(cond, ".validated"); ok {
		step, found := steps[id]
		if !found {
			return false, fmt.Sprintf("condition references unknown step %q", id)
		}
		if step.Status != core.StepSucceeded {
			return false, fmt.Sprintf("step %s has status %s", id, step.Status)
		}
		for _, v := range step.Validation {
			if !v.Passed {
				return false, fmt.Sprintf("step %s failed validation: %s", id, v.Reason)
			}
		}
		return true, ""
	}
	return false, fmt.Sprintf("unrecognized gate condition %q", cond)
}
