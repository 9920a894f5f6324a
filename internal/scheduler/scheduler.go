// Package scheduler executes workflow definitions wave by wave with
// bounded parallelism.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/weftlabs/weft/internal/core"
	"github.com/weftlabs/weft/internal/gates"
	"github.com/weftlabs/weft/internal/hooks"
	"github.com/weftlabs/weft/internal/logging"
	"github.com/weftlabs/weft/internal/validate"
)

// Scheduler runs one workflow at a time. Steps inside a wave run
// concurrently up to MaxParallel; waves are separated by a barrier
// where quality gates are decided.
type Scheduler struct {
	Dispatcher core.Dispatcher
	Recorder   core.Recorder
	Hooks      *hooks.Runner
	Gates      *gates.Evaluator
	Validator  *validate.Validator
	Logger     *logging.Logger

	// MaxParallel bounds concurrent steps within a wave. Values below
	// one run steps serially.
	MaxParallel int

	// DefaultStepTimeout applies to steps that declare no timeout.
	DefaultStepTimeout time.Duration

	Workspace string
}

// stepOutcome pairs a step with its result. Outcomes travel as values;
// a failing step must never cancel its in-flight siblings.
type stepOutcome struct {
	id     string
	result core.StepResult
}

// Run executes the definition for the given task and returns the
// execution record. The record is always appended to the recorder,
// aborted runs included; the error reports why a run did not complete.
func (s *Scheduler) Run(ctx context.Context, def *core.Definition, task string) (*core.Record, error) {
	logger := s.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.WithWorkflow(def.Name)

	graph, err := core.NewGraph(def)
	if err != nil {
		return nil, err
	}
	if _, err := graph.TopoSort(); err != nil {
		return nil, err
	}

	rec := &core.Record{
		ID:              uuid.NewString(),
		WorkflowName:    def.Name,
		WorkflowVersion: def.Version,
		Task:            task,
		StartedAt:       time.Now().UTC(),
	}
	rc := core.RunContext{
		RecordID:     rec.ID,
		WorkflowName: def.Name,
		Task:         task,
		Workspace:    s.Workspace,
	}

	results := make(map[string]*core.StepResult, len(def.Steps))
	var runErr error

	if s.Hooks != nil {
		if err := s.Hooks.RunPhase(ctx, def.Hooks, core.HookPreWorkflow, rc); err != nil {
			runErr = err
		}
	}

	var gateLog []core.GateDecision
	if runErr == nil {
		runErr = s.runWaves(ctx, def, graph, rc, results, &gateLog, logger)
	}
	rec.Gates = gateLog

	// Anything never reached is recorded as skipped.
	for _, id := range def.StepIDs() {
		if _, ok := results[id]; !ok {
			step, _ := def.Step(id)
			results[id] = &core.StepResult{
				StepID: id,
				Name:   step.Name,
				Agent:  step.Agent,
				Status: core.StepSkipped,
				Reason: "run aborted before step was scheduled",
			}
		}
	}

	rec.EndedAt = time.Now().UTC()
	rec.Outcome = core.OutcomeCompleted
	if runErr != nil {
		rec.Outcome = core.OutcomeAborted
	}
	for _, id := range def.StepIDs() {
		rec.Steps = append(rec.Steps, *results[id])
	}

	// on_error fires once on an aborted run; post_workflow fires
	// after the final wave no matter how the run ended.
	if s.Hooks != nil {
		phases := []core.HookPhase{core.HookPostWorkflow}
		if runErr != nil {
			phases = []core.HookPhase{core.HookOnError, core.HookPostWorkflow}
		}
		for _, phase := range phases {
			if err := s.Hooks.RunPhase(ctx, def.Hooks, phase, rc); err != nil {
				logger.Error("lifecycle hook failed", "phase", string(phase), "error", err)
				if runErr == nil {
					runErr = err
					rec.Outcome = core.OutcomeAborted
				}
			}
		}
	}

	if s.Recorder != nil {
		if err := s.Recorder.Append(ctx, rec); err != nil {
			logger.Error("recording run failed", "error", err)
			if runErr == nil {
				runErr = fmt.Errorf("recording run: %w", err)
			}
		}
	}

	logger.Info("run finished",
		"run", rec.ID,
		"outcome", string(rec.Outcome),
		"duration", rec.EndedAt.Sub(rec.StartedAt).Round(time.Millisecond))
	return rec, runErr
}

// runWaves drives the wave loop. It fills results for every step it
// reaches and returns the first abort cause, or nil when all waves
// completed.
func (s *Scheduler) runWaves(ctx context.Context, def *core.Definition, graph *core.Graph, rc core.RunContext, results map[string]*core.StepResult, gateLog *[]core.GateDecision, logger *logging.Logger) error {
	for waveNum, wave := range graph.Waves() {
		if err := ctx.Err(); err != nil {
			return err
		}
		logger.Debug("starting wave", "wave", waveNum, "steps", len(wave))

		// Skip decisions for the whole wave are settled before any
		// goroutine launches: once workers share the results map, no
		// one else may touch it unguarded.
		var runnable []*core.Step
		for _, id := range wave {
			step, _ := def.Step(id)
			if reason := blockedReason(graph, results, id); reason != "" {
				results[id] = &core.StepResult{
					StepID: id,
					Name:   step.Name,
					Agent:  step.Agent,
					Status: core.StepSkipped,
					Reason: reason,
				}
				logger.Info("step skipped", "step", id, "reason", reason)
				continue
			}
			runnable = append(runnable, step)
		}

		var mu sync.Mutex
		var g errgroup.Group
		if s.MaxParallel > 0 {
			g.SetLimit(s.MaxParallel)
		}
		for _, step := range runnable {
			step := step
			g.Go(func() error {
				res := s.runStep(ctx, def, step, rc, logger)
				mu.Lock()
				results[step.ID] = &res
				mu.Unlock()
				return nil
			})
		}
		// The barrier: every step of the wave reaches a terminal state
		// before any gate is decided or the next wave starts.
		_ = g.Wait()

		if err := s.evaluateWaveGates(ctx, def, wave, results, gateLog, logger); err != nil {
			return err
		}

		if err := requiredFailure(def, wave, results); err != nil {
			return err
		}
	}
	return nil
}

// blockedReason reports why a step must be skipped, or "" when all its
// dependencies succeeded.
func blockedReason(graph *core.Graph, results map[string]*core.StepResult, id string) string {
	for _, dep := range graph.Dependencies(id) {
		res, ok := results[dep]
		if !ok {
			return fmt.Sprintf("dependency %s was never scheduled", dep)
		}
		if res.Status != core.StepSucceeded {
			return fmt.Sprintf("dependency %s %s", dep, res.Status)
		}
	}
	return ""
}

// runStep dispatches one step and validates its outputs. All outcomes
// are values; only the caller decides whether a failure aborts the run.
func (s *Scheduler) runStep(ctx context.Context, def *core.Definition, step *core.Step, rc core.RunContext, logger *logging.Logger) core.StepResult {
	started := time.Now().UTC()
	res := core.StepResult{
		StepID:    step.ID,
		Name:      step.Name,
		Agent:     step.Agent,
		StartedAt: &started,
	}
	slog := logger.WithStep(step.ID)
	slog.Info("dispatching step", "agent", step.Agent, "action", step.Action)

	timeout := step.TimeoutOr(s.DefaultStepTimeout)
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dr := s.Dispatcher.Delegate(stepCtx, core.DispatchRequest{
		Agent:     step.Agent,
		Action:    step.Action,
		Inputs:    step.Inputs,
		Workspace: s.Workspace,
		Timeout:   timeout,
	})
	ended := time.Now().UTC()
	res.EndedAt = &ended
	res.Outputs = dr.Outputs
	res.Reason = dr.Reason

	switch dr.Status {
	case core.DispatchSucceeded:
		res.Status = core.StepSucceeded
	case core.DispatchTimedOut:
		res.Status = core.StepTimedOut
		if res.Reason == "" {
			res.Reason = fmt.Sprintf("exceeded timeout of %s", timeout)
		}
	default:
		res.Status = core.StepFailed
	}
	// A dispatcher that reports plain failure after the deadline fired
	// is still a timeout.
	if stepCtx.Err() == context.DeadlineExceeded && res.Status == core.StepFailed {
		res.Status = core.StepTimedOut
		if res.Reason == "" {
			res.Reason = fmt.Sprintf("exceeded timeout of %s", timeout)
		}
	}

	if res.Status == core.StepSucceeded && s.Validator != nil && len(step.Validation) > 0 {
		res.Validation = s.Validator.Evaluate(step.Validation)
		if !validate.AllPassed(res.Validation) {
			res.Status = core.StepFailed
			for _, v := range res.Validation {
				if !v.Passed {
					res.Reason = v.Reason
					break
				}
			}
		}
	}

	slog.Info("step finished",
		"status", string(res.Status),
		"duration", res.Duration().Round(time.Millisecond))
	return res
}

// evaluateWaveGates decides every gate attached to a step of this wave.
// Gates run serially at the barrier. A failing required gate aborts the
// run; failing optional gates are recorded and logged only.
func (s *Scheduler) evaluateWaveGates(ctx context.Context, def *core.Definition, wave []string, results map[string]*core.StepResult, gateLog *[]core.GateDecision, logger *logging.Logger) error {
	if s.Gates == nil {
		return nil
	}
	for _, id := range wave {
		for _, gate := range def.GatesAfter(id) {
			d := s.Gates.Evaluate(ctx, gate, results)
			*gateLog = append(*gateLog, d)
			if !d.Passed {
				if gate.Required {
					return core.ErrGateRejected(gate.Name, d.Reason)
				}
				logger.Warn("optional gate failed", "gate", gate.Name, "reason", d.Reason)
			}
		}
	}
	return nil
}

// requiredFailure returns the abort cause when a required step of the
// wave did not succeed. The error preserves the specific failure mode.
func requiredFailure(def *core.Definition, wave []string, results map[string]*core.StepResult) error {
	for _, id := range wave {
		step, _ := def.Step(id)
		if !step.IsRequired() {
			continue
		}
		res := results[id]
		switch res.Status {
		case core.StepSucceeded:
		case core.StepTimedOut:
			return core.ErrStepTimeout(def.Name, id)
		case core.StepFailed:
			if len(res.Validation) > 0 && !validate.AllPassed(res.Validation) {
				return core.ErrStepValidation(def.Name, id, res.Reason)
			}
			return core.ErrRunAborted(def.Name, fmt.Sprintf("required step %s failed: %s", id, res.Reason))
		case core.StepSkipped:
			return core.ErrRunAborted(def.Name, fmt.Sprintf("required step %s skipped: %s", id, res.Reason))
		}
	}
	return nil
}
