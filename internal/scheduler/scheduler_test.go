package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/weftlabs/weft/internal/core"
	"github.com/weftlabs/weft/internal/gates"
	"github.com/weftlabs/weft/internal/hooks"
	"github.com/weftlabs/weft/internal/validate"
)

// fakeDispatcher records per-agent call windows and tracks observed
// concurrency. Steps in fixtures use a distinct agent per step so the
// agent name identifies the step.
type fakeDispatcher struct {
	delay time.Duration
	fail  map[string]bool // agent -> report failure

	mu            sync.Mutex
	windows       map[string][2]time.Time
	inFlight      int
	maxConcurrent int
}

func newFakeDispatcher(delay time.Duration) *fakeDispatcher {
	return &fakeDispatcher{
		delay:   delay,
		fail:    make(map[string]bool),
		windows: make(map[string][2]time.Time),
	}
}

func (d *fakeDispatcher) Delegate(ctx context.Context, req core.DispatchRequest) core.DispatchResult {
	start := time.Now()
	d.mu.Lock()
	d.inFlight++
	if d.inFlight > d.maxConcurrent {
		d.maxConcurrent = d.inFlight
	}
	d.mu.Unlock()

	status := core.DispatchSucceeded
	select {
	case <-time.After(d.delay):
	case <-ctx.Done():
		status = core.DispatchTimedOut
	}

	d.mu.Lock()
	d.inFlight--
	d.windows[req.Agent] = [2]time.Time{start, time.Now()}
	failed := d.fail[req.Agent]
	d.mu.Unlock()

	if failed {
		return core.DispatchResult{Status: core.DispatchFailed, Reason: "agent reported failure"}
	}
	return core.DispatchResult{Status: status}
}

func (d *fakeDispatcher) window(agent string) (start, end time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w := d.windows[agent]
	return w[0], w[1]
}

// memRecorder keeps appended records in memory.
type memRecorder struct {
	mu      sync.Mutex
	records []*core.Record
}

func (r *memRecorder) Append(_ context.Context, rec *core.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return nil
}

func (r *memRecorder) List(_ context.Context, _ int) ([]*core.Record, error) { return r.records, nil }
func (r *memRecorder) ListByWorkflow(_ context.Context, _ string, _ int) ([]*core.Record, error) {
	return r.records, nil
}
func (r *memRecorder) Close() error { return nil }

func fixture(steps ...core.Step) *core.Definition {
	return &core.Definition{
		Name:        "fixture",
		Version:     "1.0.0",
		Description: "scheduler test fixture",
		TaskTypes:   []string{"test"},
		Steps:       steps,
	}
}

func testScheduler(t *testing.T, d core.Dispatcher) (*Scheduler, *memRecorder) {
	t.Helper()
	rec := &memRecorder{}
	return &Scheduler{
		Dispatcher:         d,
		Recorder:           rec,
		Hooks:              hooks.NewRunner(nil),
		Validator:          validate.New(t.TempDir()),
		MaxParallel:        4,
		DefaultStepTimeout: 5 * time.Second,
		Workspace:          t.TempDir(),
	}, rec
}

func stepResult(t *testing.T, rec *core.Record, id string) core.StepResult {
	t.Helper()
	for _, s := range rec.Steps {
		if s.StepID == id {
			return s
		}
	}
	t.Fatalf("record has no step %q", id)
	return core.StepResult{}
}

func TestRun_DependencyOrdering(t *testing.T) {
	d := newFakeDispatcher(20 * time.Millisecond)
	s, _ := testScheduler(t, d)
	def := fixture(
		core.Step{ID: "first", Agent: "first", Action: "a"},
		core.Step{ID: "second", Agent: "second", Action: "a", DependsOn: []string{"first"}},
	)

	rec, err := s.Run(context.Background(), def, "task")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if rec.Outcome != core.OutcomeCompleted {
		t.Errorf("Outcome = %q, want completed", rec.Outcome)
	}
	_, firstEnd := d.window("first")
	secondStart, _ := d.window("second")
	if secondStart.Before(firstEnd) {
		t.Errorf("dependent step started %v before its dependency ended %v", secondStart, firstEnd)
	}
}

func TestRun_IndependentStepsOverlap(t *testing.T) {
	d := newFakeDispatcher(60 * time.Millisecond)
	s, _ := testScheduler(t, d)
	def := fixture(
		core.Step{ID: "left", Agent: "left", Action: "a"},
		core.Step{ID: "right", Agent: "right", Action: "a"},
	)

	if _, err := s.Run(context.Background(), def, "task"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	leftStart, leftEnd := d.window("left")
	rightStart, rightEnd := d.window("right")
	if leftEnd.Before(rightStart) || rightEnd.Before(leftStart) {
		t.Error("independent steps did not overlap, want concurrent execution windows")
	}
}

func TestRun_BoundedParallelism(t *testing.T) {
	d := newFakeDispatcher(30 * time.Millisecond)
	s, _ := testScheduler(t, d)
	s.MaxParallel = 2
	def := fixture(
		core.Step{ID: "s1", Agent: "s1", Action: "a"},
		core.Step{ID: "s2", Agent: "s2", Action: "a"},
		core.Step{ID: "s3", Agent: "s3", Action: "a"},
		core.Step{ID: "s4", Agent: "s4", Action: "a"},
	)

	if _, err := s.Run(context.Background(), def, "task"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if d.maxConcurrent > 2 {
		t.Errorf("observed %d concurrent dispatches, want at most 2", d.maxConcurrent)
	}
}

func TestRun_RequiredFailureSkipsDependentsAndAborts(t *testing.T) {
	d := newFakeDispatcher(5 * time.Millisecond)
	d.fail["breaks"] = true
	s, rec := testScheduler(t, d)
	def := fixture(
		core.Step{ID: "breaks", Agent: "breaks", Action: "a"},
		core.Step{ID: "downstream", Agent: "downstream", Action: "a", DependsOn: []string{"breaks"}},
	)

	record, err := s.Run(context.Background(), def, "task")
	if err == nil {
		t.Fatal("Run() should fail when a required step fails")
	}
	if core.GetCode(err) != core.CodeRunAborted {
		t.Errorf("GetCode() = %q, want %q", core.GetCode(err), core.CodeRunAborted)
	}
	if record.Outcome != core.OutcomeAborted {
		t.Errorf("Outcome = %q, want aborted", record.Outcome)
	}
	if got := stepResult(t, record, "breaks").Status; got != core.StepFailed {
		t.Errorf("breaks status = %q, want failed", got)
	}
	if got := stepResult(t, record, "downstream").Status; got != core.StepSkipped {
		t.Errorf("downstream status = %q, want skipped", got)
	}
	// Aborted runs are still recorded.
	if len(rec.records) != 1 {
		t.Errorf("recorded %d records, want 1", len(rec.records))
	}
}

func TestRun_OptionalFailureDoesNotAbort(t *testing.T) {
	d := newFakeDispatcher(5 * time.Millisecond)
	d.fail["flaky"] = true
	s, _ := testScheduler(t, d)
	optional := false
	def := fixture(
		core.Step{ID: "flaky", Agent: "flaky", Action: "a", Required: &optional},
		core.Step{ID: "solid", Agent: "solid", Action: "a"},
	)

	record, err := s.Run(context.Background(), def, "task")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if record.Outcome != core.OutcomeCompleted {
		t.Errorf("Outcome = %q, want completed despite optional failure", record.Outcome)
	}
	if got := stepResult(t, record, "flaky").Status; got != core.StepFailed {
		t.Errorf("flaky status = %q, want failed", got)
	}
}

func TestRun_DependentOfOptionalFailureIsSkipped(t *testing.T) {
	d := newFakeDispatcher(5 * time.Millisecond)
	d.fail["flaky"] = true
	s, _ := testScheduler(t, d)
	optional := false
	def := fixture(
		core.Step{ID: "flaky", Agent: "flaky", Action: "a", Required: &optional},
		core.Step{ID: "child", Agent: "child", Action: "a", DependsOn: []string{"flaky"}, Required: &optional},
	)

	record, err := s.Run(context.Background(), def, "task")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := stepResult(t, record, "child").Status; got != core.StepSkipped {
		t.Errorf("child status = %q, want skipped (dependency did not succeed)", got)
	}
}

func TestRun_StepTimeout(t *testing.T) {
	d := newFakeDispatcher(time.Second)
	s, _ := testScheduler(t, d)
	s.DefaultStepTimeout = 30 * time.Millisecond
	def := fixture(core.Step{ID: "slow", Agent: "slow", Action: "a"})

	record, err := s.Run(context.Background(), def, "task")
	if err == nil {
		t.Fatal("Run() should fail for a timed-out required step")
	}
	if core.GetCode(err) != core.CodeStepTimeout {
		t.Errorf("GetCode() = %q, want %q", core.GetCode(err), core.CodeStepTimeout)
	}
	if got := stepResult(t, record, "slow").Status; got != core.StepTimedOut {
		t.Errorf("slow status = %q, want timed_out", got)
	}
}

func TestRun_ValidationFailureFailsStep(t *testing.T) {
	d := newFakeDispatcher(5 * time.Millisecond)
	s, _ := testScheduler(t, d)
	def := fixture(core.Step{
		ID: "writer", Agent: "writer", Action: "a",
		Validation: []core.Rule{core.NewRule(core.OutputExists{Path: "never-written.md"})},
	})

	record, err := s.Run(context.Background(), def, "task")
	if err == nil {
		t.Fatal("Run() should fail when output validation fails")
	}
	if core.GetCode(err) != core.CodeStepValidation {
		t.Errorf("GetCode() = %q, want %q", core.GetCode(err), core.CodeStepValidation)
	}
	res := stepResult(t, record, "writer")
	if res.Status != core.StepFailed {
		t.Errorf("writer status = %q, want failed", res.Status)
	}
	if len(res.Validation) != 1 || res.Validation[0].Passed {
		t.Errorf("Validation = %+v, want one failed result", res.Validation)
	}
}

func TestRun_RequiredGateRejectionAborts(t *testing.T) {
	d := newFakeDispatcher(5 * time.Millisecond)
	s, _ := testScheduler(t, d)
	s.Gates = &gates.Evaluator{Workspace: s.Workspace}
	def := fixture(
		core.Step{ID: "build", Agent: "build", Action: "a"},
		core.Step{ID: "ship", Agent: "ship", Action: "a", DependsOn: []string{"build"}},
	)
	def.QualityGates = []core.QualityGate{{
		Name:      "artifact-present",
		AfterStep: "build",
		Type:      core.GateAutomatic,
		Condition: "output:missing-artifact.tar",
		Required:  true,
	}}

	record, err := s.Run(context.Background(), def, "task")
	if err == nil {
		t.Fatal("Run() should fail when a required gate rejects")
	}
	var domErr *core.DomainError
	if !errors.As(err, &domErr) || domErr.Code != core.CodeGateRejected {
		t.Errorf("error = %v, want GATE_REJECTED", err)
	}
	if got := stepResult(t, record, "ship").Status; got != core.StepSkipped {
		t.Errorf("ship status = %q, want skipped after gate rejection", got)
	}
	if len(record.Gates) != 1 || record.Gates[0].Passed {
		t.Errorf("Gates = %+v, want one failed decision", record.Gates)
	}
}

func TestRun_PassingAutomaticGate(t *testing.T) {
	d := newFakeDispatcher(5 * time.Millisecond)
	s, _ := testScheduler(t, d)
	s.Gates = &gates.Evaluator{Workspace: s.Workspace}
	def := fixture(
		core.Step{ID: "build", Agent: "build", Action: "a"},
		core.Step{ID: "ship", Agent: "ship", Action: "a", DependsOn: []string{"build"}},
	)
	def.QualityGates = []core.QualityGate{{
		Name:      "build-ok",
		AfterStep: "build",
		Type:      core.GateAutomatic,
		Condition: "build.succeeded",
		Required:  true,
	}}

	record, err := s.Run(context.Background(), def, "task")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if record.Outcome != core.OutcomeCompleted {
		t.Errorf("Outcome = %q, want completed", record.Outcome)
	}
	if len(record.Gates) != 1 || !record.Gates[0].Passed {
		t.Errorf("Gates = %+v, want one passed decision", record.Gates)
	}
}

func TestRun_RecordCarriesIdentityAndTimes(t *testing.T) {
	d := newFakeDispatcher(5 * time.Millisecond)
	s, rec := testScheduler(t, d)
	def := fixture(core.Step{ID: "only", Agent: "only", Action: "a"})

	record, err := s.Run(context.Background(), def, "describe the task")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if record.ID == "" {
		t.Error("record ID is empty")
	}
	if record.WorkflowName != "fixture" || record.Task != "describe the task" {
		t.Errorf("record identity = %q/%q, want fixture/describe the task", record.WorkflowName, record.Task)
	}
	if !record.EndedAt.After(record.StartedAt) {
		t.Errorf("EndedAt %v not after StartedAt %v", record.EndedAt, record.StartedAt)
	}
	if len(rec.records) != 1 || rec.records[0].ID != record.ID {
		t.Error("record was not appended to the recorder")
	}
}

func TestRun_WideFanOut(t *testing.T) {
	d := newFakeDispatcher(5 * time.Millisecond)
	s, _ := testScheduler(t, d)
	s.MaxParallel = 8
	steps := []core.Step{{ID: "root", Agent: "root", Action: "a"}}
	for _, id := range []string{"f1", "f2", "f3", "f4", "f5", "f6", "f7", "f8"} {
		steps = append(steps, core.Step{ID: id, Agent: id, Action: "a", DependsOn: []string{"root"}})
	}
	def := fixture(steps...)

	record, err := s.Run(context.Background(), def, "task")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if record.Outcome != core.OutcomeCompleted {
		t.Errorf("Outcome = %q, want completed", record.Outcome)
	}
	rootEnd := func() time.Time { _, end := d.window("root"); return end }()
	for _, s := range record.Steps {
		if s.Status != core.StepSucceeded {
			t.Errorf("%s status = %q, want succeeded", s.StepID, s.Status)
		}
		if s.StepID == "root" {
			continue
		}
		start, _ := d.window(s.StepID)
		if start.Before(rootEnd) {
			t.Errorf("%s started %v before root finished %v", s.StepID, start, rootEnd)
		}
	}
}

func TestRun_PostWorkflowHooksRunOnAbortedRun(t *testing.T) {
	d := newFakeDispatcher(5 * time.Millisecond)
	d.fail["breaks"] = true
	s, _ := testScheduler(t, d)

	var mu sync.Mutex
	var fired []string
	s.Hooks.Register("note", core.HookHandlerFunc(func(_ context.Context, action core.HookAction, _ core.RunContext) error {
		mu.Lock()
		fired = append(fired, action.Params["tag"])
		mu.Unlock()
		return nil
	}))

	def := fixture(core.Step{ID: "breaks", Agent: "breaks", Action: "a"})
	def.Hooks = core.Hooks{
		PostWorkflow: []core.HookAction{{Action: "note", Params: map[string]string{"tag": "post"}}},
		OnError:      []core.HookAction{{Action: "note", Params: map[string]string{"tag": "error"}}},
	}

	record, err := s.Run(context.Background(), def, "task")
	if err == nil {
		t.Fatal("Run() should fail when a required step fails")
	}
	if record.Outcome != core.OutcomeAborted {
		t.Errorf("Outcome = %q, want aborted", record.Outcome)
	}
	// Cleanup hooks run even when the run aborted, after on_error.
	want := []string{"error", "post"}
	if len(fired) != len(want) {
		t.Fatalf("hooks fired = %v, want %v", fired, want)
	}
	for i := range want {
		if fired[i] != want[i] {
			t.Errorf("hooks fired = %v, want %v", fired, want)
		}
	}
}

func TestRun_OnErrorHooksSkippedOnCompletedRun(t *testing.T) {
	d := newFakeDispatcher(5 * time.Millisecond)
	s, _ := testScheduler(t, d)

	var mu sync.Mutex
	var fired []string
	s.Hooks.Register("note", core.HookHandlerFunc(func(_ context.Context, action core.HookAction, _ core.RunContext) error {
		mu.Lock()
		fired = append(fired, action.Params["tag"])
		mu.Unlock()
		return nil
	}))

	def := fixture(core.Step{ID: "only", Agent: "only", Action: "a"})
	def.Hooks = core.Hooks{
		PostWorkflow: []core.HookAction{{Action: "note", Params: map[string]string{"tag": "post"}}},
		OnError:      []core.HookAction{{Action: "note", Params: map[string]string{"tag": "error"}}},
	}

	if _, err := s.Run(context.Background(), def, "task"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(fired) != 1 || fired[0] != "post" {
		t.Errorf("hooks fired = %v, want [post]", fired)
	}
}
