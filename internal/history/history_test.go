package history

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/weftlabs/weft/internal/core"
)

func record(workflow string, start time.Time, outcome core.Outcome) *core.Record {
	return &core.Record{
		ID:           uuid.NewString(),
		WorkflowName: workflow,
		Task:         "task for " + workflow,
		StartedAt:    start,
		EndedAt:      start.Add(time.Minute),
		Outcome:      outcome,
		Steps: []core.StepResult{
			{StepID: "one", Agent: "a", Status: core.StepSucceeded},
		},
	}
}

// backends runs a subtest against every recorder implementation so both
// stay behaviorally interchangeable.
func backends(t *testing.T, fn func(t *testing.T, rec core.Recorder)) {
	t.Helper()
	t.Run("jsonl", func(t *testing.T) {
		rec, err := NewJSONLRecorder(t.TempDir())
		if err != nil {
			t.Fatalf("NewJSONLRecorder() error = %v", err)
		}
		defer rec.Close()
		fn(t, rec)
	})
	t.Run("sqlite", func(t *testing.T) {
		rec, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "history.db"))
		if err != nil {
			t.Fatalf("NewSQLiteRecorder() error = %v", err)
		}
		defer rec.Close()
		fn(t, rec)
	})
}

func TestRecorder_AppendAndListNewestFirst(t *testing.T) {
	backends(t, func(t *testing.T, rec core.Recorder) {
		ctx := context.Background()
		base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
		for i := 0; i < 5; i++ {
			r := record("deploy", base.Add(time.Duration(i)*time.Hour), core.OutcomeCompleted)
			r.Task = fmt.Sprintf("run %d", i)
			if err := rec.Append(ctx, r); err != nil {
				t.Fatalf("Append() error = %v", err)
			}
		}

		got, err := rec.List(ctx, 0)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(got) != 5 {
			t.Fatalf("List() = %d records, want 5", len(got))
		}
		for i := 1; i < len(got); i++ {
			if got[i].StartedAt.After(got[i-1].StartedAt) {
				t.Errorf("records out of order: %v before %v", got[i-1].StartedAt, got[i].StartedAt)
			}
		}
		if got[0].Task != "run 4" {
			t.Errorf("newest Task = %q, want run 4", got[0].Task)
		}
	})
}

func TestRecorder_ListLimit(t *testing.T) {
	backends(t, func(t *testing.T, rec core.Recorder) {
		ctx := context.Background()
		base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
		for i := 0; i < 4; i++ {
			if err := rec.Append(ctx, record("w", base.Add(time.Duration(i)*time.Minute), core.OutcomeCompleted)); err != nil {
				t.Fatalf("Append() error = %v", err)
			}
		}
		got, err := rec.List(ctx, 2)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(got) != 2 {
			t.Errorf("List(2) = %d records, want 2", len(got))
		}
	})
}

func TestRecorder_ListByWorkflow(t *testing.T) {
	backends(t, func(t *testing.T, rec core.Recorder) {
		ctx := context.Background()
		base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
		for i, name := range []string{"alpha", "beta", "alpha", ""} {
			if err := rec.Append(ctx, record(name, base.Add(time.Duration(i)*time.Minute), core.OutcomeCompleted)); err != nil {
				t.Fatalf("Append() error = %v", err)
			}
		}
		got, err := rec.ListByWorkflow(ctx, "alpha", 0)
		if err != nil {
			t.Fatalf("ListByWorkflow() error = %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("ListByWorkflow(alpha) = %d records, want 2", len(got))
		}
		for _, r := range got {
			if r.WorkflowName != "alpha" {
				t.Errorf("got record for %q, want alpha", r.WorkflowName)
			}
		}
	})
}

func TestJSONLRecorder_DatePartitioning(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewJSONLRecorder(dir)
	if err != nil {
		t.Fatalf("NewJSONLRecorder() error = %v", err)
	}
	ctx := context.Background()
	day1 := time.Date(2026, 8, 1, 23, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 2, 1, 0, 0, 0, time.UTC)
	rec.Append(ctx, record("w", day1, core.OutcomeCompleted))
	rec.Append(ctx, record("w", day2, core.OutcomeAborted))

	for _, name := range []string{"2026-08-01.jsonl", "2026-08-02.jsonl"} {
		if _, err := filepath.Glob(filepath.Join(dir, name)); err != nil {
			t.Fatalf("glob error: %v", err)
		}
		matches, _ := filepath.Glob(filepath.Join(dir, name))
		if len(matches) != 1 {
			t.Errorf("expected history file %s to exist", name)
		}
	}

	got, err := rec.List(ctx, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 || got[0].Outcome != core.OutcomeAborted {
		t.Errorf("List() across files = %d records, newest outcome %v", len(got), got[0].Outcome)
	}
}

func TestAggregate(t *testing.T) {
	rec, err := NewJSONLRecorder(t.TempDir())
	if err != nil {
		t.Fatalf("NewJSONLRecorder() error = %v", err)
	}
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	ok := record("deploy", base, core.OutcomeCompleted)
	bad := record("deploy", base.Add(time.Hour), core.OutcomeAborted)
	bad.Steps = []core.StepResult{
		{StepID: "one", Agent: "a", Status: core.StepFailed},
	}
	adhoc := record("", base.Add(2*time.Hour), core.OutcomeCompleted)
	for _, r := range []*core.Record{ok, bad, adhoc} {
		if err := rec.Append(ctx, r); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	stats, err := Aggregate(ctx, rec, 0)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if stats.TotalRuns != 3 || stats.Completed != 2 || stats.Aborted != 1 || stats.AdHocRuns != 1 {
		t.Errorf("totals = %+v, want 3/2/1/1", stats)
	}
	if len(stats.Workflows) != 1 {
		t.Fatalf("Workflows = %d, want 1", len(stats.Workflows))
	}
	ws := stats.Workflows[0]
	if ws.Workflow != "deploy" || ws.Runs != 2 || ws.SuccessRate != 0.5 {
		t.Errorf("workflow stats = %+v, want deploy with 2 runs at 50%%", ws)
	}
	if len(ws.Steps) != 1 || ws.Steps[0].FailureRate != 0.5 {
		t.Errorf("step stats = %+v, want one step failing half the time", ws.Steps)
	}
}
