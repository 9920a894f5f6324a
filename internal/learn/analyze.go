package learn

import (
	"context"
	"fmt"

	"github.com/weftlabs/weft/internal/history"
)

// Hint severity levels for Analyze output.
const (
	SeverityWarn = "warn"
	SeverityInfo = "info"
)

// Hint is one improvement suggestion derived from history.
type Hint struct {
	Workflow string
	Step     string // empty for workflow-level hints
	Severity string
	Message  string
}

// Failure-pattern thresholds. Chosen to flag chronic problems without
// getting noisy on the occasional bad run.
const (
	stepFailureThreshold    = 0.20
	stepSkipThreshold       = 0.80
	workflowSuccessFloor    = 0.70
	minRunsForWorkflowHints = 3
)

// Analyze inspects aggregated history and reports workflows and steps
// with chronic failure patterns.
func (e *Engine) Analyze(ctx context.Context) ([]Hint, error) {
	stats, err := history.Aggregate(ctx, e.Recorder, e.MaxRecords)
	if err != nil {
		return nil, fmt.Errorf("aggregating history: %w", err)
	}

	var hints []Hint
	for _, ws := range stats.Workflows {
		if ws.Runs < minRunsForWorkflowHints {
			continue
		}
		if ws.SuccessRate < workflowSuccessFloor {
			hints = append(hints, Hint{
				Workflow: ws.Workflow,
				Severity: SeverityWarn,
				Message: fmt.Sprintf("only %.0f%% of %d runs completed; review step ordering and timeouts",
					ws.SuccessRate*100, ws.Runs),
			})
		}
		for _, ss := range ws.Steps {
			if ss.FailureRate > stepFailureThreshold {
				hints = append(hints, Hint{
					Workflow: ws.Workflow,
					Step:     ss.StepID,
					Severity: SeverityWarn,
					Message: fmt.Sprintf("step fails in %.0f%% of runs; consider a different agent or a longer timeout",
						ss.FailureRate*100),
				})
			}
			if ss.SkipRate > stepSkipThreshold {
				hints = append(hints, Hint{
					Workflow: ws.Workflow,
					Step:     ss.StepID,
					Severity: SeverityInfo,
					Message: fmt.Sprintf("step is skipped in %.0f%% of runs; its dependencies rarely succeed or it may be dead weight",
						ss.SkipRate*100),
				})
			}
		}
	}
	return hints, nil
}
