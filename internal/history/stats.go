package history

import (
	"context"
	"sort"
	"time"

	"github.com/weftlabs/weft/internal/core"
)

// StepStats aggregates per-step outcomes across runs of one workflow.
type StepStats struct {
	StepID      string
	Runs        int
	Succeeded   int
	Failed      int
	Skipped     int
	TimedOut    int
	TotalTime   time.Duration
	FailureRate float64
	SkipRate    float64
}

// WorkflowStats aggregates run outcomes for one workflow.
type WorkflowStats struct {
	Workflow    string
	Runs        int
	Completed   int
	Aborted     int
	SuccessRate float64
	AvgDuration time.Duration
	LastRun     time.Time
	Steps       []StepStats
}

// Stats is the full aggregation over a record set.
type Stats struct {
	TotalRuns   int
	Completed   int
	Aborted     int
	AdHocRuns   int
	SuccessRate float64
	Workflows   []WorkflowStats
}

// Aggregate computes statistics over up to limit records from the
// recorder (0 = all).
func Aggregate(ctx context.Context, rec core.Recorder, limit int) (*Stats, error) {
	records, err := rec.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	return aggregate(records), nil
}

func aggregate(records []*core.Record) *Stats {
	stats := &Stats{}
	byWorkflow := make(map[string]*WorkflowStats)
	stepsByWorkflow := make(map[string]map[string]*StepStats)

	for _, r := range records {
		stats.TotalRuns++
		if r.Succeeded() {
			stats.Completed++
		} else {
			stats.Aborted++
		}
		if r.WorkflowName == "" {
			stats.AdHocRuns++
			continue
		}

		ws, ok := byWorkflow[r.WorkflowName]
		if !ok {
			ws = &WorkflowStats{Workflow: r.WorkflowName}
			byWorkflow[r.WorkflowName] = ws
			stepsByWorkflow[r.WorkflowName] = make(map[string]*StepStats)
		}
		ws.Runs++
		if r.Succeeded() {
			ws.Completed++
		} else {
			ws.Aborted++
		}
		ws.AvgDuration += r.EndedAt.Sub(r.StartedAt)
		if r.StartedAt.After(ws.LastRun) {
			ws.LastRun = r.StartedAt
		}

		steps := stepsByWorkflow[r.WorkflowName]
		for i := range r.Steps {
			sr := &r.Steps[i]
			ss, ok := steps[sr.StepID]
			if !ok {
				ss = &StepStats{StepID: sr.StepID}
				steps[sr.StepID] = ss
			}
			ss.Runs++
			ss.TotalTime += sr.Duration()
			switch sr.Status {
			case core.StepSucceeded:
				ss.Succeeded++
			case core.StepFailed:
				ss.Failed++
			case core.StepSkipped:
				ss.Skipped++
			case core.StepTimedOut:
				ss.TimedOut++
			}
		}
	}

	if stats.TotalRuns > 0 {
		stats.SuccessRate = float64(stats.Completed) / float64(stats.TotalRuns)
	}
	for name, ws := range byWorkflow {
		if ws.Runs > 0 {
			ws.SuccessRate = float64(ws.Completed) / float64(ws.Runs)
			ws.AvgDuration /= time.Duration(ws.Runs)
		}
		for _, ss := range stepsByWorkflow[name] {
			if ss.Runs > 0 {
				ss.FailureRate = float64(ss.Failed+ss.TimedOut) / float64(ss.Runs)
				ss.SkipRate = float64(ss.Skipped) / float64(ss.Runs)
			}
			ws.Steps = append(ws.Steps, *ss)
		}
		sort.Slice(ws.Steps, func(i, j int) bool { return ws.Steps[i].StepID < ws.Steps[j].StepID })
		stats.Workflows = append(stats.Workflows, *ws)
	}
	sort.Slice(stats.Workflows, func(i, j int) bool {
		if stats.Workflows[i].Runs != stats.Workflows[j].Runs {
			return stats.Workflows[i].Runs > stats.Workflows[j].Runs
		}
		return stats.Workflows[i].Workflow < stats.Workflows[j].Workflow
	})
	return stats
}
