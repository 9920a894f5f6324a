// Package learn mines execution history for recurring agent patterns
// and drafts workflow definitions from them.
package learn

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/weftlabs/weft/internal/core"
	"github.com/weftlabs/weft/internal/logging"
	"github.com/weftlabs/weft/internal/store"
)

// Engine mines ad-hoc run history offline. It never executes anything
// and never installs workflows directly: drafts land in the pending
// tier and stay inert until a human promotes them.
type Engine struct {
	Recorder core.Recorder
	Store    *store.Store
	Logger   *logging.Logger

	// MinOccurrences is how often an agent sequence must recur before
	// it becomes a draft.
	MinOccurrences int

	// MaxRecords caps how much history one mining pass reads (0 = all).
	MaxRecords int
}

// Draft is one proposed workflow with the evidence behind it.
type Draft struct {
	Definition  *core.Definition
	Occurrences int
	Agents      []string
}

// Mine groups ad-hoc records by agent-sequence signature and writes a
// pending draft for every signature that clears the threshold. Already
// drafted signatures are skipped.
func (e *Engine) Mine(ctx context.Context) ([]Draft, error) {
	logger := e.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	records, err := e.Recorder.List(ctx, e.MaxRecords)
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}

	groups := make(map[string][]*core.Record)
	var order []string
	for _, r := range records {
		if !r.AdHoc() || !r.Succeeded() {
			continue
		}
		seq := r.AgentSequence()
		if len(seq) < 2 {
			// A single delegation is not a pattern.
			continue
		}
		sig := strings.Join(seq, ">")
		if _, seen := groups[sig]; !seen {
			order = append(order, sig)
		}
		groups[sig] = append(groups[sig], r)
	}

	existing := make(map[string]bool)
	if pending, err := e.Store.Pending(); err == nil {
		for _, d := range pending {
			existing[d.Name] = true
		}
	}
	if defs, err := e.Store.List(); err == nil {
		for _, d := range defs {
			existing[d.Name] = true
		}
	}

	var drafts []Draft
	for _, sig := range order {
		recs := groups[sig]
		if len(recs) < e.MinOccurrences {
			continue
		}
		def := e.synthesize(sig, recs)
		if existing[def.Name] {
			logger.Debug("pattern already drafted", "name", def.Name)
			continue
		}
		if err := e.Store.SaveDraft(def); err != nil {
			logger.Warn("saving draft failed", "name", def.Name, "error", err)
			continue
		}
		logger.Info("drafted workflow from history",
			"name", def.Name,
			"occurrences", len(recs))
		drafts = append(drafts, Draft{
			Definition:  def,
			Occurrences: len(recs),
			Agents:      strings.Split(sig, ">"),
		})
	}
	return drafts, nil
}

// synthesize builds a draft definition from a group of records sharing
// one agent sequence. Steps form a linear chain mirroring the observed
// order; task types come from recurring keywords in the descriptions.
func (e *Engine) synthesize(sig string, recs []*core.Record) *core.Definition {
	agents := strings.Split(sig, ">")
	latest := recs[0]
	for _, r := range recs {
		if r.StartedAt.After(latest.StartedAt) {
			latest = r
		}
	}

	var tasks []string
	for _, r := range recs {
		tasks = append(tasks, r.Task)
	}
	keywords := extractKeywords(tasks, 5)
	if len(keywords) == 0 {
		keywords = []string{strings.Join(agents, " ")}
	}

	name := "learned-" + strings.Join(agents, "-")
	def := &core.Definition{
		Name:        name,
		Version:     "0.1.0",
		Description: fmt.Sprintf("Drafted from %d similar runs using agents %s", len(recs), strings.Join(agents, ", ")),
		Author:      "weft-learn",
		Created:     time.Now().UTC().Format("2006-01-02"),
		TaskTypes:   keywords,
		AgentsRequired: func() []string {
			seen := make(map[string]bool)
			var uniq []string
			for _, a := range agents {
				if !seen[a] {
					seen[a] = true
					uniq = append(uniq, a)
				}
			}
			return uniq
		}(),
		Priority: core.PriorityLow,
		Tags:     []string{"auto-generated", "learned"},
	}

	var prev string
	succeeded := succeededSteps(latest)
	for i, sr := range succeeded {
		id := fmt.Sprintf("step-%d", i+1)
		step := core.Step{
			ID:     id,
			Name:   sr.Name,
			Agent:  sr.Agent,
			Action: actionFor(sr),
		}
		if prev != "" {
			step.DependsOn = []string{prev}
		}
		def.Steps = append(def.Steps, step)
		prev = id
	}
	return def
}

func succeededSteps(r *core.Record) []core.StepResult {
	var out []core.StepResult
	for _, s := range r.Steps {
		if s.Status == core.StepSucceeded && s.Agent != "" {
			out = append(out, s)
		}
	}
	return out
}

// actionFor recovers a plausible action label from a recorded step.
// Ad-hoc records carry no action field, so the step name stands in.
func actionFor(sr core.StepResult) string {
	if sr.Name != "" {
		return sr.Name
	}
	return "run"
}

// stopWords are too generic to identify a task type.
var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "the": true, "for": true,
	"of": true, "to": true, "in": true, "on": true, "with": true,
	"this": true, "that": true, "it": true, "is": true, "are": true,
	"be": true, "as": true, "at": true, "by": true, "from": true,
	"please": true, "then": true, "into": true, "new": true,
	"all": true, "my": true, "our": true, "some": true, "using": true,
}

// extractKeywords returns up to max words that recur across the task
// descriptions, most frequent first, ties alphabetical.
func extractKeywords(tasks []string, max int) []string {
	counts := make(map[string]int)
	for _, t := range tasks {
		seen := make(map[string]bool)
		for _, word := range strings.Fields(strings.ToLower(t)) {
			word = strings.Trim(word, ".,;:!?()[]{}\"'")
			if len(word) < 3 || stopWords[word] || seen[word] {
				continue
			}
			seen[word] = true
			counts[word]++
		}
	}
	var words []string
	for w, n := range counts {
		if n >= 2 {
			words = append(words, w)
		}
	}
	sort.Slice(words, func(i, j int) bool {
		if counts[words[i]] != counts[words[j]] {
			return counts[words[i]] > counts[words[j]]
		}
		return words[i] < words[j]
	})
	if len(words) > max {
		words = words[:max]
	}
	return words
}
