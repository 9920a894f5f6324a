// Package match scores workflow definitions against free-text task
// descriptions.
package match

import (
	"sort"
	"strings"

	"github.com/weftlabs/weft/internal/core"
)

// Relevance bands a score for display.
type Relevance string

const (
	RelevanceHigh   Relevance = "high"
	RelevanceMedium Relevance = "medium"
	RelevanceLow    Relevance = "low"
)

const (
	highThreshold   = 10
	mediumThreshold = 5
)

// Match is one scored candidate workflow.
type Match struct {
	Definition *core.Definition
	Score      float64
	// MatchedTypes are the task type phrases found in the description,
	// longest first.
	MatchedTypes []string
	Relevance    Relevance
}

// Matcher ranks workflows for a task description. The zero value
// accepts any positive score.
type Matcher struct {
	// MinScore is the exclusive lower bound for a candidate to appear
	// in results.
	MinScore float64
}

// Rank scores every definition against the description and returns the
// candidates above MinScore, best first. Ordering is deterministic:
// score, then longest matched phrase, then usage count, then name.
func (m *Matcher) Rank(defs []*core.Definition, description string) []Match {
	haystack := strings.ToLower(description)
	var out []Match
	for _, def := range defs {
		matched := matchedPhrases(def.TaskTypes, haystack)
		if len(matched) == 0 {
			continue
		}
		base := 0.0
		for _, phrase := range matched {
			base += float64(len(strings.Fields(phrase)))
		}
		score := base * def.Priority.Weight() * (1 + def.SuccessRate)
		if score <= m.MinScore {
			continue
		}
		out = append(out, Match{
			Definition:   def,
			Score:        score,
			MatchedTypes: matched,
			Relevance:    bandFor(score),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if la, lb := longestPhrase(a.MatchedTypes), longestPhrase(b.MatchedTypes); la != lb {
			return la > lb
		}
		if a.Definition.UsageCount != b.Definition.UsageCount {
			return a.Definition.UsageCount > b.Definition.UsageCount
		}
		return a.Definition.Name < b.Definition.Name
	})
	return out
}

// Best returns the top candidate, or a MATCH_NOT_FOUND error when no
// workflow clears the score floor.
func (m *Matcher) Best(defs []*core.Definition, description string) (Match, error) {
	ranked := m.Rank(defs, description)
	if len(ranked) == 0 {
		return Match{}, core.ErrMatchNotFound(description)
	}
	return ranked[0], nil
}

// matchedPhrases returns the task type phrases contained in the
// lowercased description, longest first for stable reporting.
func matchedPhrases(taskTypes []string, haystack string) []string {
	var matched []string
	for _, t := range taskTypes {
		phrase := strings.ToLower(strings.TrimSpace(t))
		if phrase == "" {
			continue
		}
		if strings.Contains(haystack, phrase) {
			matched = append(matched, phrase)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if len(matched[i]) != len(matched[j]) {
			return len(matched[i]) > len(matched[j])
		}
		return matched[i] < matched[j]
	})
	return matched
}

func longestPhrase(phrases []string) int {
	longest := 0
	for _, p := range phrases {
		if len(p) > longest {
			longest = len(p)
		}
	}
	return longest
}

func bandFor(score float64) Relevance {
	switch {
	case score >= highThreshold:
		return RelevanceHigh
	case score >= mediumThreshold:
		return RelevanceMedium
	default:
		return RelevanceLow
	}
}
