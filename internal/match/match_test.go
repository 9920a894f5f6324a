package match

import (
	"errors"
	"testing"

	"github.com/weftlabs/weft/internal/core"
)

func def(name string, priority core.Priority, successRate float64, taskTypes ...string) *core.Definition {
	return &core.Definition{
		Name:        name,
		Version:     "1.0.0",
		Description: "fixture",
		TaskTypes:   taskTypes,
		Priority:    priority,
		SuccessRate: successRate,
	}
}

func TestMatcher_SubstringScoring(t *testing.T) {
	defs := []*core.Definition{
		def("review", "", 0, "code review"),
		def("deploy", "", 0, "deployment"),
	}
	m := &Matcher{}
	ranked := m.Rank(defs, "please do a code review of the parser")
	if len(ranked) != 1 {
		t.Fatalf("Rank() returned %d candidates, want 1", len(ranked))
	}
	if ranked[0].Definition.Name != "review" {
		t.Errorf("best = %q, want review", ranked[0].Definition.Name)
	}
	// "code review" is two words at weight 1.0 with no success bonus.
	if ranked[0].Score != 2.0 {
		t.Errorf("Score = %v, want 2.0", ranked[0].Score)
	}
}

func TestMatcher_PriorityWeight(t *testing.T) {
	defs := []*core.Definition{
		def("high-prio", core.PriorityHigh, 0, "refactor"),
		def("low-prio", core.PriorityLow, 0, "refactor"),
	}
	m := &Matcher{}
	ranked := m.Rank(defs, "refactor the config loader")
	if len(ranked) != 2 {
		t.Fatalf("Rank() returned %d candidates, want 2", len(ranked))
	}
	if ranked[0].Definition.Name != "high-prio" {
		t.Errorf("best = %q, want high-prio", ranked[0].Definition.Name)
	}
	if ranked[0].Score != 1.2 || ranked[1].Score != 0.8 {
		t.Errorf("scores = %v, %v, want 1.2, 0.8", ranked[0].Score, ranked[1].Score)
	}
}

func TestMatcher_SuccessRateBonus(t *testing.T) {
	defs := []*core.Definition{
		def("proven", "", 1.0, "migrate"),
		def("untested", "", 0, "migrate"),
	}
	m := &Matcher{}
	ranked := m.Rank(defs, "migrate the database")
	if ranked[0].Definition.Name != "proven" {
		t.Errorf("best = %q, want proven", ranked[0].Definition.Name)
	}
	if ranked[0].Score != 2.0 {
		t.Errorf("Score = %v, want 2.0 (base 1 doubled by perfect success rate)", ranked[0].Score)
	}
}

func TestMatcher_Deterministic(t *testing.T) {
	defs := []*core.Definition{
		def("b-flow", "", 0, "test"),
		def("a-flow", "", 0, "test"),
		def("c-flow", "", 0, "test"),
	}
	m := &Matcher{}
	first := m.Rank(defs, "test everything")
	for i := 0; i < 10; i++ {
		again := m.Rank(defs, "test everything")
		for j := range first {
			if first[j].Definition.Name != again[j].Definition.Name {
				t.Fatalf("run %d: order changed at %d: %q vs %q",
					i, j, first[j].Definition.Name, again[j].Definition.Name)
			}
		}
	}
	// Equal scores fall back to name order.
	if first[0].Definition.Name != "a-flow" {
		t.Errorf("tie-break order = %q, want a-flow first", first[0].Definition.Name)
	}
}

func TestMatcher_TieBreakByUsage(t *testing.T) {
	popular := def("popular", "", 0, "audit")
	popular.UsageCount = 20
	fresh := def("fresh", "", 0, "audit")
	m := &Matcher{}
	ranked := m.Rank([]*core.Definition{fresh, popular}, "audit the deps")
	if ranked[0].Definition.Name != "popular" {
		t.Errorf("best = %q, want popular (higher usage wins ties)", ranked[0].Definition.Name)
	}
}

func TestMatcher_MinScoreExclusive(t *testing.T) {
	defs := []*core.Definition{def("weak", "", 0, "fix")}
	m := &Matcher{MinScore: 1.0}
	// Single one-word phrase scores exactly 1.0, which must not clear
	// an exclusive bound of 1.0.
	if got := m.Rank(defs, "fix the bug"); len(got) != 0 {
		t.Errorf("Rank() = %d candidates, want 0 at MinScore 1.0", len(got))
	}
	m.MinScore = 0.99
	if got := m.Rank(defs, "fix the bug"); len(got) != 1 {
		t.Errorf("Rank() = %d candidates, want 1 at MinScore 0.99", len(got))
	}
}

func TestMatcher_BestNoMatch(t *testing.T) {
	m := &Matcher{}
	_, err := m.Best([]*core.Definition{def("w", "", 0, "review")}, "completely unrelated")
	if err == nil {
		t.Fatal("Best() should fail when nothing matches")
	}
	var domErr *core.DomainError
	if !errors.As(err, &domErr) || domErr.Code != core.CodeMatchNotFound {
		t.Errorf("error = %v, want MATCH_NOT_FOUND", err)
	}
}

func TestMatcher_RelevanceBands(t *testing.T) {
	tests := []struct {
		score float64
		want  Relevance
	}{
		{12, RelevanceHigh},
		{10, RelevanceHigh},
		{7, RelevanceMedium},
		{5, RelevanceMedium},
		{2, RelevanceLow},
	}
	for _, tt := range tests {
		if got := bandFor(tt.score); got != tt.want {
			t.Errorf("bandFor(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}
