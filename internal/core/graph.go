package core

import (
	"sort"
	"strings"
)

// Graph is the step dependency graph of one definition. It is built
// once at load time and reused by the scheduler.
type Graph struct {
	workflow string
	steps    map[string]*Step
	order    []string            // declaration order
	deps     map[string][]string // step -> dependencies
	reverse  map[string][]string // step -> dependents
}

// NewGraph builds the dependency graph for a definition. It assumes
// schema validation (unique, non-empty step ids) already ran; dangling
// references are reported here.
func NewGraph(d *Definition) (*Graph, error) {
	g := &Graph{
		workflow: d.Name,
		steps:    make(map[string]*Step, len(d.Steps)),
		deps:     make(map[string][]string, len(d.Steps)),
		reverse:  make(map[string][]string, len(d.Steps)),
	}
	for i := range d.Steps {
		s := &d.Steps[i]
		g.steps[s.ID] = s
		g.order = append(g.order, s.ID)
	}
	for i := range d.Steps {
		s := &d.Steps[i]
		for _, dep := range s.DependsOn {
			if _, ok := g.steps[dep]; !ok {
				return nil, ErrDangling(d.Name+"/steps/"+s.ID+"/depends_on", dep)
			}
			g.deps[s.ID] = append(g.deps[s.ID], dep)
			g.reverse[dep] = append(g.reverse[dep], s.ID)
		}
	}
	return g, nil
}

// Step returns the step for an id.
func (g *Graph) Step(id string) (*Step, bool) {
	s, ok := g.steps[id]
	return s, ok
}

// Dependencies returns the declared dependencies of a step.
func (g *Graph) Dependencies(id string) []string { return g.deps[id] }

// Dependents returns the steps that depend on the given step.
func (g *Graph) Dependents(id string) []string { return g.reverse[id] }

// Len returns the number of steps.
func (g *Graph) Len() int { return len(g.order) }

// TopoSort returns a valid topological order using Kahn's algorithm,
// or a cycle error when none exists.
func (g *Graph) TopoSort() ([]string, error) {
	inDegree := make(map[string]int, len(g.steps))
	for id := range g.steps {
		inDegree[id] = len(g.deps[id])
	}

	var queue []string
	for _, id := range g.order {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	result := make([]string, 0, len(g.steps))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result = append(result, current)

		for _, dependent := range g.reverse[current] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(result) != len(g.steps) {
		var stuck []string
		for _, id := range g.order {
			if inDegree[id] > 0 {
				stuck = append(stuck, id)
			}
		}
		sort.Strings(stuck)
		return nil, ErrCycle(g.workflow, "dependency cycle involving steps "+strings.Join(stuck, ", "))
	}

	return result, nil
}

// Waves groups steps into concurrent execution waves: wave 0 holds
// steps with no dependencies, wave k+1 holds steps whose dependencies
// all appear in waves 0..k. Assumes the graph is acyclic.
func (g *Graph) Waves() [][]string {
	if len(g.steps) == 0 {
		return nil
	}

	var waves [][]string
	assigned := make(map[string]bool, len(g.steps))

	for len(assigned) < len(g.steps) {
		var wave []string
		for _, id := range g.order {
			if assigned[id] {
				continue
			}
			ready := true
			for _, dep := range g.deps[id] {
				if !assigned[dep] {
					ready = false
					break
				}
			}
			if ready {
				wave = append(wave, id)
			}
		}
		if len(wave) == 0 {
			// Cycle; TopoSort reports it with a proper error.
			break
		}
		for _, id := range wave {
			assigned[id] = true
		}
		waves = append(waves, wave)
	}

	return waves
}

// Reaches reports whether a dependency path exists from one step to
// another, in the direction dependent -> dependency.
func (g *Graph) Reaches(from, to string) bool {
	if from == to {
		return true
	}
	seen := make(map[string]bool)
	stack := []string{from}
	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[current] {
			continue
		}
		seen[current] = true
		for _, dep := range g.deps[current] {
			if dep == to {
				return true
			}
			stack = append(stack, dep)
		}
	}
	return false
}

// ConcurrentlyEligible reports whether two steps have no dependency
// path between them in either direction.
func (g *Graph) ConcurrentlyEligible(a, b string) bool {
	return !g.Reaches(a, b) && !g.Reaches(b, a)
}

// CheckOutputConflicts verifies that every pair of concurrently
// eligible steps declares disjoint output sets. This load-time check
// is the sole mechanism preventing concurrent write conflicts; the
// engine performs no runtime file locking.
func (g *Graph) CheckOutputConflicts() error {
	for i := 0; i < len(g.order); i++ {
		for j := i + 1; j < len(g.order); j++ {
			a, b := g.steps[g.order[i]], g.steps[g.order[j]]
			if len(a.Outputs) == 0 || len(b.Outputs) == 0 {
				continue
			}
			if !g.ConcurrentlyEligible(a.ID, b.ID) {
				continue
			}
			for _, out := range a.Outputs {
				for _, other := range b.Outputs {
					if out == other {
						return ErrOutputConflict(g.workflow, a.ID, b.ID, out)
					}
				}
			}
		}
	}
	return nil
}
