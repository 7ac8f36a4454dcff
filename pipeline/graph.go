package pipeline

import (
	"iter"
	"sort"

	"buildpipe/apperrors"
)

// Graph is the DAG of stages inferred from parent references. Stages may
// reference a parent that has not been added yet; the reference is resolved
// lazily, which is why every AddStage runs a cycle check.
//
// Graph is not safe for concurrent mutation. Once fully built it is safe for
// concurrent reads, which is how build runs use it.
type Graph struct {
	stages   map[string]Stage
	children map[string][]string // parent name -> direct dependents
}

// NewGraph creates an empty stage graph.
func NewGraph() *Graph {
	return &Graph{
		stages:   make(map[string]Stage),
		children: make(map[string][]string),
	}
}

// AddStage validates and inserts a stage. It fails with ErrDuplicateStage if
// the name is taken and with ErrCyclicDependency if the stage's parent edge
// would close a cycle, detected by walking the ancestor chain before
// insertion. On failure the graph is left unchanged.
func (g *Graph) AddStage(s Stage) error {
	if err := s.Validate(); err != nil {
		return err
	}
	if _, exists := g.stages[s.Name]; exists {
		return apperrors.DuplicateStage(s.Name)
	}

	if s.From != "" {
		if path, cyclic := g.wouldCycle(s); cyclic {
			return apperrors.CyclicDependency(s.Name, path)
		}
	}

	g.stages[s.Name] = s
	if s.From != "" {
		g.children[s.From] = append(g.children[s.From], s.Name)
		sort.Strings(g.children[s.From])
	}
	return nil
}

// wouldCycle walks the existing ancestor chain starting at the candidate's
// parent and reports whether it leads back to the candidate itself.
func (g *Graph) wouldCycle(s Stage) ([]string, bool) {
	path := []string{s.Name}
	seen := map[string]bool{s.Name: true}

	cur := s.From
	for cur != "" {
		path = append(path, cur)
		if cur == s.Name {
			return path, true
		}
		if seen[cur] {
			// Defensive: an existing cycle would already violate the
			// graph invariant, but never loop forever on it.
			return path, true
		}
		seen[cur] = true

		parent, ok := g.stages[cur]
		if !ok {
			return nil, false // dangling reference, resolved by a later AddStage
		}
		cur = parent.From
	}
	return nil, false
}

// Stage returns a stage definition by name.
func (g *Graph) Stage(name string) (Stage, bool) {
	s, ok := g.stages[name]
	return s, ok
}

// Len returns the number of stages in the graph.
func (g *Graph) Len() int { return len(g.stages) }

// Names returns all stage names in lexical order.
func (g *Graph) Names() []string {
	names := make([]string, 0, len(g.stages))
	for name := range g.stages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Ancestors returns a lazy sequence of ancestor stage names from the
// immediate parent up to the root. The sequence is finite and restartable;
// it stops early at a parent reference that is not in the graph.
func (g *Graph) Ancestors(name string) iter.Seq[string] {
	return func(yield func(string) bool) {
		s, ok := g.stages[name]
		if !ok {
			return
		}
		for cur := s.From; cur != ""; {
			if !yield(cur) {
				return
			}
			parent, ok := g.stages[cur]
			if !ok {
				return
			}
			cur = parent.From
		}
	}
}

// Dependents returns the names of all stages that transitively depend on the
// given stage, in deterministic breadth-first order.
func (g *Graph) Dependents(name string) []string {
	var out []string
	visited := map[string]bool{name: true}
	queue := append([]string(nil), g.children[name]...)

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		out = append(out, cur)
		queue = append(queue, g.children[cur]...)
	}
	return out
}
