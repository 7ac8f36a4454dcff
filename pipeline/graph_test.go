package pipeline

import (
	"errors"
	"testing"

	"buildpipe/apperrors"
)

func stageNamed(name, from string) Stage {
	return Stage{Name: name, From: from, Run: []string{"true"}}
}

// exampleGraph builds base -> pom -> {dependency_check, source -> {test, package}}.
func exampleGraph(t *testing.T) *Graph {
	t.Helper()
	g := NewGraph()
	for _, s := range []Stage{
		stageNamed("base", ""),
		stageNamed("pom", "base"),
		stageNamed("dependency_check", "pom"),
		stageNamed("source", "pom"),
		stageNamed("test", "source"),
		stageNamed("package", "source"),
	} {
		if err := g.AddStage(s); err != nil {
			t.Fatalf("AddStage(%s) failed: %v", s.Name, err)
		}
	}
	return g
}

func TestAddStageDuplicate(t *testing.T) {
	t.Parallel()
	g := NewGraph()
	if err := g.AddStage(stageNamed("base", "")); err != nil {
		t.Fatalf("first AddStage failed: %v", err)
	}

	err := g.AddStage(stageNamed("base", ""))
	if !errors.Is(err, apperrors.ErrDuplicateStage) {
		t.Fatalf("expected ErrDuplicateStage, got %v", err)
	}
	if g.Len() != 1 {
		t.Errorf("expected graph unchanged with 1 stage, got %d", g.Len())
	}
}

func TestAddStageSelfLoop(t *testing.T) {
	t.Parallel()
	g := NewGraph()

	err := g.AddStage(stageNamed("base", "base"))
	if !errors.Is(err, apperrors.ErrCyclicDependency) {
		t.Fatalf("expected ErrCyclicDependency, got %v", err)
	}
	if g.Len() != 0 {
		t.Errorf("expected graph unchanged, got %d stages", g.Len())
	}
}

func TestAddStageTransitiveCycle(t *testing.T) {
	t.Parallel()
	g := NewGraph()

	// a's parent b does not exist yet; the reference dangles until b arrives.
	if err := g.AddStage(stageNamed("a", "b")); err != nil {
		t.Fatalf("AddStage(a) failed: %v", err)
	}
	if err := g.AddStage(stageNamed("b", "c")); err != nil {
		t.Fatalf("AddStage(b) failed: %v", err)
	}

	// c -> a -> b -> c closes the loop.
	err := g.AddStage(stageNamed("c", "a"))
	if !errors.Is(err, apperrors.ErrCyclicDependency) {
		t.Fatalf("expected ErrCyclicDependency, got %v", err)
	}
	if g.Len() != 2 {
		t.Errorf("expected graph unchanged with 2 stages, got %d", g.Len())
	}
}

func TestAddStageInvalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		stage Stage
	}{
		{"empty name", Stage{Run: []string{"true"}}},
		{"bad name", Stage{Name: "-leading-dash", Run: []string{"true"}}},
		{"no commands", Stage{Name: "empty"}},
		{"empty command", Stage{Name: "blank", Run: []string{""}}},
		{"empty input", Stage{Name: "in", Run: []string{"true"}, Inputs: []string{""}}},
		{"empty output", Stage{Name: "out", Run: []string{"true"}, Outputs: []string{""}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := NewGraph()
			err := g.AddStage(tt.stage)
			if !errors.Is(err, apperrors.ErrInvalidStage) {
				t.Errorf("expected ErrInvalidStage, got %v", err)
			}
			if g.Len() != 0 {
				t.Errorf("expected graph unchanged, got %d stages", g.Len())
			}
		})
	}
}

func TestAncestors(t *testing.T) {
	t.Parallel()
	g := exampleGraph(t)

	var got []string
	for name := range g.Ancestors("test") {
		got = append(got, name)
	}

	want := []string{"source", "pom", "base"}
	if len(got) != len(want) {
		t.Fatalf("expected ancestors %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected ancestors %v, got %v", want, got)
		}
	}
}

func TestAncestorsRestartable(t *testing.T) {
	t.Parallel()
	g := exampleGraph(t)
	seq := g.Ancestors("test")

	// Consume only the first element, then restart from scratch.
	for range seq {
		break
	}

	count := 0
	for range seq {
		count++
	}
	if count != 3 {
		t.Errorf("expected 3 ancestors on restart, got %d", count)
	}
}

func TestAncestorsUnknownStage(t *testing.T) {
	t.Parallel()
	g := exampleGraph(t)

	count := 0
	for range g.Ancestors("missing") {
		count++
	}
	if count != 0 {
		t.Errorf("expected empty sequence for unknown stage, got %d elements", count)
	}
}

func TestDependents(t *testing.T) {
	t.Parallel()
	g := exampleGraph(t)

	tests := []struct {
		stage string
		want  []string
	}{
		{"pom", []string{"dependency_check", "source", "package", "test"}},
		{"source", []string{"package", "test"}},
		{"test", nil},
		{"base", []string{"pom", "dependency_check", "source", "package", "test"}},
	}

	for _, tt := range tests {
		t.Run(tt.stage, func(t *testing.T) {
			t.Parallel()
			got := g.Dependents(tt.stage)
			if len(got) != len(tt.want) {
				t.Fatalf("Dependents(%s) = %v, want %v", tt.stage, got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("Dependents(%s) = %v, want %v", tt.stage, got, tt.want)
				}
			}
		})
	}
}
