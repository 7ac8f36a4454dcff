package pipeline

import (
	"errors"
	"testing"

	"buildpipe/apperrors"
)

func planNames(t *testing.T, g *Graph, target string) []string {
	t.Helper()
	plan, err := g.Plan(target)
	if err != nil {
		t.Fatalf("Plan(%s) failed: %v", target, err)
	}
	names := make([]string, len(plan))
	for i, s := range plan {
		names[i] = s.Name
	}
	return names
}

func TestPlanSelectsOnlyAncestorChain(t *testing.T) {
	t.Parallel()
	g := exampleGraph(t)

	tests := []struct {
		target string
		want   []string
	}{
		{"test", []string{"base", "pom", "source", "test"}},
		{"dependency_check", []string{"base", "pom", "dependency_check"}},
		{"package", []string{"base", "pom", "source", "package"}},
		{"base", []string{"base"}},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			t.Parallel()
			got := planNames(t, g, tt.target)
			if len(got) != len(tt.want) {
				t.Fatalf("Plan(%s) = %v, want %v", tt.target, got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Fatalf("Plan(%s) = %v, want %v", tt.target, got, tt.want)
				}
			}
		})
	}
}

func TestPlanParentsPrecedeChildren(t *testing.T) {
	t.Parallel()
	g := exampleGraph(t)

	for _, target := range g.Names() {
		plan, err := g.Plan(target)
		if err != nil {
			t.Fatalf("Plan(%s) failed: %v", target, err)
		}

		position := make(map[string]int, len(plan))
		for i, s := range plan {
			if prev, dup := position[s.Name]; dup {
				t.Errorf("Plan(%s): stage %s appears at %d and %d", target, s.Name, prev, i)
			}
			position[s.Name] = i
		}
		for i, s := range plan {
			if s.From == "" {
				continue
			}
			parentPos, ok := position[s.From]
			if !ok {
				t.Errorf("Plan(%s): parent %s of %s missing from plan", target, s.From, s.Name)
				continue
			}
			if parentPos >= i {
				t.Errorf("Plan(%s): parent %s at %d does not precede %s at %d", target, s.From, parentPos, s.Name, i)
			}
		}
	}
}

func TestPlanUnknownTarget(t *testing.T) {
	t.Parallel()
	g := exampleGraph(t)

	_, err := g.Plan("deploy")
	if !errors.Is(err, apperrors.ErrUnknownStage) {
		t.Fatalf("expected ErrUnknownStage, got %v", err)
	}
}

func TestPlanDanglingParent(t *testing.T) {
	t.Parallel()
	g := NewGraph()
	if err := g.AddStage(stageNamed("build", "missing-base")); err != nil {
		t.Fatalf("AddStage failed: %v", err)
	}

	_, err := g.Plan("build")
	if !errors.Is(err, apperrors.ErrUnknownStage) {
		t.Fatalf("expected ErrUnknownStage for dangling parent, got %v", err)
	}
}
