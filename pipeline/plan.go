package pipeline

import "buildpipe/apperrors"

// Plan computes the minimal ordered set of stages needed to materialize the
// target: the target's ancestor chain plus the target itself, in topological
// order (every stage's parent precedes it), with each stage appearing exactly
// once. Plan is a pure function of the graph; it fails with ErrUnknownStage
// when the target or any referenced ancestor is not in the graph.
func (g *Graph) Plan(target string) ([]Stage, error) {
	s, ok := g.stages[target]
	if !ok {
		return nil, apperrors.UnknownStage(target)
	}

	chain := []Stage{s}
	seen := map[string]bool{target: true}

	for cur := s.From; cur != ""; {
		if seen[cur] {
			break // shared ancestor already planned
		}
		parent, ok := g.stages[cur]
		if !ok {
			return nil, apperrors.UnknownStage(cur)
		}
		seen[cur] = true
		chain = append(chain, parent)
		cur = parent.From
	}

	// Reverse into root-first order.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}
