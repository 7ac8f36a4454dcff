package pipeline

// State is the runtime execution state of a stage during a build run.
type State string

// Stage states. Pending is initial; Done, Failed, and Skipped are terminal.
// A stage reaches CacheHit only when the cache layer returns a hit for its
// fingerprint, and then settles as Done.
const (
	StatePending  State = "pending"
	StatePlanned  State = "planned"
	StateCacheHit State = "cache_hit"
	StateRunning  State = "running"
	StateDone     State = "done"
	StateFailed   State = "failed"
	StateSkipped  State = "skipped"
)

// Terminal reports whether the state is final for a build run.
func (s State) Terminal() bool {
	switch s {
	case StateDone, StateFailed, StateSkipped:
		return true
	default:
		return false
	}
}

// allowedTransitions is the per-stage state machine:
// Pending -> Planned -> (CacheHit -> Done) | (Running -> Done | Failed).
// Skipped is reachable from any non-terminal state when an ancestor fails.
var allowedTransitions = map[State][]State{
	StatePending:  {StatePlanned, StateSkipped},
	StatePlanned:  {StateCacheHit, StateRunning, StateSkipped},
	StateCacheHit: {StateDone},
	StateRunning:  {StateDone, StateFailed},
}

// CanTransition reports whether moving from one state to another is legal.
func CanTransition(from, to State) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
