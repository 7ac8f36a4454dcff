package pipeline

import "testing"

func TestCanTransition(t *testing.T) {
	t.Parallel()
	tests := []struct {
		from, to State
		want     bool
	}{
		{StatePending, StatePlanned, true},
		{StatePending, StateSkipped, true},
		{StatePlanned, StateCacheHit, true},
		{StatePlanned, StateRunning, true},
		{StatePlanned, StateSkipped, true},
		{StateCacheHit, StateDone, true},
		{StateRunning, StateDone, true},
		{StateRunning, StateFailed, true},

		{StatePending, StateRunning, false},
		{StatePending, StateDone, false},
		{StatePlanned, StateDone, false},
		{StateRunning, StateSkipped, false},
		{StateCacheHit, StateFailed, false},
		{StateDone, StateRunning, false},
		{StateFailed, StatePlanned, false},
		{StateSkipped, StateRunning, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			t.Parallel()
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestTerminal(t *testing.T) {
	t.Parallel()
	terminal := map[State]bool{
		StatePending:  false,
		StatePlanned:  false,
		StateCacheHit: false,
		StateRunning:  false,
		StateDone:     true,
		StateFailed:   true,
		StateSkipped:  true,
	}

	for state, want := range terminal {
		if got := state.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", state, got, want)
		}
	}
}
