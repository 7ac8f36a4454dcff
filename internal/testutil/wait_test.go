package testutil

import (
	"testing"
	"time"
)

func TestWaitForTrueImmediately(t *testing.T) {
	t.Parallel()
	if !WaitFor(t, func() bool { return true }, WithTimeout(time.Second)) {
		t.Error("expected true for a condition that already holds")
	}
}

func TestWaitForEventuallyTrue(t *testing.T) {
	t.Parallel()
	polls := 0
	ok := WaitFor(t, func() bool {
		polls++
		return polls >= 3
	}, WithTimeout(time.Second), WithInterval(10*time.Millisecond))

	if !ok {
		t.Error("expected true once the condition holds")
	}
	if polls < 3 {
		t.Errorf("expected at least 3 polls, got %d", polls)
	}
}

func TestWaitForTimesOut(t *testing.T) {
	t.Parallel()
	ok := WaitFor(t, func() bool { return false },
		WithTimeout(50*time.Millisecond), WithInterval(10*time.Millisecond))

	if ok {
		t.Error("expected false when the condition never holds")
	}
}

func TestMustWaitForPasses(t *testing.T) {
	t.Parallel()
	MustWaitFor(t, func() bool { return true }, WithTimeout(time.Second))
}

func TestWaitOptions(t *testing.T) {
	t.Parallel()
	var opts WaitOptions
	WithTimeout(5 * time.Second)(&opts)
	WithInterval(50 * time.Millisecond)(&opts)

	if opts.Timeout != 5*time.Second {
		t.Errorf("expected timeout 5s, got %v", opts.Timeout)
	}
	if opts.Interval != 50*time.Millisecond {
		t.Errorf("expected interval 50ms, got %v", opts.Interval)
	}
}
