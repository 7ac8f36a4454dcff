// Package testutil has helpers for tests that observe asynchronous work.
package testutil

import (
	"testing"
	"time"
)

// WaitOptions bounds how long and how often a condition is polled.
type WaitOptions struct {
	Timeout  time.Duration
	Interval time.Duration
}

// WaitOption overrides a polling bound.
type WaitOption func(*WaitOptions)

// WithTimeout caps the total polling time. Defaults to 30s.
func WithTimeout(d time.Duration) WaitOption {
	return func(o *WaitOptions) {
		o.Timeout = d
	}
}

// WithInterval sets the pause between polls. Defaults to 100ms.
func WithInterval(d time.Duration) WaitOption {
	return func(o *WaitOptions) {
		o.Interval = d
	}
}

// WaitFor polls condition until it holds or the timeout elapses, and
// reports whether it held.
func WaitFor(tb testing.TB, condition func() bool, opts ...WaitOption) bool {
	tb.Helper()

	o := WaitOptions{Timeout: 30 * time.Second, Interval: 100 * time.Millisecond}
	for _, opt := range opts {
		opt(&o)
	}

	deadline := time.Now().Add(o.Timeout)
	for {
		if condition() {
			return true
		}
		if !time.Now().Before(deadline) {
			return false
		}
		time.Sleep(o.Interval)
	}
}

// MustWaitFor is WaitFor that fails the test on timeout.
func MustWaitFor(tb testing.TB, condition func() bool, opts ...WaitOption) {
	tb.Helper()
	if !WaitFor(tb, condition, opts...) {
		tb.Fatal("timed out waiting for condition")
	}
}
