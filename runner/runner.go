// Package runner executes a stage's command sequence against a scoped
// filesystem workspace.
package runner

import "context"

// Spec describes one stage execution.
type Spec struct {
	Stage    string            // Stage name, used for scoping and labels
	BuildID  string            // Build run the execution belongs to
	Dir      string            // Exclusively owned working directory
	Commands []string          // Ordered shell commands
	Env      map[string]string // Extra environment variables
	Image    string            // Image override for container runners
	Pull     bool              // Re-pull the image before running
}

// Result is the outcome of running a spec's commands.
type Result struct {
	ExitCode int // Exit status of the first failing command, 0 on success
	Failed   int // Index of the failing command, -1 on success
}

// Runner runs a stage's commands in order, stopping at the first failure.
// A non-zero exit status is reported through Result, not through the error;
// the error is reserved for infrastructure failures (unable to start a
// process, daemon unreachable).
type Runner interface {
	Run(ctx context.Context, spec Spec) (*Result, error)
}
