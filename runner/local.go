package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

// Local runs stage commands directly on the host via /bin/sh.
// Each command inherits the process environment plus the spec's extras and
// runs with the working directory set to the stage's scoped workspace.
type Local struct {
	logger *slog.Logger
}

// NewLocal creates a host-process runner.
func NewLocal() *Local {
	return &Local{logger: slog.With("component", "runner.local")}
}

// Run executes the spec's commands in order, stopping at the first failure.
func (l *Local) Run(ctx context.Context, spec Spec) (*Result, error) {
	env := os.Environ()
	for k, v := range spec.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	logger := l.logger.With("stage", spec.Stage, "buildId", spec.BuildID)

	for i, command := range spec.Commands {
		start := time.Now()
		cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
		cmd.Dir = spec.Dir
		cmd.Env = env

		err := cmd.Run()
		if err == nil {
			logger.Debug("Command finished", "index", i, "duration", time.Since(start))
			continue
		}

		// A cancelled context kills the process; report that as
		// cancellation, not as a command failure.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			logger.Info("Command failed", "index", i, "exitCode", exitErr.ExitCode())
			return &Result{ExitCode: exitErr.ExitCode(), Failed: i}, nil
		}
		return nil, fmt.Errorf("starting command %d: %w", i, err)
	}

	return &Result{ExitCode: 0, Failed: -1}, nil
}

// Verify Local implements Runner
var _ Runner = (*Local)(nil)
