// Package engine plans and executes builds over a stage graph: it computes
// the minimal plan for a target, pulls ready stages through a worker pool,
// memoizes artifacts by fingerprint, and reports per-stage outcomes.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"buildpipe/apperrors"
	"buildpipe/cache"
	"buildpipe/events"
	"buildpipe/pipeline"
	"buildpipe/runner"
	"buildpipe/snapshot"
)

// MetricsRecorder is an optional interface for recording build metrics.
// The engine pairs calls strictly: every RecordStageStarted is matched by
// exactly one RecordStageCompleted with fromCache false; stages that settle
// without executing (cache hits aside) go through RecordStageSettled
// instead, so a saturation gauge driven by started/completed stays balanced.
type MetricsRecorder interface {
	RecordBuildStarted(ctx context.Context, target string)
	RecordBuildCompleted(ctx context.Context, target string, success bool, durationSeconds float64)
	RecordStageStarted(ctx context.Context, stage string)
	RecordStageCompleted(ctx context.Context, stage, state string, fromCache bool, durationSeconds float64)
	RecordStageSettled(ctx context.Context, stage, state string)
	RecordStageError(ctx context.Context, stage string)
}

// Engine executes builds against a fixed stage graph.
type Engine struct {
	graph    *pipeline.Graph
	cache    cache.Layer
	runner   runner.Runner
	source   snapshot.Source
	notifier events.Notifier
	metrics  MetricsRecorder
	config   Config
	logger   *slog.Logger

	mu     sync.Mutex
	srcArt *pipeline.Artifact
}

// New creates a build engine from the given config.
func New(cfg Config) (*Engine, error) {
	if cfg.Graph == nil {
		return nil, fmt.Errorf("graph is required")
	}
	if cfg.Runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if cfg.Source == nil {
		return nil, fmt.Errorf("source is required")
	}

	cfg = cfg.withDefaults()

	layer := cfg.Cache
	if layer == nil {
		layer = cache.NewMemory(nil)
	}

	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return nil, apperrors.Internal("engine.workDir", err)
	}

	return &Engine{
		graph:    cfg.Graph,
		cache:    layer,
		runner:   cfg.Runner,
		source:   cfg.Source,
		notifier: cfg.Notifier,
		metrics:  cfg.Metrics,
		config:   cfg,
		logger:   slog.With("component", "engine"),
	}, nil
}

// RequestBuild builds a single target stage and all of its ancestors.
// Planning errors (unknown target, dangling parent) are returned as errors;
// stage failures are reported through the BuildResult.
func (e *Engine) RequestBuild(ctx context.Context, target string, opts *pipeline.Options) (*pipeline.BuildResult, error) {
	return e.Build(ctx, []string{target}, opts)
}

// Build builds several targets as one run. Targets share the plan, the
// source snapshot, and artifacts produced during the run; independent
// branches execute in parallel on the worker pool.
func (e *Engine) Build(ctx context.Context, targets []string, opts *pipeline.Options) (*pipeline.BuildResult, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("at least one target is required")
	}

	options := e.buildOptions(opts)
	label := strings.Join(targets, ",")

	// Plan every target up front; any planning error is fatal to the call.
	planned := make(map[string]bool)
	var order []string
	for _, target := range targets {
		plan, err := e.graph.Plan(target)
		if err != nil {
			return nil, err
		}
		for _, stage := range plan {
			if !planned[stage.Name] {
				planned[stage.Name] = true
				order = append(order, stage.Name)
			}
		}
	}

	buildID := uuid.NewString()
	logger := e.logger.With("buildId", buildID, "target", label)
	logger.Info("Build started", "stages", len(order), "workers", options.Workers)

	start := time.Now()
	if e.metrics != nil {
		e.metrics.RecordBuildStarted(ctx, label)
	}

	st := newBuildState(e.graph.Names())
	for _, name := range order {
		if err := st.transition(name, pipeline.StatePlanned); err != nil {
			return nil, err
		}
		e.publish(&events.Event{
			Type: events.TypeStagePlanned, BuildID: buildID, Target: label,
			Stage: name, State: pipeline.StatePlanned, Occurred: time.Now().UTC(),
		})
	}

	srcArt, err := e.sourceArtifact(ctx, options.Pull)
	if err != nil {
		return nil, err
	}

	run := &buildRun{
		id:      buildID,
		target:  label,
		options: options,
		state:   st,
		srcArt:  srcArt,
		logger:  logger,
	}
	e.execute(ctx, run, order)

	result := &pipeline.BuildResult{
		ID:     buildID,
		Target: label,
		Status: pipeline.StateDone,
		Stages: st.statuses(),
	}
	for _, target := range targets {
		if result.Stages[target].State != pipeline.StateDone {
			result.Status = pipeline.StateFailed
			break
		}
	}

	success := result.Status == pipeline.StateDone
	logger.Info("Build finished", "status", result.Status, "duration", time.Since(start))
	if e.metrics != nil {
		e.metrics.RecordBuildCompleted(ctx, label, success, time.Since(start).Seconds())
	}
	e.publish(&events.Event{
		Type: events.TypeBuildFinished, BuildID: buildID, Target: label,
		State: result.Status, Occurred: time.Now().UTC(),
	})

	return result, nil
}

// buildRun carries the per-run context shared by the scheduler and workers.
type buildRun struct {
	id      string
	target  string
	options pipeline.Options
	state   *buildState
	srcArt  *pipeline.Artifact
	logger  *slog.Logger
}

// stageOutcome is reported by a worker when a stage settles.
type stageOutcome struct {
	name   string
	state  pipeline.State
	failed bool
}

// execute pulls ready stages through the worker pool until the plan is
// exhausted. A stage is ready once its parent's artifact is done; a failure
// skips all transitive dependents but lets independent branches finish.
func (e *Engine) execute(ctx context.Context, run *buildRun, order []string) {
	pending := make(map[string]bool, len(order))
	for _, name := range order {
		pending[name] = true
	}

	results := make(chan stageOutcome)
	running := 0

	for len(pending) > 0 || running > 0 {
		for _, name := range order {
			if !pending[name] || running >= run.options.Workers {
				continue
			}
			if !e.ready(run, name) {
				continue
			}
			delete(pending, name)
			running++
			go func(stage string) {
				results <- e.runStage(ctx, run, stage)
			}(name)
		}

		if running == 0 {
			// Nothing ready and nothing running: the rest is unreachable.
			for name := range pending {
				e.skipStage(ctx, run, name)
				delete(pending, name)
			}
			break
		}

		outcome := <-results
		running--
		if outcome.failed {
			for _, dep := range e.graph.Dependents(outcome.name) {
				if !run.state.state(dep).Terminal() {
					e.skipStage(ctx, run, dep)
					delete(pending, dep)
				}
			}
		}
	}
}

// ready reports whether a stage's parent artifact is available.
func (e *Engine) ready(run *buildRun, name string) bool {
	stage, ok := e.graph.Stage(name)
	if !ok {
		return false
	}
	if stage.From == "" {
		return true
	}
	_, ok = run.state.artifact(stage.From)
	return ok
}

// runStage executes one stage: fingerprint, cache probe, then command
// execution against a scoped working copy. All-or-nothing: on failure the
// working copy is discarded and prior artifacts are untouched.
func (e *Engine) runStage(ctx context.Context, run *buildRun, name string) stageOutcome {
	stage, _ := e.graph.Stage(name)
	logger := run.logger.With("stage", name)
	start := time.Now()

	fp, parentArt, err := e.stageFingerprint(run, stage)
	if err != nil {
		return e.failStage(ctx, run, name, -1, err)
	}

	// Pull treats the root layer's own cache as stale: the root stage skips
	// the lookup and rebuilds against the fresh source snapshot.
	probeCache := run.options.CacheEnabled && !run.options.ForceRefresh &&
		!(run.options.Pull && stage.From == "")
	if probeCache {
		if art, ok := e.cache.Lookup(fp); ok {
			logger.Info("Stage served from cache", "fingerprint", fp)
			if err := run.state.transition(name, pipeline.StateCacheHit); err != nil {
				return e.failStage(ctx, run, name, -1, err)
			}
			if err := run.state.transition(name, pipeline.StateDone); err != nil {
				return e.failStage(ctx, run, name, -1, err)
			}
			run.state.setArtifact(name, fp, art, true)
			if e.metrics != nil {
				e.metrics.RecordStageCompleted(ctx, name, string(pipeline.StateDone), true, time.Since(start).Seconds())
			}
			e.publish(&events.Event{
				Type: events.TypeStageCached, BuildID: run.id, Target: run.target,
				Stage: name, State: pipeline.StateDone, Occurred: time.Now().UTC(),
			})
			return stageOutcome{name: name, state: pipeline.StateDone}
		}
	}

	if err := run.state.transition(name, pipeline.StateRunning); err != nil {
		return e.failStage(ctx, run, name, -1, err)
	}
	if e.metrics != nil {
		e.metrics.RecordStageStarted(ctx, name)
	}
	e.publish(&events.Event{
		Type: events.TypeStageStarted, BuildID: run.id, Target: run.target,
		Stage: name, State: pipeline.StateRunning, Occurred: time.Now().UTC(),
	})
	logger.Info("Stage started", "fingerprint", fp, "commands", len(stage.Run))

	workDir, err := snapshot.Derive(parentArt, e.config.WorkDir, name)
	if err != nil {
		return e.runFailed(ctx, run, name, -1, err, start)
	}

	res, err := e.runner.Run(ctx, runner.Spec{
		Stage:    name,
		BuildID:  run.id,
		Dir:      workDir,
		Commands: stage.Run,
		Image:    stage.Image,
		Pull:     run.options.Pull,
	})
	if err != nil {
		_ = os.RemoveAll(workDir)
		return e.runFailed(ctx, run, name, -1, err, start)
	}
	if res.ExitCode != 0 {
		_ = os.RemoveAll(workDir)
		execErr := apperrors.StageExecution(name, res.ExitCode, nil)
		return e.runFailed(ctx, run, name, res.ExitCode, execErr, start)
	}

	art, err := snapshot.Seal(name, workDir)
	if err != nil {
		_ = os.RemoveAll(workDir)
		return e.runFailed(ctx, run, name, -1, err, start)
	}

	if err := run.state.transition(name, pipeline.StateDone); err != nil {
		return stageOutcome{name: name, state: pipeline.StateFailed, failed: true}
	}
	run.state.setArtifact(name, fp, art, false)
	if run.options.CacheEnabled {
		e.cache.Store(fp, art)
	}

	logger.Info("Stage done", "duration", time.Since(start))
	if e.metrics != nil {
		e.metrics.RecordStageCompleted(ctx, name, string(pipeline.StateDone), false, time.Since(start).Seconds())
	}
	e.publish(&events.Event{
		Type: events.TypeStageDone, BuildID: run.id, Target: run.target,
		Stage: name, State: pipeline.StateDone, Occurred: time.Now().UTC(),
	})
	return stageOutcome{name: name, state: pipeline.StateDone}
}

// stageFingerprint computes the cache key for a stage: the parent stage's
// fingerprint (empty for the root), the stage commands, and the content
// hashes of its declared inputs. Siblings, descendants, and undeclared
// source files never participate, so an unrelated change cannot invalidate
// a stage.
func (e *Engine) stageFingerprint(run *buildRun, stage pipeline.Stage) (pipeline.Fingerprint, *pipeline.Artifact, error) {
	var parentFP pipeline.Fingerprint
	parentArt := run.srcArt
	if stage.From != "" {
		fp, ok := run.state.fingerprint(stage.From)
		if !ok {
			return "", nil, apperrors.Internal("engine.fingerprint",
				fmt.Errorf("stage %s: parent %s has no fingerprint", stage.Name, stage.From))
		}
		art, ok := run.state.artifact(stage.From)
		if !ok {
			return "", nil, apperrors.Internal("engine.fingerprint",
				fmt.Errorf("stage %s: parent %s has no artifact", stage.Name, stage.From))
		}
		parentFP = fp
		parentArt = art
	}

	inputHashes, err := snapshot.HashInputs(run.srcArt.Dir, stage.Inputs)
	if err != nil {
		return "", nil, err
	}
	return pipeline.ComputeFingerprint(parentFP, stage.Run, inputHashes), parentArt, nil
}

// failStage settles a stage that never began executing. It bypasses the
// started/completed metrics pairing so the saturation gauge, which was
// never incremented for this stage, is not decremented either.
func (e *Engine) failStage(ctx context.Context, run *buildRun, name string, exitCode int, err error) stageOutcome {
	// The stage may still be planned; route it through running so the
	// failure is a legal transition.
	if run.state.state(name) == pipeline.StatePlanned {
		_ = run.state.transition(name, pipeline.StateRunning)
	}
	run.logger.Error("Stage failed before executing", "stage", name, "error", err)
	_ = run.state.transition(name, pipeline.StateFailed)
	run.state.setFailure(name, exitCode, err)
	if e.metrics != nil {
		e.metrics.RecordStageError(ctx, name)
		e.metrics.RecordStageSettled(ctx, name, string(pipeline.StateFailed))
	}
	e.publish(&events.Event{
		Type: events.TypeStageFailed, BuildID: run.id, Target: run.target,
		Stage: name, State: pipeline.StateFailed, Error: err.Error(), Occurred: time.Now().UTC(),
	})
	return stageOutcome{name: name, state: pipeline.StateFailed, failed: true}
}

// runFailed settles a running stage as failed.
func (e *Engine) runFailed(ctx context.Context, run *buildRun, name string, exitCode int, err error, start time.Time) stageOutcome {
	run.logger.Error("Stage failed", "stage", name, "exitCode", exitCode, "error", err)
	_ = run.state.transition(name, pipeline.StateFailed)
	run.state.setFailure(name, exitCode, err)
	if e.metrics != nil {
		e.metrics.RecordStageError(ctx, name)
		e.metrics.RecordStageCompleted(ctx, name, string(pipeline.StateFailed), false, time.Since(start).Seconds())
	}
	e.publish(&events.Event{
		Type: events.TypeStageFailed, BuildID: run.id, Target: run.target,
		Stage: name, State: pipeline.StateFailed, Error: err.Error(), Occurred: time.Now().UTC(),
	})
	return stageOutcome{name: name, state: pipeline.StateFailed, failed: true}
}

// skipStage marks a stage skipped because an ancestor failed.
func (e *Engine) skipStage(ctx context.Context, run *buildRun, name string) {
	_ = run.state.transition(name, pipeline.StateSkipped)
	if e.metrics != nil {
		e.metrics.RecordStageSettled(ctx, name, string(pipeline.StateSkipped))
	}
	e.publish(&events.Event{
		Type: events.TypeStageSkipped, BuildID: run.id, Target: run.target,
		Stage: name, State: pipeline.StateSkipped, Occurred: time.Now().UTC(),
	})
}

// sourceArtifact returns the source snapshot, re-acquiring it when pull is
// set or no snapshot has been taken yet.
func (e *Engine) sourceArtifact(ctx context.Context, pull bool) (*pipeline.Artifact, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.srcArt == nil || pull {
		art, err := e.source.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		e.srcArt = art
	}
	return e.srcArt, nil
}

// buildOptions merges caller options with engine defaults.
func (e *Engine) buildOptions(opts *pipeline.Options) pipeline.Options {
	if opts == nil {
		return pipeline.Options{
			CacheEnabled: e.config.CacheEnabled,
			ForceRefresh: e.config.ForceRefresh,
			Pull:         e.config.Pull,
			Workers:      e.config.Workers,
		}
	}
	merged := *opts
	if merged.Workers <= 0 {
		merged.Workers = e.config.Workers
	}
	return merged
}

// CacheStats exposes the underlying cache layer statistics.
func (e *Engine) CacheStats() cache.Stats {
	return e.cache.Stats()
}

func (e *Engine) publish(event *events.Event) {
	if e.notifier == nil {
		return
	}
	_ = e.notifier.Publish(event)
}
