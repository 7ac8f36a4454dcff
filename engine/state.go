package engine

import (
	"fmt"
	"sync"

	"buildpipe/apperrors"
	"buildpipe/pipeline"
)

// stageRecord holds the runtime state for a single stage during a build run.
type stageRecord struct {
	state       pipeline.State
	fromCache   bool
	exitCode    int
	err         error
	fingerprint pipeline.Fingerprint
	artifact    *pipeline.Artifact
}

// buildState tracks per-stage state for one build run with thread-safe access.
// Transitions are validated against the stage state machine; an illegal
// transition is a scheduler bug and surfaces as an internal error.
type buildState struct {
	mu     sync.RWMutex
	stages map[string]*stageRecord
}

// newBuildState creates state for all named stages, initially pending.
func newBuildState(names []string) *buildState {
	stages := make(map[string]*stageRecord, len(names))
	for _, name := range names {
		stages[name] = &stageRecord{state: pipeline.StatePending, exitCode: -1}
	}
	return &buildState{stages: stages}
}

// transition moves a stage to the given state, enforcing the state machine.
func (b *buildState) transition(name string, to pipeline.State) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.stages[name]
	if !ok {
		return apperrors.UnknownStage(name)
	}
	if !pipeline.CanTransition(rec.state, to) {
		return apperrors.Internal("engine.transition",
			fmt.Errorf("stage %s: illegal transition %s -> %s", name, rec.state, to))
	}
	rec.state = to
	return nil
}

// state returns the current state of a stage.
func (b *buildState) state(name string) pipeline.State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if rec, ok := b.stages[name]; ok {
		return rec.state
	}
	return ""
}

// setArtifact records the artifact and fingerprint of a completed stage.
func (b *buildState) setArtifact(name string, fp pipeline.Fingerprint, art *pipeline.Artifact, fromCache bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if rec, ok := b.stages[name]; ok {
		rec.fingerprint = fp
		rec.artifact = art
		rec.fromCache = fromCache
		rec.exitCode = 0
	}
}

// setFailure records the failure details of a stage.
func (b *buildState) setFailure(name string, exitCode int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if rec, ok := b.stages[name]; ok {
		rec.exitCode = exitCode
		rec.err = err
	}
}

// artifact returns the artifact of a done stage, if any.
func (b *buildState) artifact(name string) (*pipeline.Artifact, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.stages[name]
	if !ok || rec.artifact == nil {
		return nil, false
	}
	return rec.artifact, true
}

// fingerprint returns the fingerprint computed for a stage, if any.
func (b *buildState) fingerprint(name string) (pipeline.Fingerprint, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	rec, ok := b.stages[name]
	if !ok || rec.fingerprint == "" {
		return "", false
	}
	return rec.fingerprint, true
}

// statuses returns a point-in-time copy of all per-stage statuses.
func (b *buildState) statuses() map[string]pipeline.StageStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make(map[string]pipeline.StageStatus, len(b.stages))
	for name, rec := range b.stages {
		status := pipeline.StageStatus{
			State:     rec.state,
			FromCache: rec.fromCache,
		}
		if rec.state == pipeline.StateFailed {
			status.ExitCode = rec.exitCode
			if rec.err != nil {
				status.Error = rec.err.Error()
			}
		}
		result[name] = status
	}
	return result
}
