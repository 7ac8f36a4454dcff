// Package pipeline defines the stage model for staged, cache-aware builds:
// stages, the dependency graph, build plans, fingerprints, and artifacts.
package pipeline

import "time"

// Stage is a named unit of build work with one parent and a set of declared outputs.
type Stage struct {
	Name    string   `json:"name"`
	From    string   `json:"from,omitempty"`    // Parent stage; empty for the root stage
	Image   string   `json:"image,omitempty"`   // Image override for container runners
	Run     []string `json:"run"`               // Ordered shell commands
	Inputs  []string `json:"inputs,omitempty"`  // Build-time invalidation inputs (paths in the source tree)
	Outputs []string `json:"outputs,omitempty"` // Declared output paths in the artifact
}

// Fingerprint is a deterministic content-derived key used for cache lookup.
type Fingerprint string

// String returns the hex form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }

// Artifact is the immutable output of a successfully executed stage: a
// filesystem snapshot plus metadata. Artifacts are created once per
// execution and superseded, never overwritten, by re-execution.
type Artifact struct {
	Stage       string      `json:"stage"`
	Fingerprint Fingerprint `json:"fingerprint"`
	Dir         string      `json:"dir"` // Snapshot root on disk
	CreatedAt   time.Time   `json:"createdAt"`
}

// Options are the per-build policy knobs.
type Options struct {
	CacheEnabled bool // Skip cache lookup and store entirely when false
	ForceRefresh bool // Bypass cache lookup but still store results
	Pull         bool // Re-acquire the source snapshot and re-pull runner images
	Workers      int  // Worker pool size; 0 means the engine default
}

// StageStatus is the per-stage outcome reported in a BuildResult. It lets a
// caller distinguish "never ran" (pending), "ran and failed" (failed plus
// exit code), and "served from cache" (done with FromCache set).
type StageStatus struct {
	State     State  `json:"state"`
	FromCache bool   `json:"fromCache,omitempty"`
	ExitCode  int    `json:"exitCode,omitempty"`
	Error     string `json:"error,omitempty"`
}

// BuildResult is the outcome of a build request: the overall status plus the
// status of every stage in the graph.
type BuildResult struct {
	ID     string                 `json:"id"`
	Target string                 `json:"target"`
	Status State                  `json:"status"` // StateDone or StateFailed
	Stages map[string]StageStatus `json:"stages"`
}
