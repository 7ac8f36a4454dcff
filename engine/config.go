package engine

import (
	"os"
	"path/filepath"

	"buildpipe/cache"
	"buildpipe/events"
	"buildpipe/internal/config"
	"buildpipe/pipeline"
	"buildpipe/runner"
	"buildpipe/snapshot"
)

// Config holds configuration and collaborators for the build engine.
type Config struct {
	Graph  *pipeline.Graph // Stage graph to build from (required)
	Runner runner.Runner   // Command runner (required)
	Source snapshot.Source // Source tree snapshot provider (required)

	Cache    cache.Layer     // Artifact cache (default: in-memory)
	Notifier events.Notifier // Lifecycle event notifier (optional)
	Metrics  MetricsRecorder // Metrics recorder (optional)

	Workers      int    // Worker pool size (default: 4)
	WorkDir      string // Root for working copies (default: os temp dir)
	CacheEnabled bool   // Default cache policy for builds (default: true)
	ForceRefresh bool   // Default refresh policy for builds
	Pull         bool   // Default pull policy for builds
}

// LoadConfigFromEnv loads engine policy knobs from environment variables.
// Collaborators must still be set by the caller.
func LoadConfigFromEnv() Config {
	cfg := Config{
		Workers:      config.GetIntEnv("BUILD_WORKERS", 4),
		WorkDir:      config.GetEnv("BUILD_WORK_DIR", ""),
		CacheEnabled: config.GetBoolEnv("BUILD_CACHE_ENABLED", true),
		ForceRefresh: config.GetBoolEnv("BUILD_FORCE_REFRESH", false),
		Pull:         config.GetBoolEnv("BUILD_PULL", false),
	}
	return cfg.withDefaults()
}

// withDefaults fills in zero values with defaults.
func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.WorkDir == "" {
		c.WorkDir = filepath.Join(os.TempDir(), "buildpipe")
	}
	return c
}
