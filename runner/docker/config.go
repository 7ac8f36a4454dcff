package docker

import (
	"strings"
	"time"

	"buildpipe/internal/config"
)

// Config holds configuration for the Docker runner.
type Config struct {
	DefaultImage string        // image for stages that don't declare one (default: alpine:3.20)
	Workdir      string        // workspace mount point inside containers (default: /workspace)
	ExtraHosts   []string      // extra /etc/hosts entries (e.g., ["registry.test:host-gateway"])
	StopTimeout  time.Duration // grace period before a container is killed on cleanup (default: 10s)
	RegistryAuth string        // base64 registry credentials for image pulls, empty for anonymous
}

// LoadConfigFromEnv loads runner configuration from environment variables.
// Registry credentials come from a mounted secret file so they never sit
// in the environment.
func LoadConfigFromEnv() Config {
	cfg := Config{
		DefaultImage: config.GetEnv("BUILD_IMAGE", "alpine:3.20"),
		Workdir:      config.GetEnv("BUILD_WORKDIR", "/workspace"),
		StopTimeout:  config.GetDurationEnv("BUILD_STOP_TIMEOUT", 10*time.Second),
	}
	if hosts := config.GetEnv("BUILD_EXTRA_HOSTS", ""); hosts != "" {
		cfg.ExtraHosts = strings.Split(hosts, ",")
	}
	if path := config.GetEnv("BUILD_REGISTRY_AUTH_FILE", ""); path != "" {
		cfg.RegistryAuth = config.GetSecretFile(path)
	}
	return cfg.withDefaults()
}

// withDefaults fills in zero values with defaults.
func (c Config) withDefaults() Config {
	if c.DefaultImage == "" {
		c.DefaultImage = "alpine:3.20"
	}
	if c.Workdir == "" {
		c.Workdir = "/workspace"
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = 10 * time.Second
	}
	return c
}
