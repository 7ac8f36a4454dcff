package events

import "buildpipe/internal/config"

// Config holds configuration for the in-memory notifier.
type Config struct {
	BufferSize int // pending events buffer (default: 1000)
	Workers    int // concurrent delivery goroutines (default: 2)
}

// LoadConfigFromEnv loads notifier configuration from environment variables.
func LoadConfigFromEnv() Config {
	cfg := Config{
		BufferSize: config.GetIntEnv("EVENT_BUFFER_SIZE", 1000),
		Workers:    config.GetIntEnv("EVENT_WORKERS", 2),
	}
	return cfg.withDefaults()
}

// withDefaults fills in zero values with defaults.
func (c Config) withDefaults() Config {
	if c.BufferSize <= 0 {
		c.BufferSize = 1000
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}
	return c
}
