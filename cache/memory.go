package cache

import (
	"context"
	"sync"
	"sync/atomic"

	"buildpipe/pipeline"
)

// Memory is an in-memory content-addressed cache layer.
// At most one entry exists per fingerprint; entries live for the process
// lifetime and are never persisted.
type Memory struct {
	mu      sync.RWMutex
	entries map[pipeline.Fingerprint]*pipeline.Artifact

	hits    atomic.Int64
	misses  atomic.Int64
	stores  atomic.Int64
	metrics MetricsRecorder
}

// NewMemory creates an empty in-memory cache layer.
// The metrics recorder is optional.
func NewMemory(metrics MetricsRecorder) *Memory {
	return &Memory{
		entries: make(map[pipeline.Fingerprint]*pipeline.Artifact),
		metrics: metrics,
	}
}

// Lookup returns the cached artifact for a fingerprint.
func (m *Memory) Lookup(fp pipeline.Fingerprint) (*pipeline.Artifact, bool) {
	m.mu.RLock()
	art, ok := m.entries[fp]
	m.mu.RUnlock()

	if ok {
		m.hits.Add(1)
		if m.metrics != nil {
			m.metrics.RecordCacheHit(context.Background())
		}
		return art, true
	}

	m.misses.Add(1)
	if m.metrics != nil {
		m.metrics.RecordCacheMiss(context.Background())
	}
	return nil, false
}

// Store inserts or replaces the entry for a fingerprint. Last writer wins.
func (m *Memory) Store(fp pipeline.Fingerprint, art *pipeline.Artifact) {
	m.mu.Lock()
	m.entries[fp] = art
	entries := len(m.entries)
	m.mu.Unlock()

	m.stores.Add(1)
	if m.metrics != nil {
		m.metrics.RecordCacheEntries(context.Background(), int64(entries))
	}
}

// Stats returns current cache statistics.
func (m *Memory) Stats() Stats {
	m.mu.RLock()
	entries := len(m.entries)
	m.mu.RUnlock()

	return Stats{
		Entries: entries,
		Hits:    m.hits.Load(),
		Misses:  m.misses.Load(),
		Stores:  m.stores.Load(),
	}
}

// Verify Memory implements Layer
var _ Layer = (*Memory)(nil)
