// Package cache provides per-stage content-addressed memoization of build artifacts.
package cache

import (
	"context"

	"buildpipe/pipeline"
)

// Layer maps fingerprints to previously produced artifacts.
// Implementations must support concurrent lookups; concurrent stores for the
// same fingerprint resolve last-writer-wins. Because entries are
// content-addressed, identical fingerprints are interchangeable and the
// discarded duplicate work is inefficiency, not an error.
type Layer interface {
	// Lookup returns the cached artifact for a fingerprint. Never mutates state.
	Lookup(fp pipeline.Fingerprint) (*pipeline.Artifact, bool)

	// Store inserts or replaces the entry for a fingerprint. Storing a
	// content-identical artifact under the same fingerprint is a no-op at
	// the semantic level.
	Store(fp pipeline.Fingerprint, art *pipeline.Artifact)

	// Stats returns current cache statistics.
	Stats() Stats
}

// Stats holds cache layer statistics.
type Stats struct {
	Entries int   // current entry count
	Hits    int64 // successful lookups
	Misses  int64 // failed lookups
	Stores  int64 // store calls, including replacements
}

// MetricsRecorder is an optional interface for recording cache metrics.
type MetricsRecorder interface {
	RecordCacheHit(ctx context.Context)
	RecordCacheMiss(ctx context.Context)
	RecordCacheEntries(ctx context.Context, entries int64)
}
