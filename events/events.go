// Package events provides async in-process notification of build progress
// with buffering. Subscribers receive stage and build lifecycle events
// without blocking the build itself.
package events

import (
	"context"
	"errors"
	"time"

	"buildpipe/pipeline"
)

// ErrBufferFull is returned when the notifier's buffer is full and the event is dropped.
var ErrBufferFull = errors.New("notifier buffer full, event dropped")

// Type identifies the kind of lifecycle event.
type Type string

const (
	TypeStagePlanned  Type = "stage.planned"
	TypeStageStarted  Type = "stage.started"
	TypeStageCached   Type = "stage.cached"
	TypeStageDone     Type = "stage.done"
	TypeStageFailed   Type = "stage.failed"
	TypeStageSkipped  Type = "stage.skipped"
	TypeBuildFinished Type = "build.finished"
)

// Event describes a single build lifecycle transition.
type Event struct {
	Type     Type
	BuildID  string
	Target   string
	Stage    string // empty for build-level events
	State    pipeline.State
	Error    string // failure message, empty otherwise
	Occurred time.Time
}

// Handler receives events. Handlers run on notifier worker goroutines and
// must not block for long.
type Handler func(event *Event)

// Notifier handles async delivery of events to subscribers.
type Notifier interface {
	// Publish queues an event for async delivery. Non-blocking.
	// Returns ErrBufferFull if the event cannot be queued.
	Publish(event *Event) error

	// Subscribe registers a handler for all subsequent events.
	Subscribe(handler Handler)

	// Stats returns current notifier statistics.
	Stats() Stats

	// Close gracefully shuts down, attempting to deliver queued events.
	// The context deadline controls how long to wait for drain.
	Close(ctx context.Context) error
}

// Stats holds notifier statistics.
type Stats struct {
	QueueDepth int   // current queue size
	Queued     int64 // total events queued
	Delivered  int64 // events handed to all subscribers
	Dropped    int64 // dropped due to full buffer
}
