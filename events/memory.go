package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryNotifier is an in-memory async event notifier.
// Events are queued in a bounded channel and fanned out to subscribers by a
// worker pool. If the buffer is full, events are dropped (logged + metric
// incremented) rather than stalling the build.
type MemoryNotifier struct {
	queue   chan *Event
	config  Config
	logger  *slog.Logger
	metrics MetricsRecorder

	mu       sync.RWMutex
	handlers []Handler

	// Internal counters (for Stats())
	queued    atomic.Int64
	delivered atomic.Int64
	dropped   atomic.Int64

	wg       sync.WaitGroup
	shutdown chan struct{}
	closed   atomic.Bool
}

// MetricsRecorder is an optional interface for recording notifier metrics.
type MetricsRecorder interface {
	RecordEventDelivered(ctx context.Context)
	RecordEventDropped(ctx context.Context)
	RecordEventQueueSize(ctx context.Context, size int64)
}

// NewMemory creates a new in-memory notifier.
func NewMemory(cfg Config, metrics MetricsRecorder) *MemoryNotifier {
	cfg = cfg.withDefaults()

	n := &MemoryNotifier{
		queue:    make(chan *Event, cfg.BufferSize),
		config:   cfg,
		logger:   slog.With("component", "events"),
		metrics:  metrics,
		shutdown: make(chan struct{}),
	}

	// Start workers
	n.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go n.worker()
	}

	// Start queue size reporter if metrics enabled
	if metrics != nil {
		go n.reportQueueSize()
	}

	n.logger.Info("Notifier started", "workers", cfg.Workers, "buffer", cfg.BufferSize)
	return n
}

// reportQueueSize periodically reports the queue size metric.
func (n *MemoryNotifier) reportQueueSize() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-n.shutdown:
			return
		case <-ticker.C:
			n.metrics.RecordEventQueueSize(context.Background(), int64(len(n.queue)))
		}
	}
}

// Subscribe registers a handler for all subsequent events.
func (n *MemoryNotifier) Subscribe(handler Handler) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers = append(n.handlers, handler)
}

// Publish queues an event for async delivery.
func (n *MemoryNotifier) Publish(event *Event) error {
	if n.closed.Load() {
		return fmt.Errorf("notifier is closed")
	}

	select {
	case n.queue <- event:
		n.queued.Add(1)
		return nil
	default:
		n.dropped.Add(1)
		if n.metrics != nil {
			n.metrics.RecordEventDropped(context.Background())
		}
		n.logger.Warn("Event dropped, buffer full",
			"type", event.Type,
			"stage", event.Stage,
		)
		return ErrBufferFull
	}
}

// Stats returns current notifier statistics.
func (n *MemoryNotifier) Stats() Stats {
	return Stats{
		QueueDepth: len(n.queue),
		Queued:     n.queued.Load(),
		Delivered:  n.delivered.Load(),
		Dropped:    n.dropped.Load(),
	}
}

// Close gracefully shuts down the notifier.
func (n *MemoryNotifier) Close(ctx context.Context) error {
	if n.closed.Swap(true) {
		return nil // already closed
	}

	n.logger.Info("Notifier shutting down", "queued", len(n.queue))

	// Signal workers to stop
	close(n.shutdown)

	// Wait for workers with timeout
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		n.logger.Info("Notifier shutdown complete",
			"delivered", n.delivered.Load(),
			"dropped", n.dropped.Load(),
		)
		return nil
	case <-ctx.Done():
		n.logger.Warn("Notifier shutdown timed out", "remaining", len(n.queue))
		return ctx.Err()
	}
}

// worker processes events from the queue.
func (n *MemoryNotifier) worker() {
	defer n.wg.Done()

	for {
		select {
		case <-n.shutdown:
			// Drain remaining events before exiting
			n.drainQueue()
			return
		case event := <-n.queue:
			n.deliver(event)
		}
	}
}

// drainQueue delivers remaining events after shutdown signal.
func (n *MemoryNotifier) drainQueue() {
	for {
		select {
		case event := <-n.queue:
			n.deliver(event)
		default:
			return // queue empty
		}
	}
}

// deliver fans the event out to all registered handlers.
func (n *MemoryNotifier) deliver(event *Event) {
	n.mu.RLock()
	handlers := n.handlers
	n.mu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}

	n.delivered.Add(1)
	if n.metrics != nil {
		n.metrics.RecordEventDelivered(context.Background())
	}
}

// Verify MemoryNotifier implements Notifier
var _ Notifier = (*MemoryNotifier)(nil)
