package events

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"buildpipe/internal/testutil"
	"buildpipe/pipeline"
)

func TestMemoryNotifier_Publish(t *testing.T) {
	var received atomic.Int32
	n := NewMemory(Config{BufferSize: 100, Workers: 2}, nil)
	n.Subscribe(func(event *Event) {
		received.Add(1)
	})

	event := &Event{
		Type:     TypeStageDone,
		BuildID:  "build-1",
		Stage:    "pom",
		State:    pipeline.StateDone,
		Occurred: time.Now().UTC(),
	}

	if err := n.Publish(event); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	testutil.MustWaitFor(t, func() bool {
		return received.Load() >= 1
	}, testutil.WithTimeout(5*time.Second))

	if received.Load() != 1 {
		t.Errorf("expected 1 delivery, got %d", received.Load())
	}

	stats := n.Stats()
	if stats.Delivered != 1 {
		t.Errorf("expected 1 delivered, got %d", stats.Delivered)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	n.Close(ctx)
}

func TestMemoryNotifier_FanOut(t *testing.T) {
	var first, second atomic.Int32
	n := NewMemory(Config{BufferSize: 100, Workers: 1}, nil)
	n.Subscribe(func(event *Event) { first.Add(1) })
	n.Subscribe(func(event *Event) { second.Add(1) })

	for i := 0; i < 3; i++ {
		if err := n.Publish(&Event{Type: TypeStageStarted, Stage: "source"}); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}

	testutil.MustWaitFor(t, func() bool {
		return n.Stats().Delivered == 3
	}, testutil.WithTimeout(5*time.Second))

	if first.Load() != 3 || second.Load() != 3 {
		t.Errorf("expected both handlers to see 3 events, got %d and %d",
			first.Load(), second.Load())
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	n.Close(ctx)
}

func TestMemoryNotifier_BufferFull(t *testing.T) {
	block := make(chan struct{})
	n := NewMemory(Config{BufferSize: 1, Workers: 1}, nil)
	n.Subscribe(func(event *Event) {
		<-block
	})

	var dropped int
	for i := 0; i < 10; i++ {
		if err := n.Publish(&Event{Type: TypeStageStarted, Stage: "test"}); err != nil {
			dropped++
		}
	}
	close(block)

	if dropped == 0 {
		t.Error("expected some events to be dropped")
	}
	if n.Stats().Dropped == 0 {
		t.Error("expected dropped counter to increment")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	n.Close(ctx)
}

func TestMemoryNotifier_CloseDrainsQueue(t *testing.T) {
	var received atomic.Int32
	n := NewMemory(Config{BufferSize: 100, Workers: 1}, nil)
	n.Subscribe(func(event *Event) {
		received.Add(1)
	})

	for i := 0; i < 20; i++ {
		if err := n.Publish(&Event{Type: TypeStageDone, Stage: "package"}); err != nil {
			t.Fatalf("Publish failed: %v", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := n.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if received.Load() != 20 {
		t.Errorf("expected all 20 events delivered on drain, got %d", received.Load())
	}

	if err := n.Publish(&Event{Type: TypeStageDone}); err == nil {
		t.Error("expected Publish after Close to fail")
	}
}
