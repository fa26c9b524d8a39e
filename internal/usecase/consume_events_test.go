package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"launcherd/internal/domain"
	"launcherd/internal/domain/ports"
)

type flakySource struct {
	mu       sync.Mutex
	failures int
	runs     int
	events   []domain.Event
}

func (f *flakySource) Run(ctx context.Context, handle ports.EventHandler) error {
	f.mu.Lock()
	f.runs++
	fail := f.runs <= f.failures
	f.mu.Unlock()
	if fail {
		return errors.New("connection reset by peer")
	}
	for _, ev := range f.events {
		handle(ev)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *flakySource) runCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs
}

func TestConsumeEventsReconnectsAfterFailure(t *testing.T) {
	src := &flakySource{
		failures: 2,
		events: []domain.Event{
			{Type: domain.EventStatus, OperationID: 1, Status: "a"},
			{Type: domain.EventStatus, OperationID: 1, Status: "b"},
		},
	}
	got := make(chan domain.Event, 4)
	uc := ConsumeEvents{
		Source:       src,
		Handler:      func(ev domain.Event) { got <- ev },
		Logger:       discardLogger(),
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		uc.Run(ctx)
		close(done)
	}()

	for _, want := range []string{"a", "b"} {
		select {
		case ev := <-got:
			if ev.Status != want {
				t.Fatalf("status = %q, want %q", ev.Status, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for events")
		}
	}
	if runs := src.runCount(); runs != 3 {
		t.Fatalf("source ran %d times, want 3", runs)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestJitterStaysWithinBounds(t *testing.T) {
	for i := 0; i < 100; i++ {
		d := jitter(time.Second)
		if d < 750*time.Millisecond || d > 1250*time.Millisecond {
			t.Fatalf("jitter out of range: %v", d)
		}
	}
}
