package redisbus

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"launcherd/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSubscriberDispatchSkipsBadMessages(t *testing.T) {
	s := NewSubscriber(nil, "launcher:events", discardLogger())
	var got []domain.Event
	handle := func(ev domain.Event) { got = append(got, ev) }

	s.dispatch(`not json`, handle)
	s.dispatch(`{"type":"warp"}`, handle)
	s.dispatch(`{"type":"launched","operationId":2}`, handle)

	if len(got) != 1 || got[0].Type != domain.EventLaunched || got[0].OperationID != 2 {
		t.Fatalf("unexpected events %+v", got)
	}
}

// Requires a running Redis; set REDIS_TEST_ADDR to override localhost:6379.
func TestIntegrationPublishSubscribe(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DialTimeout: time.Second})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available at %s: %v", addr, err)
	}

	channel := "launcherd:test:" + time.Now().Format("150405.000000")
	sub := NewSubscriber(client, channel, discardLogger())
	events := make(chan domain.Event, 1)
	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() { _ = sub.Run(runCtx, func(ev domain.Event) { events <- ev }) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		n, err := client.Publish(ctx, channel, `{"type":"ready"}`).Result()
		if err != nil {
			t.Fatalf("publish: %v", err)
		}
		if n > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("subscriber never attached")
		}
		time.Sleep(20 * time.Millisecond)
	}

	select {
	case ev := <-events:
		if ev.Type != domain.EventReady {
			t.Fatalf("unexpected event %+v", ev)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for event")
	}
}
