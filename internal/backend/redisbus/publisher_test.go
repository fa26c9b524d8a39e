package redisbus

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"

	"launcherd/internal/domain"
)

type fakePublisher struct {
	mu        sync.Mutex
	channel   string
	messages  [][]byte
	receivers int64
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channel = channel
	if b, ok := message.([]byte); ok {
		f.messages = append(f.messages, b)
	}
	return redis.NewIntResult(f.receivers, f.err)
}

func (f *fakePublisher) last(t *testing.T) commandMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.messages) == 0 {
		t.Fatal("nothing published")
	}
	var msg commandMessage
	if err := json.Unmarshal(f.messages[len(f.messages)-1], &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return msg
}

func TestPublisherSendsCommands(t *testing.T) {
	fake := &fakePublisher{receivers: 1}
	p := NewPublisher(fake, "launcher:commands", WithInstanceID("inst-7"))
	ctx := context.Background()

	if err := p.EnsureInstalledAndLaunch(ctx, 5); err != nil {
		t.Fatalf("launch: %v", err)
	}
	msg := fake.last(t)
	if fake.channel != "launcher:commands" || msg.Command != CommandEnsureInstalledAndLaunch || msg.OperationID != 5 || msg.InstanceID != "inst-7" {
		t.Fatalf("unexpected command %+v on %s", msg, fake.channel)
	}

	asset := domain.UpdateAsset{URL: "https://cdn.example/l.exe"}
	if err := p.ApplyLauncherUpdate(ctx, 6, asset); err != nil {
		t.Fatalf("update: %v", err)
	}
	msg = fake.last(t)
	if msg.Command != CommandApplyLauncherUpdate || msg.Asset == nil || msg.Asset.URL != asset.URL {
		t.Fatalf("unexpected command %+v", msg)
	}

	if err := p.CancelOperation(ctx, 6); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if msg = fake.last(t); msg.Command != CommandCancelOperation {
		t.Fatalf("unexpected command %+v", msg)
	}
}

func TestPublisherNoReceivers(t *testing.T) {
	p := NewPublisher(&fakePublisher{receivers: 0}, "launcher:commands")
	if err := p.EnsureInstalledAndLaunch(context.Background(), 1); err == nil {
		t.Fatal("expected error when nobody is subscribed")
	}
}

func TestPublisherWrapsRedisError(t *testing.T) {
	boom := errors.New("connection refused")
	p := NewPublisher(&fakePublisher{err: boom}, "launcher:commands")
	err := p.EnsureInstalledAndLaunch(context.Background(), 1)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
