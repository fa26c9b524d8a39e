package redisbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"launcherd/internal/domain"
	"launcherd/internal/domain/ports"
	"launcherd/internal/metrics"
)

// Subscriber reads backend events from a Redis channel.
type Subscriber struct {
	client  redis.UniversalClient
	channel string
	logger  *slog.Logger
}

func NewSubscriber(client redis.UniversalClient, channel string, logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &Subscriber{client: client, channel: channel, logger: logger}
}

// Run subscribes and dispatches events until ctx is cancelled or the
// subscription drops. Malformed messages are logged and skipped.
func (s *Subscriber) Run(ctx context.Context, handle ports.EventHandler) error {
	pubsub := s.client.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	// Receive the subscription confirmation so connection errors surface here.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", s.channel, err)
	}
	s.logger.Info("bus: subscribed", slog.String("channel", s.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("bus: subscription closed")
			}
			s.dispatch(msg.Payload, handle)
		}
	}
}

func (s *Subscriber) dispatch(payload string, handle ports.EventHandler) {
	ev, err := decodeEvent([]byte(payload))
	if err != nil {
		result := "decode_error"
		if errors.Is(err, domain.ErrUnknownEvent) {
			result = "unknown_type"
		}
		metrics.BusMessagesTotal.WithLabelValues("in", result).Inc()
		s.logger.Warn("bus: dropping event", slog.String("error", err.Error()))
		return
	}
	metrics.BusMessagesTotal.WithLabelValues("in", "ok").Inc()
	handle(ev)
}
