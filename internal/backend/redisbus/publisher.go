package redisbus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"launcherd/internal/domain"
	"launcherd/internal/metrics"
)

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Publisher sends launcher commands to the backend over a Redis channel.
type Publisher struct {
	client     publisher
	channel    string
	instanceID string
	logger     *slog.Logger
	now        func() time.Time
}

type PublisherOption func(*Publisher)

func WithInstanceID(id string) PublisherOption {
	return func(p *Publisher) { p.instanceID = id }
}

func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func NewPublisher(client publisher, channel string, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		client:  client,
		channel: channel,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Publisher) EnsureInstalledAndLaunch(ctx context.Context, op domain.OperationID) error {
	return p.send(ctx, CommandEnsureInstalledAndLaunch, op, nil)
}

func (p *Publisher) ApplyLauncherUpdate(ctx context.Context, op domain.OperationID, asset domain.UpdateAsset) error {
	return p.send(ctx, CommandApplyLauncherUpdate, op, &asset)
}

func (p *Publisher) CancelOperation(ctx context.Context, op domain.OperationID) error {
	return p.send(ctx, CommandCancelOperation, op, nil)
}

// send publishes one command. A command nobody received counts as a failure:
// the orchestrator would otherwise wait for events that never come.
func (p *Publisher) send(ctx context.Context, command string, op domain.OperationID, asset *domain.UpdateAsset) error {
	payload, err := encodeCommand(command, op, p.instanceID, asset, p.now())
	if err != nil {
		metrics.BusMessagesTotal.WithLabelValues("out", "encode_error").Inc()
		return err
	}
	receivers, err := p.client.Publish(ctx, p.channel, payload).Result()
	if err != nil {
		metrics.BusMessagesTotal.WithLabelValues("out", "error").Inc()
		return fmt.Errorf("publish %s: %w", command, err)
	}
	if receivers == 0 {
		metrics.BusMessagesTotal.WithLabelValues("out", "no_receivers").Inc()
		return fmt.Errorf("publish %s: no backend subscribed to %s", command, p.channel)
	}
	metrics.BusMessagesTotal.WithLabelValues("out", "ok").Inc()
	p.logger.Debug("bus: command published",
		slog.String("command", command),
		slog.Uint64("operationId", uint64(op)),
		slog.Int64("receivers", receivers),
	)
	return nil
}
