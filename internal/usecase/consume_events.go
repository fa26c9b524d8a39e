package usecase

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"launcherd/internal/domain/ports"
)

// ConsumeEvents feeds the backend event stream into Handler and reconnects
// with exponential backoff whenever the source drops.
type ConsumeEvents struct {
	Source       ports.EventSource
	Handler      ports.EventHandler
	Logger       *slog.Logger
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// Run blocks until ctx is cancelled.
func (c ConsumeEvents) Run(ctx context.Context) {
	initial := c.InitialDelay
	if initial <= 0 {
		initial = 500 * time.Millisecond
	}
	maxDelay := c.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	delay := initial

	for {
		started := time.Now()
		err := c.Source.Run(ctx, c.Handler)
		if ctx.Err() != nil {
			return
		}
		if time.Since(started) > maxDelay {
			delay = initial
		}
		if err != nil {
			c.Logger.Warn("events: source failed, reconnecting",
				slog.String("error", wrapOp(ErrBackend, "subscribe", err).Error()),
				slog.Duration("retryIn", delay),
			)
		}

		timer := time.NewTimer(jitter(delay))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		delay = min(delay*2, maxDelay)
	}
}

// jitter spreads d by ±25%.
func jitter(d time.Duration) time.Duration {
	factor := 0.75 + rand.Float64()*0.5
	return time.Duration(float64(d) * factor)
}
