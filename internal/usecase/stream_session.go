package usecase

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"launcherd/internal/domain"
	"launcherd/internal/orchestrator"
)

type SessionSubscriber interface {
	Subscribe(buffer int) *orchestrator.Subscription
}

type SessionBroadcaster interface {
	BroadcastSession(state domain.SessionState)
}

// StreamSession pushes session snapshots to the view layer. Snapshots that
// change the phase go out immediately; same-phase updates (progress ticks)
// are coalesced to at most MaxPerSecond, always delivering the newest.
type StreamSession struct {
	Source       SessionSubscriber
	Sink         SessionBroadcaster
	MaxPerSecond float64
}

func (s StreamSession) Run(ctx context.Context) {
	sub := s.Source.Subscribe(64)
	defer sub.Close()

	var limiter *rate.Limiter
	if s.MaxPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.MaxPerSecond), 1)
	}

	var (
		lastPhase domain.Phase
		pending   *domain.SessionState
		timer     *time.Timer
		timerC    <-chan time.Time
	)
	send := func(state domain.SessionState) {
		s.Sink.BroadcastSession(state)
		lastPhase = state.Phase
		pending = nil
	}
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case state, ok := <-sub.C:
			if !ok {
				return
			}
			if limiter == nil || state.Phase != lastPhase || limiter.Allow() {
				send(state)
				continue
			}
			pending = &state
			if timerC == nil {
				timer = time.NewTimer(limiter.Reserve().Delay())
				timerC = timer.C
			}
		case <-timerC:
			timer, timerC = nil, nil
			if pending != nil {
				send(*pending)
			}
		}
	}
}
