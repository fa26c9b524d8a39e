package orchestrator

import (
	"sync"

	"launcherd/internal/domain"
	"launcherd/internal/metrics"
)

// Subscription delivers session snapshots. The first value is the state at
// subscription time. A subscriber that falls behind loses its oldest pending
// snapshots, never the newest.
type Subscription struct {
	C <-chan domain.SessionState

	ch   chan domain.SessionState
	id   uint64
	o    *Orchestrator
	once sync.Once
}

// Subscribe registers a snapshot subscriber with the given buffer size.
func (o *Orchestrator) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = defaultSubscriberBuf
	}
	ch := make(chan domain.SessionState, buffer)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.nextSubID++
	sub := &Subscription{C: ch, ch: ch, id: o.nextSubID, o: o}
	o.subs[sub.id] = sub
	ch <- o.state.Clone()
	return sub
}

// Close unsubscribes and closes C. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.o.mu.Lock()
		defer s.o.mu.Unlock()
		delete(s.o.subs, s.id)
		close(s.ch)
	})
}

// publish fans a snapshot out to every subscriber. Callers hold o.mu.
func (o *Orchestrator) publish(state domain.SessionState) {
	for _, sub := range o.subs {
		deliver(sub.ch, state.Clone())
	}
}

func deliver(ch chan domain.SessionState, state domain.SessionState) {
	select {
	case ch <- state:
		return
	default:
	}
	select {
	case <-ch:
		metrics.SubscriberDropsTotal.Inc()
	default:
	}
	select {
	case ch <- state:
	default:
	}
}
