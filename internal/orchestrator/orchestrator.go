// Package orchestrator owns the launcher session state machine. It reduces
// backend events into SessionState snapshots, gates view commands by phase
// and discards events from operations that are no longer active.
package orchestrator

import (
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"launcherd/internal/domain"
	"launcherd/internal/domain/ports"
	"launcherd/internal/metrics"
)

const (
	defaultDispatchTimeout = 5 * time.Second
	defaultLaunchTimeout   = 30 * time.Second
	defaultSubscriberBuf   = 16
)

// TransitionHook observes phase changes. It runs under the state lock and
// must not block.
type TransitionHook func(domain.Transition)

type Orchestrator struct {
	backend ports.Backend
	logger  *slog.Logger
	tracer  trace.Tracer
	now     func() time.Time

	dispatchTimeout time.Duration
	launchTimeout   time.Duration
	hooks           []TransitionHook

	mu          sync.Mutex
	state       domain.SessionState
	lastOp      domain.OperationID
	launchTimer *time.Timer
	subs        map[uint64]*Subscription
	nextSubID   uint64
}

type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// WithDispatchTimeout bounds how long a command waits for the backend to
// accept it.
func WithDispatchTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.dispatchTimeout = d
		}
	}
}

// WithLaunchTimeout sets how long Launching waits for the process-start
// signal before returning to Idle on its own. Zero or negative disables the
// watchdog.
func WithLaunchTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.launchTimeout = d
	}
}

func WithTransitionHook(hook TransitionHook) Option {
	return func(o *Orchestrator) {
		if hook != nil {
			o.hooks = append(o.hooks, hook)
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) {
		o.tracer = tracer
	}
}

func New(backend ports.Backend, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		backend:         backend,
		dispatchTimeout: defaultDispatchTimeout,
		launchTimeout:   defaultLaunchTimeout,
		subs:            make(map[uint64]*Subscription),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.tracer == nil {
		o.tracer = otel.Tracer("launcherd/orchestrator")
	}
	o.state = domain.NewSessionState(o.now().UTC())
	for _, p := range domain.Phases {
		metrics.CurrentPhase.WithLabelValues(string(p)).Set(0)
	}
	metrics.CurrentPhase.WithLabelValues(string(domain.PhaseIdle)).Set(1)
	return o
}

// Snapshot returns the current session state.
func (o *Orchestrator) Snapshot() domain.SessionState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Clone()
}

// HandleEvent reduces one backend event. It reports whether the state changed.
func (o *Orchestrator) HandleEvent(ev domain.Event) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	next, out := reduce(o.state, ev, o.now().UTC())
	metrics.EventsTotal.WithLabelValues(string(ev.Type), string(out)).Inc()
	if out != outcomeApplied {
		o.logger.Debug("backend event discarded",
			slog.String("type", string(ev.Type)),
			slog.String("outcome", string(out)),
			slog.Uint64("eventOperationId", uint64(ev.OperationID)),
			slog.Uint64("activeOperationId", uint64(o.state.OperationID)),
			slog.String("phase", string(o.state.Phase)),
		)
		return false
	}

	op := o.state.OperationID
	if op == 0 {
		op = next.OperationID
	}
	o.commit(next, op, string(ev.Type))
	return true
}

// commit installs next as the current state. Callers hold o.mu.
func (o *Orchestrator) commit(next domain.SessionState, op domain.OperationID, cause string) {
	prev := o.state
	next.Revision = prev.Revision + 1
	next.UpdatedAt = o.now().UTC()
	o.state = next

	if prev.Phase != next.Phase {
		o.transitioned(prev, next, op, cause)
	}
	o.publish(next)
}

func (o *Orchestrator) transitioned(prev, next domain.SessionState, op domain.OperationID, cause string) {
	o.logger.Info("session phase transition",
		slog.String("from", string(prev.Phase)),
		slog.String("to", string(next.Phase)),
		slog.Uint64("operationId", uint64(op)),
		slog.String("cause", cause),
	)
	metrics.PhaseTransitionsTotal.WithLabelValues(string(prev.Phase), string(next.Phase)).Inc()
	metrics.CurrentPhase.WithLabelValues(string(prev.Phase)).Set(0)
	metrics.CurrentPhase.WithLabelValues(string(next.Phase)).Set(1)

	if prev.Phase == domain.PhaseLaunching {
		o.stopLaunchWatchdog()
	}
	if next.Phase == domain.PhaseLaunching {
		o.startLaunchWatchdog(op)
	}

	if len(o.hooks) == 0 {
		return
	}
	t := domain.Transition{
		OperationID: op,
		From:        prev.Phase,
		To:          next.Phase,
		Cause:       cause,
		At:          next.UpdatedAt,
	}
	if next.LastError != nil {
		e := *next.LastError
		t.Error = &e
	}
	for _, hook := range o.hooks {
		hook(t)
	}
}

func (o *Orchestrator) startLaunchWatchdog(op domain.OperationID) {
	if o.launchTimeout <= 0 {
		return
	}
	o.stopLaunchWatchdog()
	o.launchTimer = time.AfterFunc(o.launchTimeout, func() { o.expireLaunch(op) })
}

func (o *Orchestrator) stopLaunchWatchdog() {
	if o.launchTimer != nil {
		o.launchTimer.Stop()
		o.launchTimer = nil
	}
}

func (o *Orchestrator) expireLaunch(op domain.OperationID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Phase != domain.PhaseLaunching || o.state.OperationID != op {
		return
	}
	o.logger.Warn("launch signal not received, returning to idle",
		slog.Uint64("operationId", uint64(op)),
		slog.Duration("timeout", o.launchTimeout),
	)
	next := o.state.Clone()
	moveTo(&next, domain.PhaseIdle)
	next.OperationID = 0
	o.commit(next, op, "launch_timeout")
}
