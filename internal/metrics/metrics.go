package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "launcher",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "launcher",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.3, 0.5, 1, 2, 5},
	}, []string{"method", "path"})

	PhaseTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "launcher",
		Name:      "phase_transitions_total",
		Help:      "Total session phase transitions by source and target phase.",
	}, []string{"from", "to"})

	CurrentPhase = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "launcher",
		Name:      "session_phase",
		Help:      "1 for the phase the session is currently in, 0 otherwise.",
	}, []string{"phase"})

	EventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "launcher",
		Name:      "backend_events_total",
		Help:      "Backend events by type and outcome (applied, stale, ignored).",
	}, []string{"type", "outcome"})

	CommandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "launcher",
		Name:      "commands_total",
		Help:      "Session commands by name and outcome (accepted, rejected, dispatch_failed).",
	}, []string{"command", "outcome"})

	DispatchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "launcher",
		Name:      "backend_dispatch_duration_seconds",
		Help:      "Time to hand a command off to the backend.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"command"})

	SubscriberDropsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "launcher",
		Name:      "subscriber_dropped_snapshots_total",
		Help:      "Snapshots dropped because a subscriber fell behind.",
	})

	WSClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "launcher",
		Name:      "ws_clients",
		Help:      "Number of connected WebSocket clients.",
	})

	BroadcastsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "launcher",
		Name:      "session_broadcasts_total",
		Help:      "Session snapshots pushed to WebSocket clients.",
	})

	BusMessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "launcher",
		Name:      "bus_messages_total",
		Help:      "Backend bus messages by direction (in, out) and result (ok, error).",
	}, []string{"direction", "result"})

	JournalWritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "launcher",
		Name:      "journal_writes_total",
		Help:      "Diagnostics journal writes by result (ok, error, dropped).",
	}, []string{"result"})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		PhaseTransitionsTotal,
		CurrentPhase,
		EventsTotal,
		CommandsTotal,
		DispatchDuration,
		SubscriberDropsTotal,
		WSClients,
		BroadcastsTotal,
		BusMessagesTotal,
		JournalWritesTotal,
	)
}
