package apihttp

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/text/language"

	"launcherd/internal/domain"
)

// SessionController is the orchestrator surface the view layer drives.
type SessionController interface {
	Snapshot() domain.SessionState
	RequestPlay(ctx context.Context) domain.CommandResult
	RequestLauncherUpdate(ctx context.Context) domain.CommandResult
	DismissError(ctx context.Context) domain.CommandResult
	Cancel(ctx context.Context) domain.CommandResult
}

type ListDiagnosticsUseCase interface {
	Execute(ctx context.Context, limit int) ([]domain.JournalEntry, error)
}

// Localizer renders phase, stage and error texts for a client locale.
type Localizer interface {
	Match(pref string) language.Tag
	PhaseLabel(tag language.Tag, p domain.Phase) string
	StageLabel(tag language.Tag, s domain.Stage) string
	ErrorSuggestion(tag language.Tag, kind domain.ErrorKind) string
}

type Server struct {
	session        SessionController
	diagnostics    ListDiagnosticsUseCase
	localizer      Localizer
	allowedOrigins []string
	rateRPS        float64
	rateBurst      int
	logger         *slog.Logger
	handler        http.Handler
	wsHub          *wsHub
	upgrader       *websocket.Upgrader
}

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithDiagnostics(uc ListDiagnosticsUseCase) ServerOption {
	return func(s *Server) {
		s.diagnostics = uc
	}
}

func WithLocalizer(l Localizer) ServerOption {
	return func(s *Server) {
		s.localizer = l
	}
}

func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// WithRateLimit overrides the global request limit (default 100 rps, burst 200).
func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		if rps > 0 {
			s.rateRPS = rps
		}
		if burst > 0 {
			s.rateBurst = burst
		}
	}
}

func NewServer(session SessionController, opts ...ServerOption) *Server {
	s := &Server{
		session:   session,
		rateRPS:   100,
		rateBurst: 200,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.wsHub = newWSHub(s.logger)
	s.upgrader = newWSUpgrader(s.allowedOrigins)
	go s.wsHub.run()

	mux := http.NewServeMux()
	mux.HandleFunc("/session", s.handleSession)
	mux.HandleFunc("/session/", s.handleSessionCommand)
	mux.HandleFunc("/diagnostics", s.handleDiagnostics)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws", s.handleWS)

	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, mux), "launcherd",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/healthz" && p != "/ws"
		}),
	)
	s.handler = recoveryMiddleware(s.logger, rateLimitMiddleware(s.rateRPS, s.rateBurst, metricsMiddleware(corsMiddleware(s.allowedOrigins, traced))))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// BroadcastSession pushes a snapshot to every WebSocket client in the
// client's own locale.
func (s *Server) BroadcastSession(state domain.SessionState) {
	if s.wsHub == nil {
		return
	}
	s.wsHub.Broadcast("session", func(tag language.Tag) interface{} {
		return s.present(state, tag)
	})
}

// Close disconnects WebSocket clients and stops the hub.
func (s *Server) Close() {
	if s.wsHub != nil {
		s.wsHub.Close()
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.wsHub == nil {
		http.Error(w, "websocket not available", http.StatusServiceUnavailable)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("ws upgrade failed", slog.String("error", err.Error()))
		return
	}
	snapshot := func(tag language.Tag) interface{} {
		return s.present(s.session.Snapshot(), tag)
	}
	client := &wsClient{
		hub:     s.wsHub,
		conn:    conn,
		send:    make(chan []byte, 256),
		locale:  s.tagFor(r),
		initial: snapshot,
	}
	select {
	case s.wsHub.register <- client:
	case <-s.wsHub.done:
		conn.Close()
		return
	}
	go client.writePump()
	go client.readPump()
}

func (s *Server) tagFor(r *http.Request) language.Tag {
	if s.localizer == nil {
		return language.Und
	}
	if lang := strings.TrimSpace(r.URL.Query().Get("lang")); lang != "" {
		return s.localizer.Match(lang)
	}
	return s.localizer.Match(r.Header.Get("Accept-Language"))
}
