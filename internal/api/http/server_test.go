package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/text/language"

	"launcherd/internal/domain"
	"launcherd/internal/usecase"
)

type fakeSession struct {
	mu       sync.Mutex
	state    domain.SessionState
	accept   bool
	commands []string
}

func newFakeSession() *fakeSession {
	return &fakeSession{state: domain.NewSessionState(time.Unix(1700000000, 0))}
}

func (f *fakeSession) Snapshot() domain.SessionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.Clone()
}

func (f *fakeSession) run(name string) domain.CommandResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, name)
	if !f.accept {
		return domain.CommandResult{State: f.state.Clone()}
	}
	f.state.OperationID++
	f.state.Phase = domain.PhaseCheckingForUpdate
	return domain.CommandResult{Accepted: true, OperationID: f.state.OperationID, State: f.state.Clone()}
}

func (f *fakeSession) RequestPlay(ctx context.Context) domain.CommandResult { return f.run("play") }
func (f *fakeSession) RequestLauncherUpdate(ctx context.Context) domain.CommandResult {
	return f.run("launcher-update")
}
func (f *fakeSession) DismissError(ctx context.Context) domain.CommandResult {
	return f.run("dismiss-error")
}
func (f *fakeSession) Cancel(ctx context.Context) domain.CommandResult { return f.run("cancel") }

type fakeDiagnostics struct {
	limit   int
	entries []domain.JournalEntry
	err     error
}

func (f *fakeDiagnostics) Execute(ctx context.Context, limit int) ([]domain.JournalEntry, error) {
	f.limit = limit
	return f.entries, f.err
}

type fakeLocalizer struct{}

func (fakeLocalizer) Match(pref string) language.Tag {
	if strings.HasPrefix(pref, "ru") {
		return language.Russian
	}
	return language.English
}

func (fakeLocalizer) PhaseLabel(tag language.Tag, p domain.Phase) string {
	return tag.String() + ":" + string(p)
}

func (fakeLocalizer) StageLabel(tag language.Tag, s domain.Stage) string {
	if s == domain.StageNone {
		return ""
	}
	return tag.String() + ":" + string(s)
}

func (fakeLocalizer) ErrorSuggestion(tag language.Tag, kind domain.ErrorKind) string {
	return tag.String() + ":fix-" + string(kind)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, session SessionController, opts ...ServerOption) *Server {
	t.Helper()
	opts = append([]ServerOption{WithLogger(discardLogger())}, opts...)
	s := NewServer(session, opts...)
	t.Cleanup(s.Close)
	return s
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode body: %v (raw: %s)", err, rec.Body.String())
	}
}

func TestGetSessionLocalized(t *testing.T) {
	session := newFakeSession()
	session.state.Phase = domain.PhaseFailed
	session.state.LastError = &domain.ErrorInfo{Kind: domain.ErrorKindNetwork, Message: "offline"}
	server := newTestServer(t, session, WithLocalizer(fakeLocalizer{}))

	req := httptest.NewRequest(http.MethodGet, "/session", nil)
	req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9")
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var view sessionView
	decodeBody(t, rec, &view)
	if view.Phase != domain.PhaseFailed || view.PhaseLabel != "ru:failed" || view.Locale != "ru" {
		t.Fatalf("unexpected view %+v", view)
	}
	if view.LastError == nil || view.LastError.Suggestion != "ru:fix-NetworkError" || view.LastError.Message != "offline" {
		t.Fatalf("unexpected error view %+v", view.LastError)
	}
	if !view.CanPlay || view.CanCancel {
		t.Fatalf("unexpected gates canPlay=%v canCancel=%v", view.CanPlay, view.CanCancel)
	}
}

func TestGetSessionLangQueryOverridesHeader(t *testing.T) {
	server := newTestServer(t, newFakeSession(), WithLocalizer(fakeLocalizer{}))

	req := httptest.NewRequest(http.MethodGet, "/session?lang=en", nil)
	req.Header.Set("Accept-Language", "ru")
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)

	var view sessionView
	decodeBody(t, rec, &view)
	if view.Locale != "en" {
		t.Fatalf("locale = %q, want en", view.Locale)
	}
}

func TestGetSessionWithoutLocalizer(t *testing.T) {
	server := newTestServer(t, newFakeSession())
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/session", nil))

	var raw map[string]any
	decodeBody(t, rec, &raw)
	if _, ok := raw["phaseLabel"]; ok {
		t.Fatal("phaseLabel must be omitted without a localizer")
	}
	if raw["phase"] != "idle" {
		t.Fatalf("phase = %v", raw["phase"])
	}
}

func TestSessionCommands(t *testing.T) {
	for _, name := range []string{"play", "launcher-update", "dismiss-error", "cancel"} {
		t.Run(name, func(t *testing.T) {
			session := newFakeSession()
			session.accept = true
			server := newTestServer(t, session)

			rec := httptest.NewRecorder()
			server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/session/"+name, nil))

			if rec.Code != http.StatusAccepted {
				t.Fatalf("status = %d, want 202", rec.Code)
			}
			var resp commandResponse
			decodeBody(t, rec, &resp)
			if !resp.Accepted || resp.OperationID != 1 || resp.Session.Phase != domain.PhaseCheckingForUpdate {
				t.Fatalf("unexpected response %+v", resp)
			}
			if len(session.commands) != 1 || session.commands[0] != name {
				t.Fatalf("commands = %v", session.commands)
			}
		})
	}
}

func TestRejectedCommandIsNotAnError(t *testing.T) {
	session := newFakeSession()
	server := newTestServer(t, session)

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/session/cancel", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp commandResponse
	decodeBody(t, rec, &resp)
	if resp.Accepted || resp.OperationID != 0 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestSessionMethodNotAllowed(t *testing.T) {
	server := newTestServer(t, newFakeSession())
	tests := []struct {
		method, path string
	}{
		{http.MethodGet, "/session/play"},
		{http.MethodDelete, "/session"},
		{http.MethodPut, "/diagnostics"},
		{http.MethodPost, "/healthz"},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: status = %d, want 405", tt.method, tt.path, rec.Code)
			continue
		}
		var env errorEnvelope
		decodeBody(t, rec, &env)
		if env.Error.Code != "method_not_allowed" {
			t.Errorf("%s %s: code = %q", tt.method, tt.path, env.Error.Code)
		}
	}
}

func TestUnknownSessionCommand(t *testing.T) {
	server := newTestServer(t, newFakeSession())
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/session/teleport", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestDiagnostics(t *testing.T) {
	diag := &fakeDiagnostics{entries: []domain.JournalEntry{{ID: "a"}, {ID: "b"}}}
	server := newTestServer(t, newFakeSession(), WithDiagnostics(diag))

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/diagnostics?limit=2", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp diagnosticsResponse
	decodeBody(t, rec, &resp)
	if resp.Count != 2 || resp.Entries[0].ID != "a" || diag.limit != 2 {
		t.Fatalf("unexpected response %+v (limit %d)", resp, diag.limit)
	}
}

func TestDiagnosticsErrors(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		err    error
		status int
		code   string
	}{
		{"bad limit", "?limit=abc", nil, http.StatusBadRequest, "invalid_request"},
		{"negative limit", "?limit=-1", nil, http.StatusBadRequest, "invalid_request"},
		{"limit too large", "?limit=900", usecase.ErrInvalidLimit, http.StatusBadRequest, "invalid_request"},
		{"journal failure", "", fmt.Errorf("%w: %v", usecase.ErrJournal, errors.New("timeout")), http.StatusInternalServerError, "journal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newTestServer(t, newFakeSession(), WithDiagnostics(&fakeDiagnostics{err: tt.err}))
			rec := httptest.NewRecorder()
			server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/diagnostics"+tt.query, nil))
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			var env errorEnvelope
			decodeBody(t, rec, &env)
			if env.Error.Code != tt.code {
				t.Fatalf("code = %q, want %q", env.Error.Code, tt.code)
			}
		})
	}
}

func TestDiagnosticsNotConfigured(t *testing.T) {
	server := newTestServer(t, newFakeSession())
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/diagnostics", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	server := newTestServer(t, newFakeSession())
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var body map[string]any
	decodeBody(t, rec, &body)
	if body["status"] != "ok" || body["phase"] != "idle" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	server := newTestServer(t, newFakeSession())
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSizeLabel(t *testing.T) {
	tests := []struct {
		downloaded, total int64
		want              string
	}{
		{0, 0, ""},
		{1000, 0, "1.0 kB"},
		{500, 2000, "500 B / 2.0 kB"},
	}
	for _, tt := range tests {
		if got := sizeLabel(tt.downloaded, tt.total); got != tt.want {
			t.Errorf("sizeLabel(%d, %d) = %q, want %q", tt.downloaded, tt.total, got, tt.want)
		}
	}
}
