package apihttp

import (
	"context"
	"net/http"
	"strings"

	"launcherd/internal/domain"
)

type commandResponse struct {
	Accepted    bool        `json:"accepted"`
	OperationID uint64      `json:"operationId,omitempty"`
	Session     sessionView `json:"session"`
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.present(s.session.Snapshot(), s.tagFor(r)))
}

func (s *Server) handleSessionCommand(w http.ResponseWriter, r *http.Request) {
	name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/session/"), "/")

	var command func(context.Context) domain.CommandResult
	switch name {
	case "play":
		command = s.session.RequestPlay
	case "launcher-update":
		command = s.session.RequestLauncherUpdate
	case "dismiss-error":
		command = s.session.DismissError
	case "cancel":
		command = s.session.Cancel
	default:
		writeError(w, http.StatusNotFound, "not_found", "unknown session command")
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}

	result := command(r.Context())
	status := http.StatusOK
	if result.Accepted {
		status = http.StatusAccepted
	}
	writeJSON(w, status, commandResponse{
		Accepted:    result.Accepted,
		OperationID: uint64(result.OperationID),
		Session:     s.present(result.State, s.tagFor(r)),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	state := s.session.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"phase":     state.Phase,
		"revision":  state.Revision,
		"wsClients": s.wsHub.clientCount(),
	})
}
