package apihttp

import (
	"errors"
	"net/http"

	"launcherd/internal/domain"
	"launcherd/internal/usecase"
)

type diagnosticsResponse struct {
	Entries []domain.JournalEntry `json:"entries"`
	Count   int                   `json:"count"`
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	if s.diagnostics == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "diagnostics journal not configured")
		return
	}

	limit, err := parsePositiveInt(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid limit")
		return
	}
	entries, err := s.diagnostics.Execute(r.Context(), limit)
	if err != nil {
		writeUseCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, diagnosticsResponse{Entries: entries, Count: len(entries)})
}

func writeUseCaseError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, usecase.ErrInvalidLimit):
		writeError(w, http.StatusBadRequest, "invalid_request", "limit must be between 1 and 500")
	case errors.Is(err, usecase.ErrJournal):
		writeError(w, http.StatusInternalServerError, "journal_error", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
