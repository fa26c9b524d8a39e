package usecase

import (
	"context"

	"launcherd/internal/domain"
	"launcherd/internal/domain/ports"
)

const (
	DefaultDiagnosticsLimit = 50
	MaxDiagnosticsLimit     = 500
)

type ListDiagnostics struct {
	Journal ports.Journal
}

// Execute returns up to limit journal entries, newest first. A limit of 0
// selects the default.
func (uc ListDiagnostics) Execute(ctx context.Context, limit int) ([]domain.JournalEntry, error) {
	if limit == 0 {
		limit = DefaultDiagnosticsLimit
	}
	if limit < 0 || limit > MaxDiagnosticsLimit {
		return nil, ErrInvalidLimit
	}
	entries, err := uc.Journal.ListRecent(ctx, limit)
	if err != nil {
		return nil, wrapOp(ErrJournal, "list recent", err)
	}
	if entries == nil {
		entries = []domain.JournalEntry{}
	}
	return entries, nil
}
