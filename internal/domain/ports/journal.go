package ports

import (
	"context"

	"launcherd/internal/domain"
)

// Journal is the append-only diagnostics log of session transitions.
type Journal interface {
	Append(ctx context.Context, entry domain.JournalEntry) error
	ListRecent(ctx context.Context, limit int) ([]domain.JournalEntry, error)
}
