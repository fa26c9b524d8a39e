package ports

import (
	"context"

	"launcherd/internal/domain"
)

// EventHandler receives backend events in arrival order.
type EventHandler func(domain.Event)

// EventSource delivers the backend event stream. Run blocks until ctx is
// cancelled or the source fails.
type EventSource interface {
	Run(ctx context.Context, handle EventHandler) error
}
