package ports

import (
	"context"

	"launcherd/internal/domain"
)

// Backend dispatches commands to the native launcher backend. Every call
// returns once the command is handed off; outcomes arrive as events tagged
// with the same operation id.
type Backend interface {
	EnsureInstalledAndLaunch(ctx context.Context, op domain.OperationID) error
	ApplyLauncherUpdate(ctx context.Context, op domain.OperationID, asset domain.UpdateAsset) error
	CancelOperation(ctx context.Context, op domain.OperationID) error
}
