package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"launcherd/internal/domain"
	"launcherd/internal/metrics"
)

var ErrDispatch = errors.New("backend dispatch failed")

const (
	commandPlay           = "play"
	commandLauncherUpdate = "launcher_update"
	commandDismissError   = "dismiss_error"
	commandCancel         = "cancel"
)

// RequestPlay starts an ensure-installed-and-launch operation.
// Accepted from Idle, ReadyToLaunch and Failed.
func (o *Orchestrator) RequestPlay(ctx context.Context) domain.CommandResult {
	ctx, span := o.tracer.Start(ctx, "orchestrator.RequestPlay")
	defer span.End()

	o.mu.Lock()
	if !o.state.Phase.Playable() {
		res := o.rejectLocked(commandPlay)
		o.mu.Unlock()
		return res
	}
	op := o.nextOperationLocked()
	next := o.state.Clone()
	resetProgress(&next)
	next.OperationID = op
	moveTo(&next, domain.PhaseCheckingForUpdate)
	o.commit(next, op, commandPlay)
	o.mu.Unlock()

	metrics.CommandsTotal.WithLabelValues(commandPlay, "accepted").Inc()
	span.SetAttributes(attribute.Int64("launcher.operation_id", int64(op)))

	err := o.dispatch(ctx, commandPlay, func(ctx context.Context) error {
		return o.backend.EnsureInstalledAndLaunch(ctx, op)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.failOperation(op, commandPlay, err)
	}
	return domain.CommandResult{Accepted: true, OperationID: op, State: o.Snapshot()}
}

// RequestLauncherUpdate applies the offered launcher update. The backend
// replaces and restarts the process, so nothing leaves
// ApplyingLauncherUpdate except a failure.
func (o *Orchestrator) RequestLauncherUpdate(ctx context.Context) domain.CommandResult {
	ctx, span := o.tracer.Start(ctx, "orchestrator.RequestLauncherUpdate")
	defer span.End()

	o.mu.Lock()
	if o.state.Phase != domain.PhaseLauncherUpdateAvailable || o.state.UpdateAsset == nil {
		res := o.rejectLocked(commandLauncherUpdate)
		o.mu.Unlock()
		return res
	}
	op := o.nextOperationLocked()
	asset := *o.state.UpdateAsset
	next := o.state.Clone()
	resetProgress(&next)
	next.OperationID = op
	moveTo(&next, domain.PhaseApplyingLauncherUpdate)
	o.commit(next, op, commandLauncherUpdate)
	o.mu.Unlock()

	metrics.CommandsTotal.WithLabelValues(commandLauncherUpdate, "accepted").Inc()
	span.SetAttributes(
		attribute.Int64("launcher.operation_id", int64(op)),
		attribute.String("launcher.update_version", asset.Version),
	)

	err := o.dispatch(ctx, commandLauncherUpdate, func(ctx context.Context) error {
		return o.backend.ApplyLauncherUpdate(ctx, op, asset)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.failOperation(op, commandLauncherUpdate, err)
	}
	return domain.CommandResult{Accepted: true, OperationID: op, State: o.Snapshot()}
}

// DismissError clears the failure and returns to Idle.
func (o *Orchestrator) DismissError(ctx context.Context) domain.CommandResult {
	_, span := o.tracer.Start(ctx, "orchestrator.DismissError")
	defer span.End()

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Phase != domain.PhaseFailed {
		return o.rejectLocked(commandDismissError)
	}
	next := o.state.Clone()
	moveTo(&next, domain.PhaseIdle)
	next.OperationID = 0
	o.commit(next, 0, commandDismissError)

	metrics.CommandsTotal.WithLabelValues(commandDismissError, "accepted").Inc()
	return domain.CommandResult{Accepted: true, State: o.state.Clone()}
}

// Cancel moves to Idle immediately and asks the backend to stop the active
// operation. Late events from that operation no longer match and are dropped.
func (o *Orchestrator) Cancel(ctx context.Context) domain.CommandResult {
	ctx, span := o.tracer.Start(ctx, "orchestrator.Cancel")
	defer span.End()

	o.mu.Lock()
	if !o.state.Phase.Cancellable() {
		res := o.rejectLocked(commandCancel)
		o.mu.Unlock()
		return res
	}
	op := o.state.OperationID
	next := o.state.Clone()
	moveTo(&next, domain.PhaseIdle)
	next.OperationID = 0
	o.commit(next, op, commandCancel)
	state := o.state.Clone()
	o.mu.Unlock()

	metrics.CommandsTotal.WithLabelValues(commandCancel, "accepted").Inc()
	span.SetAttributes(attribute.Int64("launcher.operation_id", int64(op)))

	err := o.dispatch(ctx, commandCancel, func(ctx context.Context) error {
		return o.backend.CancelOperation(ctx, op)
	})
	if err != nil {
		span.RecordError(err)
		o.logger.Warn("cancel dispatch failed",
			slog.Uint64("operationId", uint64(op)),
			slog.String("error", err.Error()),
		)
	}
	return domain.CommandResult{Accepted: true, OperationID: op, State: state}
}

func (o *Orchestrator) rejectLocked(command string) domain.CommandResult {
	o.logger.Warn("command ignored in current phase",
		slog.String("command", command),
		slog.String("phase", string(o.state.Phase)),
		slog.Uint64("operationId", uint64(o.state.OperationID)),
	)
	metrics.CommandsTotal.WithLabelValues(command, "rejected").Inc()
	return domain.CommandResult{Accepted: false, State: o.state.Clone()}
}

func (o *Orchestrator) nextOperationLocked() domain.OperationID {
	o.lastOp++
	return o.lastOp
}

func (o *Orchestrator) dispatch(ctx context.Context, command string, call func(context.Context) error) error {
	dctx, cancel := context.WithTimeout(ctx, o.dispatchTimeout)
	defer cancel()

	start := time.Now()
	err := call(dctx)
	metrics.DispatchDuration.WithLabelValues(command).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.CommandsTotal.WithLabelValues(command, "dispatch_failed").Inc()
		return fmt.Errorf("%w: %v", ErrDispatch, err)
	}
	return nil
}

// failOperation moves the session to Failed when the backend never accepted
// op. It does nothing if op is no longer the active operation.
func (o *Orchestrator) failOperation(op domain.OperationID, command string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.OperationID != op || o.state.Phase == domain.PhaseFailed {
		return
	}
	o.logger.Warn("command dispatch failed",
		slog.String("command", command),
		slog.Uint64("operationId", uint64(op)),
		slog.String("error", err.Error()),
	)
	next := o.state.Clone()
	if !moveTo(&next, domain.PhaseFailed) {
		return
	}
	next.LastError = &domain.ErrorInfo{
		Kind:       domain.ErrorKindUnknown,
		Message:    "the launcher backend did not accept the request",
		Technical:  err.Error(),
		OccurredAt: o.now().UTC(),
	}
	next.OperationID = 0
	o.commit(next, op, "dispatch_failed")
}
