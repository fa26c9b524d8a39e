// Package simulated is an in-process backend that walks the install and
// launch pipeline on timers. It is used for local runs and demos when no
// Redis bus is configured.
package simulated

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"launcherd/internal/domain"
	"launcherd/internal/domain/ports"
)

var ErrNotRunning = errors.New("simulated backend is not running")

const (
	defaultStepInterval = 200 * time.Millisecond
	defaultTotalBytes   = 256 << 20
	downloadSteps       = 10
	installSteps        = 4
)

// Backend implements both ports.Backend and ports.EventSource.
type Backend struct {
	logger       *slog.Logger
	stepInterval time.Duration
	totalBytes   int64
	files        []string
	startup      *domain.Event
	failAt       domain.Stage

	mu      sync.Mutex
	runCtx  context.Context
	handle  ports.EventHandler
	cancels map[domain.OperationID]context.CancelFunc
	wg      sync.WaitGroup
}

type Option func(*Backend)

func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

func WithStepInterval(d time.Duration) Option {
	return func(b *Backend) {
		if d > 0 {
			b.stepInterval = d
		}
	}
}

func WithTotalBytes(n int64) Option {
	return func(b *Backend) {
		if n > 0 {
			b.totalBytes = n
		}
	}
}

// WithStartupUpdate announces a launcher update as soon as a consumer attaches.
func WithStartupUpdate(asset domain.UpdateAsset) Option {
	return func(b *Backend) {
		b.startup = &domain.Event{Type: domain.EventUpdateAvailable, Asset: &asset}
	}
}

// WithStartupReady reports an already installed game on attach.
func WithStartupReady() Option {
	return func(b *Backend) {
		b.startup = &domain.Event{Type: domain.EventReady}
	}
}

// WithFailureAt makes every run fail when it reaches the given stage.
func WithFailureAt(stage domain.Stage) Option {
	return func(b *Backend) { b.failAt = stage }
}

func New(opts ...Option) *Backend {
	b := &Backend{
		logger:       slog.Default(),
		stepInterval: defaultStepInterval,
		totalBytes:   defaultTotalBytes,
		files:        []string{"game.pwr", "jre.tar.gz", "assets.zip"},
		cancels:      make(map[domain.OperationID]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run attaches the event handler and blocks until ctx is done. Runs started
// while attached are stopped when Run returns.
func (b *Backend) Run(ctx context.Context, handle ports.EventHandler) error {
	runCtx, cancel := context.WithCancel(ctx)
	b.mu.Lock()
	b.runCtx = runCtx
	b.handle = handle
	startup := b.startup
	b.mu.Unlock()

	if startup != nil {
		handle(*startup)
	}

	<-runCtx.Done()
	cancel()

	b.mu.Lock()
	b.handle = nil
	b.runCtx = nil
	b.mu.Unlock()
	b.wg.Wait()
	return ctx.Err()
}

func (b *Backend) EnsureInstalledAndLaunch(_ context.Context, op domain.OperationID) error {
	return b.start(op, func(ctx context.Context, emit ports.EventHandler) {
		b.runInstall(ctx, op, emit)
	})
}

func (b *Backend) ApplyLauncherUpdate(_ context.Context, op domain.OperationID, asset domain.UpdateAsset) error {
	if err := asset.Validate(); err != nil {
		return err
	}
	return b.start(op, func(ctx context.Context, emit ports.EventHandler) {
		b.runLauncherUpdate(ctx, op, asset, emit)
	})
}

func (b *Backend) CancelOperation(_ context.Context, op domain.OperationID) error {
	b.mu.Lock()
	cancel, ok := b.cancels[op]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: operation %d", domain.ErrNotFound, op)
	}
	cancel()
	return nil
}

func (b *Backend) start(op domain.OperationID, run func(context.Context, ports.EventHandler)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handle == nil || b.runCtx == nil {
		return ErrNotRunning
	}
	ctx, cancel := context.WithCancel(b.runCtx)
	b.cancels[op] = cancel
	emit := b.handle

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		defer b.forget(op)
		run(ctx, emit)
	}()
	return nil
}

func (b *Backend) forget(op domain.OperationID) {
	b.mu.Lock()
	if cancel, ok := b.cancels[op]; ok {
		cancel()
		delete(b.cancels, op)
	}
	b.mu.Unlock()
}

func (b *Backend) runInstall(ctx context.Context, op domain.OperationID, emit ports.EventHandler) {
	emit(domain.Event{Type: domain.EventStatus, OperationID: op, Status: "Checking for updates"})
	if !b.sleep(ctx) {
		return
	}

	perStep := b.totalBytes / downloadSteps
	for i := 1; i <= downloadSteps; i++ {
		if b.failAt == domain.StageDownload && i == downloadSteps/2 {
			b.fail(emit, op, domain.ErrorKindNetwork, "download interrupted", "simulated connection reset")
			return
		}
		downloaded := perStep * int64(i)
		if i == downloadSteps {
			downloaded = b.totalBytes
		}
		emit(domain.Event{Type: domain.EventProgress, OperationID: op, Progress: &domain.Progress{
			Stage:           domain.StageDownload,
			DownloadedBytes: downloaded,
			TotalBytes:      b.totalBytes,
			SpeedLabel:      b.speedLabel(perStep),
			CurrentFile:     b.files[i%len(b.files)],
		}})
		if !b.sleep(ctx) {
			return
		}
	}

	for i := 1; i <= installSteps; i++ {
		if b.failAt == domain.StageInstall {
			b.fail(emit, op, domain.ErrorKindFilesystem, "could not write game files", "simulated permission denied")
			return
		}
		emit(domain.Event{Type: domain.EventProgress, OperationID: op, Progress: &domain.Progress{
			Stage:       domain.StageInstall,
			Percent:     float64(i) * 100 / installSteps,
			CurrentFile: b.files[0],
		}})
		if !b.sleep(ctx) {
			return
		}
	}

	emit(domain.Event{Type: domain.EventComplete, OperationID: op})
	if !b.sleep(ctx) {
		return
	}
	if b.failAt == domain.StageComplete {
		b.fail(emit, op, domain.ErrorKindGameProcess, "the game exited during startup", "simulated exit status 1")
		return
	}
	emit(domain.Event{Type: domain.EventLaunched, OperationID: op})
}

func (b *Backend) runLauncherUpdate(ctx context.Context, op domain.OperationID, asset domain.UpdateAsset, emit ports.EventHandler) {
	b.logger.Info("simulated: applying launcher update",
		slog.String("url", asset.URL),
		slog.String("version", asset.Version),
	)
	for i := 1; i <= downloadSteps; i++ {
		emit(domain.Event{Type: domain.EventProgress, OperationID: op, Progress: &domain.Progress{
			Stage:   domain.StageUpdate,
			Percent: float64(i) * 100 / downloadSteps,
		}})
		if !b.sleep(ctx) {
			return
		}
	}
	if b.failAt == domain.StageUpdate {
		b.fail(emit, op, domain.ErrorKindValidation, "launcher update checksum mismatch", "simulated sha256 mismatch")
	}
	// A successful self-update replaces the process; nothing more is emitted.
}

func (b *Backend) fail(emit ports.EventHandler, op domain.OperationID, kind domain.ErrorKind, msg, technical string) {
	emit(domain.Event{Type: domain.EventError, OperationID: op, Error: &domain.ErrorInfo{
		Kind:      kind,
		Message:   msg,
		Technical: technical,
	}})
}

func (b *Backend) speedLabel(bytesPerStep int64) string {
	perSecond := float64(bytesPerStep) / b.stepInterval.Seconds()
	return humanize.Bytes(uint64(perSecond)) + "/s"
}

func (b *Backend) sleep(ctx context.Context) bool {
	t := time.NewTimer(b.stepInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
