package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"launcherd/internal/domain"
	"launcherd/internal/domain/ports"
	"launcherd/internal/metrics"
)

// RecordJournal writes session transitions to the diagnostics journal off the
// orchestrator's critical path. Record never blocks; entries are dropped when
// the queue is full.
type RecordJournal struct {
	journal    ports.Journal
	instanceID string
	logger     *slog.Logger
	queue      chan domain.JournalEntry
	timeout    time.Duration
}

func NewRecordJournal(journal ports.Journal, instanceID string, logger *slog.Logger, buffer int) *RecordJournal {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordJournal{
		journal:    journal,
		instanceID: instanceID,
		logger:     logger,
		queue:      make(chan domain.JournalEntry, buffer),
		timeout:    5 * time.Second,
	}
}

// Record enqueues a transition. It matches orchestrator.TransitionHook.
func (r *RecordJournal) Record(t domain.Transition) {
	entry := domain.JournalEntry{
		ID:         uuid.NewString(),
		InstanceID: r.instanceID,
		Transition: t,
	}
	select {
	case r.queue <- entry:
	default:
		metrics.JournalWritesTotal.WithLabelValues("dropped").Inc()
	}
}

// Run drains the queue until ctx is cancelled, then flushes what is left.
func (r *RecordJournal) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.flush()
			return
		case entry := <-r.queue:
			r.write(ctx, entry)
		}
	}
}

func (r *RecordJournal) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	for {
		select {
		case entry := <-r.queue:
			r.write(ctx, entry)
		default:
			return
		}
	}
}

func (r *RecordJournal) write(ctx context.Context, entry domain.JournalEntry) {
	wctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.journal.Append(wctx, entry); err != nil {
		metrics.JournalWritesTotal.WithLabelValues("error").Inc()
		r.logger.Warn("journal: append failed",
			slog.String("id", entry.ID),
			slog.String("error", wrapOp(ErrJournal, "append", err).Error()),
		)
		return
	}
	metrics.JournalWritesTotal.WithLabelValues("ok").Inc()
}
