package memory

import (
	"context"
	"sync"

	"launcherd/internal/domain"
)

const defaultCapacity = 1024

// Journal keeps the most recent transitions in a fixed-size ring. It is used
// when no MongoDB URI is configured; contents do not survive a restart.
type Journal struct {
	mu      sync.RWMutex
	entries []domain.JournalEntry
	next    int
	full    bool
}

func NewJournal(capacity int) *Journal {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Journal{entries: make([]domain.JournalEntry, capacity)}
}

func (j *Journal) Append(ctx context.Context, entry domain.JournalEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	j.entries[j.next] = entry
	j.next++
	if j.next == len(j.entries) {
		j.next = 0
		j.full = true
	}
	return nil
}

// ListRecent returns up to limit entries, newest first. limit <= 0 returns all.
func (j *Journal) ListRecent(ctx context.Context, limit int) ([]domain.JournalEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	j.mu.RLock()
	defer j.mu.RUnlock()

	size := j.next
	if j.full {
		size = len(j.entries)
	}
	if limit <= 0 || limit > size {
		limit = size
	}

	out := make([]domain.JournalEntry, 0, limit)
	idx := j.next
	for i := 0; i < limit; i++ {
		idx--
		if idx < 0 {
			idx = len(j.entries) - 1
		}
		out = append(out, j.entries[idx])
	}
	return out, nil
}

func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.full {
		return len(j.entries)
	}
	return j.next
}
