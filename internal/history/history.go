// Package history keeps the client's list of recent downloads.
package history

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/iconidentify/filegrab/internal/domain"
)

// ErrCorrupt is returned by a Store whose persisted data cannot be decoded.
var ErrCorrupt = errors.New("history data is corrupt")

// Store persists the whole history list, newest first.
type Store interface {
	Load(ctx context.Context) ([]domain.HistoryEntry, error)
	Save(ctx context.Context, entries []domain.HistoryEntry) error
	Close() error
}

// Log is an ordered, capped list of downloads on top of a Store.
// New entries go to the front; the oldest are dropped past the cap.
type Log struct {
	store Store
	max   int
	now   func() time.Time

	mu sync.Mutex
}

// NewLog creates a log keeping at most max entries. max <= 0 selects
// domain.MaxHistoryEntries.
func NewLog(store Store, max int) *Log {
	if max <= 0 {
		max = domain.MaxHistoryEntries
	}
	return &Log{
		store: store,
		max:   max,
		now:   time.Now,
	}
}

// Record adds an entry for a finished download of d saved as fileName.
func (l *Log) Record(ctx context.Context, d *domain.FileDescriptor, fileName string) (domain.HistoryEntry, error) {
	entry := domain.NewHistoryEntry(d, fileName, l.now())
	if err := l.Push(ctx, entry); err != nil {
		return domain.HistoryEntry{}, err
	}
	return entry, nil
}

// Push puts entry at the front of the log.
func (l *Log) Push(ctx context.Context, entry domain.HistoryEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.loadLocked(ctx)
	if err != nil {
		return err
	}

	entries = append([]domain.HistoryEntry{entry}, entries...)
	if len(entries) > l.max {
		entries = entries[:l.max]
	}

	if err := l.store.Save(ctx, entries); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}

// List returns the entries, newest first.
func (l *Log) List(ctx context.Context) ([]domain.HistoryEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.loadLocked(ctx)
}

// Remove deletes the entry with the given ID.
func (l *Log) Remove(ctx context.Context, id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.loadLocked(ctx)
	if err != nil {
		return err
	}

	kept := entries[:0]
	found := false
	for _, e := range entries {
		if e.ID == id {
			found = true
			continue
		}
		kept = append(kept, e)
	}
	if !found {
		return fmt.Errorf("%w: %s", domain.ErrHistoryEntryNotFound, id)
	}

	if err := l.store.Save(ctx, kept); err != nil {
		return fmt.Errorf("save history: %w", err)
	}
	return nil
}

// Clear deletes all entries.
func (l *Log) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.store.Save(ctx, nil); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// loadLocked reads the stored list. Corrupt data reads as empty and is
// overwritten by the next write.
func (l *Log) loadLocked(ctx context.Context) ([]domain.HistoryEntry, error) {
	entries, err := l.store.Load(ctx)
	if errors.Is(err, ErrCorrupt) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if len(entries) > l.max {
		entries = entries[:l.max]
	}
	return entries, nil
}
