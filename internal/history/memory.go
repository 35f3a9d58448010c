package history

import (
	"context"
	"sync"

	"github.com/iconidentify/filegrab/internal/domain"
)

// MemoryStore keeps history in memory only.
type MemoryStore struct {
	mu      sync.Mutex
	entries []domain.HistoryEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(_ context.Context) ([]domain.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.HistoryEntry(nil), m.entries...), nil
}

func (m *MemoryStore) Save(_ context.Context, entries []domain.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append([]domain.HistoryEntry(nil), entries...)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
