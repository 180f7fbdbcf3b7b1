package storage

import (
	"context"
	"sync"
	"time"

	"rental-digest/models"
)

// MemoryStore keeps listings in process memory. It backs tests and local dry
// runs; nothing survives a restart.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]models.Listing
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]models.Listing)}
}

func (m *MemoryStore) InsertIfAbsent(_ context.Context, l *models.Listing) (models.InsertOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.items[l.ID]; exists {
		return models.AlreadyExists, nil
	}
	m.items[l.ID] = *l
	return models.Inserted, nil
}

func (m *MemoryStore) ScanSince(_ context.Context, cutoff time.Time) ([]*models.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*models.Listing
	for _, l := range m.items {
		if !l.LastUpdatedAt.Before(cutoff) {
			cp := l
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Len returns the number of stored listings.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close() error { return nil }
