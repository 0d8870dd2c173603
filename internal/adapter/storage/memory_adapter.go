package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"stocktrack/internal/core/domain"
	"stocktrack/internal/port"
)

// MemoryAdapter is the reference ItemStore: a mutex-guarded map whose
// ConditionalSave performs the compare-and-swap under the lock. Revisions
// are fresh UUIDs, one per committed mutation.
type MemoryAdapter struct {
	mu    sync.RWMutex
	items map[string]domain.Item
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{items: make(map[string]domain.Item)}
}

func (m *MemoryAdapter) Get(_ context.Context, storeID, sku string) (*domain.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.items[storeID+"/"+sku]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

func (m *MemoryAdapter) ConditionalSave(_ context.Context, item domain.Item, expectedRevision string) (domain.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := item.Key()
	current, exists := m.items[key]

	if expectedRevision == "" {
		if exists {
			return domain.Item{}, port.ErrRevisionMismatch
		}
	} else if !exists || current.Revision != expectedRevision {
		return domain.Item{}, port.ErrRevisionMismatch
	}

	item.Revision = uuid.NewString()
	m.items[key] = item
	return item, nil
}

func (m *MemoryAdapter) Delete(_ context.Context, storeID, sku string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := storeID + "/" + sku
	if _, ok := m.items[key]; !ok {
		return false, nil
	}
	delete(m.items, key)
	return true, nil
}

func (m *MemoryAdapter) ListByStore(_ context.Context, storeID string) ([]domain.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]domain.Item, 0)
	for _, item := range m.items {
		if item.StoreID == storeID {
			items = append(items, item)
		}
	}
	return items, nil
}
