package prefs

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemory() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) ActiveTab(ctx context.Context) (Tab, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return ParseTab(m.values[ActiveTabKey]), nil
}

func (m *MemoryStore) SetActiveTab(ctx context.Context, tab Tab) error {
	if err := checkTab(tab); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[ActiveTabKey] = string(tab)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
