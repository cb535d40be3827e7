package mocks

import (
	"context"
	"maps"
	"sync"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven"
)

var _ driven.ProviderSettingsStore = (*MockProviderSettingsStore)(nil)

// MockProviderSettingsStore keeps admin settings in memory.
type MockProviderSettingsStore struct {
	mu       sync.RWMutex
	settings map[domain.ProviderName]map[string]string

	// GetErr is returned by Get when set
	GetErr error
}

// NewMockProviderSettingsStore creates a new MockProviderSettingsStore
func NewMockProviderSettingsStore() *MockProviderSettingsStore {
	return &MockProviderSettingsStore{settings: make(map[domain.ProviderName]map[string]string)}
}

func (m *MockProviderSettingsStore) Get(ctx context.Context, provider domain.ProviderName) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	s, ok := m.settings[provider]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return maps.Clone(s), nil
}

func (m *MockProviderSettingsStore) Save(ctx context.Context, provider domain.ProviderName, settings map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[provider] = maps.Clone(settings)
	return nil
}

func (m *MockProviderSettingsStore) Delete(ctx context.Context, provider domain.ProviderName) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.settings, provider)
	return nil
}
