package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven"
)

var _ driven.PreferenceStore = (*MockPreferenceStore)(nil)

// MockPreferenceStore keeps provider preferences in memory.
type MockPreferenceStore struct {
	mu    sync.RWMutex
	prefs map[string]domain.UserProviderPreference
}

// NewMockPreferenceStore creates a new MockPreferenceStore
func NewMockPreferenceStore() *MockPreferenceStore {
	return &MockPreferenceStore{prefs: make(map[string]domain.UserProviderPreference)}
}

func (m *MockPreferenceStore) Get(ctx context.Context, userID string) (*domain.UserProviderPreference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	pref, ok := m.prefs[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &pref, nil
}

func (m *MockPreferenceStore) Save(ctx context.Context, pref *domain.UserProviderPreference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs[pref.UserID] = *pref
	return nil
}
