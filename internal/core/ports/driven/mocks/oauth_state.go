package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven"
)

var _ driven.OAuthStateStore = (*MockOAuthStateStore)(nil)

// MockOAuthStateStore keeps OAuth states in memory.
type MockOAuthStateStore struct {
	mu     sync.Mutex
	states map[string]driven.OAuthState
}

// NewMockOAuthStateStore creates a new MockOAuthStateStore
func NewMockOAuthStateStore() *MockOAuthStateStore {
	return &MockOAuthStateStore{states: make(map[string]driven.OAuthState)}
}

func (m *MockOAuthStateStore) Save(ctx context.Context, state *driven.OAuthState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state.State] = *state
	return nil
}

func (m *MockOAuthStateStore) GetAndDelete(ctx context.Context, state string) (*driven.OAuthState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[state]
	if !ok {
		return nil, nil
	}
	delete(m.states, state)
	if time.Now().After(s.ExpiresAt) {
		return nil, nil
	}
	return &s, nil
}

func (m *MockOAuthStateStore) Cleanup(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for k, s := range m.states {
		if time.Now().After(s.ExpiresAt) {
			delete(m.states, k)
			removed++
		}
	}
	return removed, nil
}
