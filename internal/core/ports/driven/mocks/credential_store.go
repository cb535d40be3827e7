package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven"
)

var _ driven.CredentialStore = (*MockCredentialStore)(nil)

// MockCredentialStore keeps credentials in memory. Stored values are copied
// so tests observe only what was saved.
type MockCredentialStore struct {
	mu    sync.RWMutex
	creds map[string]domain.ConnectionCredential

	// SaveCalls counts Save invocations
	SaveCalls int
	// GetErr is returned by Get when set
	GetErr error
}

// NewMockCredentialStore creates a new MockCredentialStore
func NewMockCredentialStore() *MockCredentialStore {
	return &MockCredentialStore{creds: make(map[string]domain.ConnectionCredential)}
}

func credentialKey(userID string, provider domain.ProviderName) string {
	return userID + "|" + string(provider)
}

func (m *MockCredentialStore) Save(ctx context.Context, cred *domain.ConnectionCredential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveCalls++
	m.creds[credentialKey(cred.UserID, cred.Provider)] = *cred
	return nil
}

func (m *MockCredentialStore) Get(ctx context.Context, userID string, provider domain.ProviderName) (*domain.ConnectionCredential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	cred, ok := m.creds[credentialKey(userID, provider)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &cred, nil
}

func (m *MockCredentialStore) Delete(ctx context.Context, userID string, provider domain.ProviderName) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.creds, credentialKey(userID, provider))
	return nil
}

func (m *MockCredentialStore) List(ctx context.Context) ([]*domain.ConnectionCredential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.ConnectionCredential
	for _, cred := range m.creds {
		if cred.IsInvalidated() {
			continue
		}
		c := cred
		out = append(out, &c)
	}
	return out, nil
}
