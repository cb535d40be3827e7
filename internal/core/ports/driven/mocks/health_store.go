package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven"
)

var _ driven.HealthStatusStore = (*MockHealthStore)(nil)

// MockHealthStore keeps health rows in memory.
type MockHealthStore struct {
	mu   sync.RWMutex
	rows map[string]domain.HealthStatus

	// GetErr is returned by Get when set
	GetErr error
}

// NewMockHealthStore creates a new MockHealthStore
func NewMockHealthStore() *MockHealthStore {
	return &MockHealthStore{rows: make(map[string]domain.HealthStatus)}
}

func (m *MockHealthStore) Save(ctx context.Context, status *domain.HealthStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[credentialKey(status.UserID, status.Provider)] = *status
	return nil
}

func (m *MockHealthStore) Get(ctx context.Context, userID string, provider domain.ProviderName) (*domain.HealthStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	row, ok := m.rows[credentialKey(userID, provider)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &row, nil
}

func (m *MockHealthStore) ListByUser(ctx context.Context, userID string) ([]*domain.HealthStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.HealthStatus
	for _, row := range m.rows {
		if row.UserID == userID {
			r := row
			out = append(out, &r)
		}
	}
	return out, nil
}
