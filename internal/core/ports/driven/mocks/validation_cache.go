package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven"
)

var _ driven.ValidationCache = (*MockValidationCache)(nil)

// MockValidationCache stores validation results in memory, ignoring TTL.
type MockValidationCache struct {
	mu      sync.Mutex
	results map[domain.ProviderName]*domain.ValidationResult

	Hits int
}

// NewMockValidationCache creates a new MockValidationCache
func NewMockValidationCache() *MockValidationCache {
	return &MockValidationCache{results: make(map[domain.ProviderName]*domain.ValidationResult)}
}

func (m *MockValidationCache) Get(ctx context.Context, provider domain.ProviderName) (*domain.ValidationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.results[provider]
	if !ok {
		return nil, nil
	}
	m.Hits++
	return r, nil
}

func (m *MockValidationCache) Set(ctx context.Context, provider domain.ProviderName, result *domain.ValidationResult, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[provider] = result
	return nil
}

func (m *MockValidationCache) Invalidate(ctx context.Context, provider domain.ProviderName) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.results, provider)
	return nil
}

func (m *MockValidationCache) Ping(ctx context.Context) error {
	return nil
}
