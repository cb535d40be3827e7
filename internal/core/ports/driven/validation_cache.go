package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
)

// ValidationCache holds recent provider configuration validations (Redis).
type ValidationCache interface {
	// Get returns nil, nil on a miss
	Get(ctx context.Context, provider domain.ProviderName) (*domain.ValidationResult, error)

	// Set stores a result for ttl
	Set(ctx context.Context, provider domain.ProviderName, result *domain.ValidationResult, ttl time.Duration) error

	// Invalidate drops the cached result
	Invalidate(ctx context.Context, provider domain.ProviderName) error

	// Ping checks if the cache backend is healthy
	Ping(ctx context.Context) error
}
