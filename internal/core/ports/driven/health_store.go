package driven

import (
	"context"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
)

// HealthStatusStore persists raw connection health signals (PostgreSQL).
// Rows are upserted, last writer wins.
type HealthStatusStore interface {
	// Save upserts the row for the user and provider
	Save(ctx context.Context, status *domain.HealthStatus) error

	// Get returns domain.ErrNotFound when no check has run yet
	Get(ctx context.Context, userID string, provider domain.ProviderName) (*domain.HealthStatus, error)

	// ListByUser returns all rows for a user
	ListByUser(ctx context.Context, userID string) ([]*domain.HealthStatus, error)
}
