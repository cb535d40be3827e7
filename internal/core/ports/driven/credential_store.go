package driven

import (
	"context"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
)

// CredentialStore persists OAuth connection credentials (PostgreSQL).
// Tokens are encrypted at rest.
type CredentialStore interface {
	// Save creates or updates the credential for its user and provider
	Save(ctx context.Context, cred *domain.ConnectionCredential) error

	// Get returns domain.ErrNotFound when the user never connected the provider
	Get(ctx context.Context, userID string, provider domain.ProviderName) (*domain.ConnectionCredential, error)

	// Delete removes the credential
	Delete(ctx context.Context, userID string, provider domain.ProviderName) error

	// List returns every stored credential that has not been invalidated
	List(ctx context.Context) ([]*domain.ConnectionCredential, error)
}
