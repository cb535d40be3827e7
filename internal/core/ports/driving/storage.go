package driving

import (
	"context"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven"
)

// StorageManager is the single entry point for resolving storage providers.
type StorageManager interface {
	// GetAvailableProviders returns registered providers that are fully available, sorted.
	GetAvailableProviders(ctx context.Context) []domain.ProviderName

	// IsValidProviderSelection reports whether a user may select the provider.
	IsValidProviderSelection(ctx context.Context, name domain.ProviderName) bool

	// GetProvider returns an initialized provider.
	// Fails with domain.ErrProviderNotFound or domain.ErrProviderUnavailable.
	GetProvider(ctx context.Context, name domain.ProviderName) (driven.StorageProvider, error)

	// GetUserProvider returns the user's preferred provider, falling back to the default.
	GetUserProvider(ctx context.Context, userID string) (driven.StorageProvider, error)

	// GetDefaultProvider returns the system default provider.
	GetDefaultProvider(ctx context.Context) (driven.StorageProvider, error)

	// SwitchUserProvider stores the user's choice. Fails with domain.ErrInvalidSelection.
	SwitchUserProvider(ctx context.Context, userID string, name domain.ProviderName) error

	// UserProviderName returns the provider GetUserProvider would resolve.
	UserProviderName(ctx context.Context, userID string) domain.ProviderName

	// DefaultProviderName returns the configured default provider.
	DefaultProviderName() domain.ProviderName

	// Describe returns the descriptor of a registered provider.
	Describe(name domain.ProviderName) (*domain.ProviderDescriptor, error)

	// DescribeAvailable returns descriptors of the available providers.
	DescribeAvailable(ctx context.Context) []*domain.ProviderDescriptor

	// Reload drops the cached instance so the next call picks up new settings.
	Reload(name domain.ProviderName)

	// Close cleans up cached provider instances.
	Close() error
}

// TokenService keeps OAuth credentials usable.
type TokenService interface {
	// EnsureValidCredential returns a credential whose access token is valid
	// for at least the refresh window, refreshing it if needed.
	EnsureValidCredential(ctx context.Context, userID string, provider domain.ProviderName) (*domain.ConnectionCredential, error)
}
