package driving

import (
	"context"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
)

// ConfigurationService resolves provider configuration from defaults,
// the config file, environment overrides and admin-saved settings.
type ConfigurationService interface {
	// GetProviderConfig returns the merged configuration of a registered provider.
	GetProviderConfig(ctx context.Context, name domain.ProviderName) (*domain.ProviderConfig, error)

	// IsProviderConfigured reports whether every required key is set.
	IsProviderConfigured(ctx context.Context, name domain.ProviderName) bool

	// GetAllProviderConfigs returns the configuration of every registered provider.
	GetAllProviderConfigs(ctx context.Context) map[domain.ProviderName]*domain.ProviderConfig

	// ValidateProviderConfig checks required keys and provider-specific rules.
	ValidateProviderConfig(ctx context.Context, name domain.ProviderName) (*domain.ValidationResult, error)

	// SaveProviderSettings persists admin-entered settings for a provider.
	SaveProviderSettings(ctx context.Context, name domain.ProviderName, settings map[string]string) (*domain.ValidationResult, error)

	// Availability returns the configured availability of a provider.
	Availability(name domain.ProviderName) domain.ProviderAvailability

	// DefaultProviderName returns the system default provider.
	DefaultProviderName() domain.ProviderName
}
