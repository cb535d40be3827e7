package driven

import (
	"context"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
)

// ProviderSettingsStore persists admin-entered provider settings.
// Values are encrypted at rest as a single blob per provider.
type ProviderSettingsStore interface {
	// Get returns domain.ErrNotFound when nothing was saved for the provider
	Get(ctx context.Context, provider domain.ProviderName) (map[string]string, error)

	// Save replaces the stored settings
	Save(ctx context.Context, provider domain.ProviderName, settings map[string]string) error

	// Delete removes the stored settings
	Delete(ctx context.Context, provider domain.ProviderName) error
}
