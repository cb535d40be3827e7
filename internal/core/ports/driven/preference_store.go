package driven

import (
	"context"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
)

// PreferenceStore persists each user's chosen provider (PostgreSQL).
type PreferenceStore interface {
	// Get returns domain.ErrNotFound when the user never chose a provider
	Get(ctx context.Context, userID string) (*domain.UserProviderPreference, error)

	// Save upserts the preference
	Save(ctx context.Context, pref *domain.UserProviderPreference) error
}
