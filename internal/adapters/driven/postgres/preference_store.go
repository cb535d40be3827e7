package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven"
)

var _ driven.PreferenceStore = (*PreferenceStore)(nil)

// PreferenceStore persists each user's chosen storage provider
type PreferenceStore struct {
	db *DB
}

// NewPreferenceStore creates a new PreferenceStore
func NewPreferenceStore(db *DB) *PreferenceStore {
	return &PreferenceStore{db: db}
}

// Get returns domain.ErrNotFound when the user never chose a provider
func (s *PreferenceStore) Get(ctx context.Context, userID string) (*domain.UserProviderPreference, error) {
	var pref domain.UserProviderPreference
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, provider, created_at, updated_at
		FROM provider_preferences
		WHERE user_id = $1
	`, userID).Scan(&pref.UserID, &pref.Provider, &pref.CreatedAt, &pref.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get provider preference: %w", err)
	}
	return &pref, nil
}

// Save upserts the preference. The original created_at survives a switch.
func (s *PreferenceStore) Save(ctx context.Context, pref *domain.UserProviderPreference) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO provider_preferences (user_id, provider, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			provider = EXCLUDED.provider,
			updated_at = EXCLUDED.updated_at
	`, pref.UserID, string(pref.Provider), pref.CreatedAt, pref.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save provider preference: %w", err)
	}
	return nil
}
