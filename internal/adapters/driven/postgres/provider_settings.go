package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven"
)

// Ensure ProviderSettingsStore implements the interface.
var _ driven.ProviderSettingsStore = (*ProviderSettingsStore)(nil)

// ProviderSettingsStore implements driven.ProviderSettingsStore using PostgreSQL.
// One row per provider; all values travel in a single encrypted blob.
type ProviderSettingsStore struct {
	db        *DB
	encryptor *SecretEncryptor
}

// NewProviderSettingsStore creates a new PostgreSQL-backed provider settings store.
func NewProviderSettingsStore(db *DB, encryptor *SecretEncryptor) *ProviderSettingsStore {
	return &ProviderSettingsStore{db: db, encryptor: encryptor}
}

func settingsAAD(provider domain.ProviderName) string {
	return "provider-settings:" + string(provider)
}

// Get retrieves the decrypted settings for a provider.
func (s *ProviderSettingsStore) Get(ctx context.Context, provider domain.ProviderName) (map[string]string, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT secret_blob FROM provider_settings WHERE provider = $1`, string(provider)).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get provider settings: %w", err)
	}

	settings := map[string]string{}
	if err := s.encryptor.Decrypt(blob, settingsAAD(provider), &settings); err != nil {
		return nil, fmt.Errorf("decrypt provider settings: %w", err)
	}
	return settings, nil
}

// Save replaces the stored settings (upsert).
func (s *ProviderSettingsStore) Save(ctx context.Context, provider domain.ProviderName, settings map[string]string) error {
	if settings == nil {
		settings = map[string]string{}
	}
	blob, err := s.encryptor.Encrypt(settings, settingsAAD(provider))
	if err != nil {
		return fmt.Errorf("encrypt provider settings: %w", err)
	}

	now := time.Now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO provider_settings (provider, secret_blob, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (provider) DO UPDATE SET
			secret_blob = EXCLUDED.secret_blob,
			updated_at = EXCLUDED.updated_at
	`, string(provider), blob, now)
	if err != nil {
		return fmt.Errorf("save provider settings: %w", err)
	}
	return nil
}

// Delete removes the stored settings for a provider.
func (s *ProviderSettingsStore) Delete(ctx context.Context, provider domain.ProviderName) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM provider_settings WHERE provider = $1`, string(provider))
	if err != nil {
		return fmt.Errorf("delete provider settings: %w", err)
	}
	return expectOneRow(result)
}
