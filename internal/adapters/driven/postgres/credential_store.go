package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven"
)

// Ensure CredentialStore implements the interface.
var _ driven.CredentialStore = (*CredentialStore)(nil)

const credentialColumns = `user_id, provider, secret_blob, token_type, expires_at, scopes,
	account_email, invalidated_at, created_at, updated_at`

// tokenSecrets is the encrypted part of a credential
type tokenSecrets struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// CredentialStore implements driven.CredentialStore using PostgreSQL.
// Access and refresh tokens live in one AES-GCM blob bound to the row key.
type CredentialStore struct {
	db        *DB
	encryptor *SecretEncryptor
}

// NewCredentialStore creates a new PostgreSQL-backed credential store.
func NewCredentialStore(db *DB, encryptor *SecretEncryptor) *CredentialStore {
	return &CredentialStore{db: db, encryptor: encryptor}
}

func credentialAAD(userID string, provider domain.ProviderName) string {
	return "credential:" + userID + "/" + string(provider)
}

// Save stores or updates a credential (upsert).
func (s *CredentialStore) Save(ctx context.Context, cred *domain.ConnectionCredential) error {
	blob, err := s.encryptor.Encrypt(tokenSecrets{
		AccessToken:  cred.AccessToken,
		RefreshToken: cred.RefreshToken,
	}, credentialAAD(cred.UserID, cred.Provider))
	if err != nil {
		return fmt.Errorf("encrypt tokens: %w", err)
	}

	now := time.Now()
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = now
	}
	cred.UpdatedAt = now
	scopes := cred.Scopes
	if scopes == nil {
		scopes = []string{}
	}

	query := `
		INSERT INTO connection_credentials (` + credentialColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id, provider) DO UPDATE SET
			secret_blob = EXCLUDED.secret_blob,
			token_type = EXCLUDED.token_type,
			expires_at = EXCLUDED.expires_at,
			scopes = EXCLUDED.scopes,
			account_email = EXCLUDED.account_email,
			invalidated_at = EXCLUDED.invalidated_at,
			updated_at = EXCLUDED.updated_at
	`
	_, err = s.db.ExecContext(ctx, query,
		cred.UserID,
		string(cred.Provider),
		blob,
		NullEmpty(cred.TokenType),
		NullTime(cred.ExpiresAt),
		pq.Array(scopes),
		NullEmpty(cred.AccountEmail),
		NullTime(cred.InvalidatedAt),
		cred.CreatedAt,
		cred.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

// Get retrieves a credential with decrypted tokens.
func (s *CredentialStore) Get(ctx context.Context, userID string, provider domain.ProviderName) (*domain.ConnectionCredential, error) {
	query := `SELECT ` + credentialColumns + ` FROM connection_credentials WHERE user_id = $1 AND provider = $2`
	cred, err := s.scan(s.db.QueryRowContext(ctx, query, userID, string(provider)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return cred, nil
}

// Delete removes a credential. Deleting a missing credential is not an error.
func (s *CredentialStore) Delete(ctx context.Context, userID string, provider domain.ProviderName) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM connection_credentials WHERE user_id = $1 AND provider = $2`, userID, string(provider))
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

// List returns every credential that has not been invalidated.
func (s *CredentialStore) List(ctx context.Context) ([]*domain.ConnectionCredential, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+credentialColumns+`
		FROM connection_credentials
		WHERE invalidated_at IS NULL
		ORDER BY user_id, provider`)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var creds []*domain.ConnectionCredential
	for rows.Next() {
		cred, err := s.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		creds = append(creds, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}
	return creds, nil
}

func (s *CredentialStore) scan(row rowScanner) (*domain.ConnectionCredential, error) {
	var cred domain.ConnectionCredential
	var blob []byte
	var tokenType, email sql.NullString
	var expiresAt, invalidatedAt sql.NullTime
	var scopes []string

	if err := row.Scan(
		&cred.UserID,
		&cred.Provider,
		&blob,
		&tokenType,
		&expiresAt,
		pq.Array(&scopes),
		&email,
		&invalidatedAt,
		&cred.CreatedAt,
		&cred.UpdatedAt,
	); err != nil {
		return nil, err
	}

	var secrets tokenSecrets
	if err := s.encryptor.Decrypt(blob, credentialAAD(cred.UserID, cred.Provider), &secrets); err != nil {
		return nil, fmt.Errorf("decrypt tokens: %w", err)
	}
	cred.AccessToken = secrets.AccessToken
	cred.RefreshToken = secrets.RefreshToken
	cred.TokenType = tokenType.String
	cred.ExpiresAt = TimePtr(expiresAt)
	cred.Scopes = scopes
	cred.AccountEmail = email.String
	cred.InvalidatedAt = TimePtr(invalidatedAt)
	return &cred, nil
}
