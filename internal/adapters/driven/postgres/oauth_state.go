package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven"
)

// Ensure OAuthStateStore implements the interface.
var _ driven.OAuthStateStore = (*OAuthStateStore)(nil)

// DefaultOAuthStateTTL applies when a state arrives without an expiry.
const DefaultOAuthStateTTL = 10 * time.Minute

// OAuthStateStore implements driven.OAuthStateStore using PostgreSQL.
type OAuthStateStore struct {
	db  *DB
	ttl time.Duration
}

// NewOAuthStateStore creates a new PostgreSQL-backed OAuth state store.
func NewOAuthStateStore(db *DB) *OAuthStateStore {
	return &OAuthStateStore{db: db, ttl: DefaultOAuthStateTTL}
}

// Save stores a new OAuth state. Earlier pending states of the same user and
// provider are dropped in the same transaction, so only the latest connect
// flow can complete.
func (s *OAuthStateStore) Save(ctx context.Context, state *driven.OAuthState) error {
	now := time.Now()
	if state.CreatedAt.IsZero() {
		state.CreatedAt = now
	}
	if state.ExpiresAt.IsZero() {
		state.ExpiresAt = now.Add(s.ttl)
	}

	err := s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM oauth_states WHERE user_id = $1 AND provider = $2`,
			state.UserID, state.Provider,
		); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO oauth_states (state, user_id, provider, code_verifier, created_at, expires_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`,
			state.State,
			state.UserID,
			state.Provider,
			state.CodeVerifier,
			state.CreatedAt,
			state.ExpiresAt,
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("save oauth state: %w", err)
	}
	return nil
}

// GetAndDelete atomically retrieves and deletes the state.
// An expired row is consumed too, so it can never be replayed.
func (s *OAuthStateStore) GetAndDelete(ctx context.Context, state string) (*driven.OAuthState, error) {
	var st driven.OAuthState
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM oauth_states
		WHERE state = $1
		RETURNING state, user_id, provider, code_verifier, created_at, expires_at
	`, state).Scan(
		&st.State,
		&st.UserID,
		&st.Provider,
		&st.CodeVerifier,
		&st.CreatedAt,
		&st.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get and delete oauth state: %w", err)
	}
	if !time.Now().Before(st.ExpiresAt) {
		return nil, nil
	}
	return &st, nil
}

// Cleanup removes expired states.
func (s *OAuthStateStore) Cleanup(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM oauth_states WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("cleanup oauth states: %w", err)
	}
	return result.RowsAffected()
}
