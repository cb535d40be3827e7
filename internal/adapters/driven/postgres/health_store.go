package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven"
)

var _ driven.HealthStatusStore = (*HealthStore)(nil)

const healthColumns = `user_id, provider, status, requires_reconnection, consecutive_failures,
	last_error_type, last_error_message, last_successful_operation_at, last_checked_at,
	token_expires_at, created_at, updated_at`

// HealthStore persists raw connection health signals.
// The consolidated status is derived on read and never stored.
type HealthStore struct {
	db *DB
}

// NewHealthStore creates a new HealthStore
func NewHealthStore(db *DB) *HealthStore {
	return &HealthStore{db: db}
}

// Save upserts the row for the user and provider
func (s *HealthStore) Save(ctx context.Context, status *domain.HealthStatus) error {
	query := `
		INSERT INTO health_statuses (` + healthColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (user_id, provider) DO UPDATE SET
			status = EXCLUDED.status,
			requires_reconnection = EXCLUDED.requires_reconnection,
			consecutive_failures = EXCLUDED.consecutive_failures,
			last_error_type = EXCLUDED.last_error_type,
			last_error_message = EXCLUDED.last_error_message,
			last_successful_operation_at = EXCLUDED.last_successful_operation_at,
			last_checked_at = EXCLUDED.last_checked_at,
			token_expires_at = EXCLUDED.token_expires_at,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query,
		status.UserID,
		string(status.Provider),
		string(status.Status),
		status.RequiresReconnection,
		status.ConsecutiveFailures,
		NullEmpty(string(status.LastErrorType)),
		NullEmpty(status.LastErrorMessage),
		NullTime(status.LastSuccessfulOperationAt),
		NullTime(status.LastCheckedAt),
		NullTime(status.TokenExpiresAt),
		status.CreatedAt,
		status.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save health status: %w", err)
	}
	return nil
}

// Get returns domain.ErrNotFound when no check has run yet
func (s *HealthStore) Get(ctx context.Context, userID string, provider domain.ProviderName) (*domain.HealthStatus, error) {
	query := `SELECT ` + healthColumns + ` FROM health_statuses WHERE user_id = $1 AND provider = $2`
	status, err := scanHealth(s.db.QueryRowContext(ctx, query, userID, string(provider)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get health status: %w", err)
	}
	return status, nil
}

// ListByUser returns all rows for a user
func (s *HealthStore) ListByUser(ctx context.Context, userID string) ([]*domain.HealthStatus, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+healthColumns+` FROM health_statuses WHERE user_id = $1 ORDER BY provider`, userID)
	if err != nil {
		return nil, fmt.Errorf("list health statuses: %w", err)
	}
	defer rows.Close()

	var statuses []*domain.HealthStatus
	for rows.Next() {
		status, err := scanHealth(rows)
		if err != nil {
			return nil, fmt.Errorf("scan health status: %w", err)
		}
		statuses = append(statuses, status)
	}
	return statuses, rows.Err()
}

func scanHealth(row rowScanner) (*domain.HealthStatus, error) {
	var h domain.HealthStatus
	var errType, errMsg sql.NullString
	var lastOK, lastChecked, tokenExp sql.NullTime

	if err := row.Scan(
		&h.UserID,
		&h.Provider,
		&h.Status,
		&h.RequiresReconnection,
		&h.ConsecutiveFailures,
		&errType,
		&errMsg,
		&lastOK,
		&lastChecked,
		&tokenExp,
		&h.CreatedAt,
		&h.UpdatedAt,
	); err != nil {
		return nil, err
	}
	h.LastErrorType = domain.CloudStorageErrorType(errType.String)
	h.LastErrorMessage = errMsg.String
	h.LastSuccessfulOperationAt = TimePtr(lastOK)
	h.LastCheckedAt = TimePtr(lastChecked)
	h.TokenExpiresAt = TimePtr(tokenExp)
	return &h, nil
}
