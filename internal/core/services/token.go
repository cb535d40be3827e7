package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driving"
)

// Ensure tokenService implements TokenService
var _ driving.TokenService = (*tokenService)(nil)

// DefaultRefreshRetryDelay is the pause before the single retry of a transient refresh failure.
const DefaultRefreshRetryDelay = time.Second

// tokenService refreshes OAuth credentials ahead of use.
type tokenService struct {
	credentials driven.CredentialStore
	storage     driving.StorageManager
	logger      *slog.Logger

	retryDelay time.Duration
	now        func() time.Time
}

// NewTokenService creates a new TokenService.
func NewTokenService(
	credentials driven.CredentialStore,
	storage driving.StorageManager,
	logger *slog.Logger,
) driving.TokenService {
	if logger == nil {
		logger = slog.Default()
	}
	return &tokenService{
		credentials: credentials,
		storage:     storage,
		logger:      logger,
		retryDelay:  DefaultRefreshRetryDelay,
		now:         time.Now,
	}
}

// EnsureValidCredential returns a credential valid for at least the refresh window.
func (s *tokenService) EnsureValidCredential(ctx context.Context, userID string, name domain.ProviderName) (*domain.ConnectionCredential, error) {
	cred, err := s.credentials.Get(ctx, userID, name)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrNoCredential
	}
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	if cred.IsInvalidated() {
		return nil, domain.ErrNoCredential
	}

	if !cred.NeedsRefresh(s.now()) {
		return cred, nil
	}

	provider, err := s.storage.GetProvider(ctx, name)
	if err != nil {
		return nil, err
	}
	refresher, ok := provider.(driven.TokenRefresher)
	if !ok {
		return nil, domain.ErrTokenExpired
	}

	refreshed, err := s.refresh(ctx, refresher, cred)
	if err != nil {
		if errors.Is(err, domain.ErrRefreshRejected) {
			s.invalidate(ctx, cred)
		}
		return nil, err
	}

	cred.ApplyRefresh(refreshed, s.now())
	if err := s.credentials.Save(ctx, cred); err != nil {
		return nil, fmt.Errorf("save refreshed credential: %w", err)
	}

	s.logger.Debug("refreshed access token", "user_id", userID, "provider", name)
	return cred, nil
}

// refresh retries exactly once, and only for transient failures.
func (s *tokenService) refresh(ctx context.Context, refresher driven.TokenRefresher, cred *domain.ConnectionCredential) (*domain.ConnectionCredential, error) {
	refreshed, err := refresher.RefreshToken(ctx, cred)
	if err == nil || !domain.IsTransient(err) {
		return refreshed, err
	}

	s.logger.Warn("token refresh failed, retrying",
		"user_id", cred.UserID, "provider", cred.Provider, "error", err)

	timer := time.NewTimer(s.retryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", domain.ErrTransient, ctx.Err())
	case <-timer.C:
	}

	refreshed, err = refresher.RefreshToken(ctx, cred)
	if err != nil && domain.IsTransient(err) && !errors.Is(err, domain.ErrTransient) {
		err = fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}
	return refreshed, err
}

func (s *tokenService) invalidate(ctx context.Context, cred *domain.ConnectionCredential) {
	cred.Invalidate(s.now())
	if err := s.credentials.Save(ctx, cred); err != nil {
		s.logger.Error("failed to invalidate credential",
			"user_id", cred.UserID, "provider", cred.Provider, "error", err)
		return
	}
	s.logger.Warn("refresh token rejected, credential invalidated",
		"user_id", cred.UserID, "provider", cred.Provider)
}
