package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driving"
)

// Ensure connectionService implements ConnectionService
var _ driving.ConnectionService = (*connectionService)(nil)

// DefaultOAuthStateTTL is how long a started OAuth flow stays valid.
const DefaultOAuthStateTTL = 10 * time.Minute

// ConnectionServiceConfig holds configuration for the connection service.
type ConnectionServiceConfig struct {
	Storage     driving.StorageManager
	Health      driving.HealthService
	Credentials driven.CredentialStore

	// States holds pending flows for CSRF protection and PKCE
	States driven.OAuthStateStore

	StateTTL time.Duration
	Logger   *slog.Logger
}

// connectionService runs the OAuth connect flow for storage providers.
type connectionService struct {
	storage     driving.StorageManager
	health      driving.HealthService
	credentials driven.CredentialStore
	states      driven.OAuthStateStore
	stateTTL    time.Duration
	logger      *slog.Logger
}

// NewConnectionService creates a new ConnectionService.
func NewConnectionService(cfg ConnectionServiceConfig) driving.ConnectionService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.StateTTL
	if ttl <= 0 {
		ttl = DefaultOAuthStateTTL
	}
	return &connectionService{
		storage:     cfg.Storage,
		health:      cfg.Health,
		credentials: cfg.Credentials,
		states:      cfg.States,
		stateTTL:    ttl,
		logger:      logger,
	}
}

// Connect starts an OAuth flow and returns the consent URL.
func (s *connectionService) Connect(ctx context.Context, userID string, name domain.ProviderName) (*driving.ConnectResponse, error) {
	connector, err := s.connector(ctx, name)
	if err != nil {
		return nil, err
	}

	// Generate state (CSRF protection)
	state, err := generateRandomString(32)
	if err != nil {
		return nil, fmt.Errorf("generate state: %w", err)
	}
	verifier := oauth2.GenerateVerifier()

	now := time.Now()
	expiresAt := now.Add(s.stateTTL)
	if err := s.states.Save(ctx, &driven.OAuthState{
		State:        state,
		UserID:       userID,
		Provider:     string(name),
		CodeVerifier: verifier,
		CreatedAt:    now,
		ExpiresAt:    expiresAt,
	}); err != nil {
		return nil, fmt.Errorf("save oauth state: %w", err)
	}

	return &driving.ConnectResponse{
		AuthURL:   connector.AuthCodeURL(state, verifier),
		State:     state,
		ExpiresAt: expiresAt.UTC().Format(time.RFC3339),
	}, nil
}

// Callback validates the state, exchanges the code and stores the credential.
func (s *connectionService) Callback(ctx context.Context, req driving.CallbackRequest) (*driving.CallbackResponse, error) {
	// Check for error from provider
	if req.Error != "" {
		return nil, &driving.OAuthError{Code: req.Error, Description: req.ErrorDescription}
	}

	// Validate and consume state (single-use)
	pending, err := s.states.GetAndDelete(ctx, req.State)
	if err != nil {
		return nil, fmt.Errorf("get oauth state: %w", err)
	}
	if pending == nil || (req.Provider != "" && string(req.Provider) != pending.Provider) {
		return nil, driving.ErrOAuthInvalidState
	}
	name := domain.ProviderName(pending.Provider)

	connector, err := s.connector(ctx, name)
	if err != nil {
		return nil, err
	}

	cred, err := connector.Exchange(ctx, req.Code, pending.CodeVerifier)
	if err != nil {
		s.logger.Warn("oauth code exchange failed", "user_id", pending.UserID, "provider", name, "error", err)
		return nil, driving.ErrOAuthExchangeFailed
	}

	now := time.Now()
	cred.UserID = pending.UserID
	cred.Provider = name
	cred.InvalidatedAt = nil
	cred.CreatedAt = now
	cred.UpdatedAt = now
	existing, err := s.credentials.Get(ctx, pending.UserID, name)
	if err == nil {
		cred.CreatedAt = existing.CreatedAt
		if cred.RefreshToken == "" {
			cred.RefreshToken = existing.RefreshToken
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("load credential: %w", err)
	}

	if err := s.credentials.Save(ctx, cred); err != nil {
		return nil, fmt.Errorf("save credential: %w", err)
	}
	s.logger.Info("storage provider connected", "user_id", cred.UserID, "provider", name)

	if _, err := s.health.CheckConnectionHealth(ctx, cred.UserID, name); err != nil {
		s.logger.Warn("post-connect health check failed", "user_id", cred.UserID, "provider", name, "error", err)
	}
	summary, err := s.health.GetHealthSummary(ctx, cred.UserID, name)
	if err != nil {
		summary = domain.ErrorSummary(name, err)
	}

	display := summary.ProviderDisplayName
	if display == "" {
		display = string(name)
	}
	message := "Connected to " + display
	if cred.AccountEmail != "" {
		message += " as " + cred.AccountEmail
	}

	return &driving.CallbackResponse{
		Provider:     name,
		AccountEmail: cred.AccountEmail,
		Health:       summary,
		Message:      message,
	}, nil
}

// Disconnect removes the stored credential.
func (s *connectionService) Disconnect(ctx context.Context, userID string, name domain.ProviderName) error {
	if _, err := s.storage.Describe(name); err != nil {
		return err
	}
	if err := s.credentials.Delete(ctx, userID, name); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	s.health.RecordOperationFailure(ctx, userID, name, domain.ErrNoCredential)
	s.logger.Info("storage provider disconnected", "user_id", userID, "provider", name)
	return nil
}

func (s *connectionService) connector(ctx context.Context, name domain.ProviderName) (driven.OAuthConnector, error) {
	provider, err := s.storage.GetProvider(ctx, name)
	if err != nil {
		return nil, err
	}
	connector, ok := provider.(driven.OAuthConnector)
	if !ok || provider.AuthType() != domain.AuthTypeOAuth {
		return nil, driving.ErrOAuthNotSupported
	}
	return connector, nil
}

// generateRandomString generates a cryptographically secure random string.
func generateRandomString(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes)[:length], nil
}
