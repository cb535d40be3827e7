package driving

import (
	"context"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
)

// ConnectionService manages user OAuth connections to storage providers.
type ConnectionService interface {
	// Connect starts an OAuth flow and returns the consent URL.
	Connect(ctx context.Context, userID string, provider domain.ProviderName) (*ConnectResponse, error)

	// Callback completes the flow, stores the credential and runs a health check.
	Callback(ctx context.Context, req CallbackRequest) (*CallbackResponse, error)

	// Disconnect removes the stored credential.
	Disconnect(ctx context.Context, userID string, provider domain.ProviderName) error
}

// ConnectResponse contains the authorization URL.
// @Description Response containing the OAuth authorization URL
type ConnectResponse struct {
	AuthURL   string `json:"auth_url" example:"https://accounts.google.com/o/oauth2/auth?client_id=..."`
	State     string `json:"state"`
	ExpiresAt string `json:"expires_at" example:"2024-01-15T10:10:00Z"`
}

// CallbackRequest represents the OAuth callback from the provider.
// @Description OAuth callback parameters from provider redirect
type CallbackRequest struct {
	Provider         domain.ProviderName `json:"provider"`
	Code             string              `json:"code"`
	State            string              `json:"state"`
	Error            string              `json:"error,omitempty" example:"access_denied"`
	ErrorDescription string              `json:"error_description,omitempty"`
}

// CallbackResponse contains the result of the OAuth callback.
type CallbackResponse struct {
	Provider     domain.ProviderName   `json:"provider"`
	AccountEmail string                `json:"account_email,omitempty"`
	Health       *domain.HealthSummary `json:"health"`
	Message      string                `json:"message" example:"Connected to Google Drive as someone@example.com"`
}

// OAuthError represents an OAuth-specific error.
type OAuthError struct {
	Code        string `json:"error" example:"invalid_state"`
	Description string `json:"error_description"`
}

func (e *OAuthError) Error() string {
	if e.Description != "" {
		return e.Code + ": " + e.Description
	}
	return e.Code
}

// Common OAuth errors
var (
	ErrOAuthInvalidState   = &OAuthError{Code: "invalid_state", Description: "The state parameter is invalid or expired"}
	ErrOAuthNotSupported   = &OAuthError{Code: "oauth_not_supported", Description: "The provider does not use OAuth"}
	ErrOAuthExchangeFailed = &OAuthError{Code: "exchange_failed", Description: "Failed to exchange authorization code for tokens"}
)
