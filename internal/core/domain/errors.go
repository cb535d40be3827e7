package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates the resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the user lacks permission for this action
	ErrForbidden = errors.New("forbidden")

	// ErrTokenExpired indicates an auth or provider token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrInvalidCredentials indicates wrong email/password combination
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrServiceUnavailable indicates a dependency could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")
)

// Provider errors
var (
	// ErrProviderNotFound indicates no provider is registered under the name
	ErrProviderNotFound = errors.New("provider not found")

	// ErrInvalidProvider indicates a constructor does not satisfy the provider contract
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrProviderUnavailable indicates the provider is registered but not selectable
	ErrProviderUnavailable = errors.New("provider not available")

	// ErrProviderNotConfigured indicates required provider settings are missing
	ErrProviderNotConfigured = errors.New("provider not configured")

	// ErrInvalidSelection indicates a user picked a provider that is not available
	ErrInvalidSelection = errors.New("invalid provider selection")
)

// Credential errors
var (
	// ErrNoCredential indicates the user never connected the provider, or the
	// stored credential was invalidated
	ErrNoCredential = errors.New("no stored credential")

	// ErrNoRefreshToken indicates an expired credential cannot be refreshed
	ErrNoRefreshToken = errors.New("no refresh token available")

	// ErrRefreshRejected indicates the provider refused the refresh token
	ErrRefreshRejected = errors.New("refresh token rejected")

	// ErrTransient indicates a network, timeout or upstream failure worth retrying
	ErrTransient = errors.New("transient provider failure")
)

// IsAuthFailure reports whether err can only be resolved by the user reconnecting.
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrNoCredential) ||
		errors.Is(err, ErrNoRefreshToken) ||
		errors.Is(err, ErrRefreshRejected)
}
