package domain

import "time"

// TokenRefreshWindow is how close to expiry a token is refreshed ahead of use.
const TokenRefreshWindow = 5 * time.Minute

// TokenExpiringSoonWindow is how close to expiry a token is reported as expiring soon.
const TokenExpiringSoonWindow = 15 * time.Minute

// ConnectionCredential is a user's stored connection to an OAuth provider.
// There is at most one per user per provider.
type ConnectionCredential struct {
	UserID   string       `json:"user_id"`
	Provider ProviderName `json:"provider"`

	// Secret values, encrypted at rest
	AccessToken  string `json:"-"`
	RefreshToken string `json:"-"`

	TokenType    string     `json:"token_type,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Scopes       []string   `json:"scopes,omitempty"`
	AccountEmail string     `json:"account_email,omitempty"`

	// InvalidatedAt is set when a refresh failed irrecoverably
	InvalidatedAt *time.Time `json:"invalidated_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsExpired returns true if the access token has expired.
// A credential without expiry never expires.
func (c *ConnectionCredential) IsExpired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return !now.Before(*c.ExpiresAt)
}

// ExpiresWithin returns true if the token expires within d of now.
func (c *ConnectionCredential) ExpiresWithin(now time.Time, d time.Duration) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return c.ExpiresAt.Sub(now) < d
}

// NeedsRefresh returns true if the token is expired or within the refresh window.
func (c *ConnectionCredential) NeedsRefresh(now time.Time) bool {
	return c.AccessToken == "" || c.ExpiresWithin(now, TokenRefreshWindow)
}

// HasRefreshToken returns true if the credential can be refreshed.
func (c *ConnectionCredential) HasRefreshToken() bool {
	return c.RefreshToken != ""
}

// IsInvalidated returns true if the credential must be replaced by reconnecting.
func (c *ConnectionCredential) IsInvalidated() bool {
	return c.InvalidatedAt != nil
}

// Invalidate clears the refresh token and flags the record.
func (c *ConnectionCredential) Invalidate(now time.Time) {
	c.RefreshToken = ""
	c.InvalidatedAt = &now
	c.UpdatedAt = now
}

// ApplyRefresh copies a refreshed token onto the stored credential.
// A refresh that returns no new refresh token keeps the existing one.
func (c *ConnectionCredential) ApplyRefresh(refreshed *ConnectionCredential, now time.Time) {
	c.AccessToken = refreshed.AccessToken
	if refreshed.RefreshToken != "" {
		c.RefreshToken = refreshed.RefreshToken
	}
	if refreshed.TokenType != "" {
		c.TokenType = refreshed.TokenType
	}
	c.ExpiresAt = refreshed.ExpiresAt
	if len(refreshed.Scopes) > 0 {
		c.Scopes = refreshed.Scopes
	}
	c.InvalidatedAt = nil
	c.UpdatedAt = now
}
