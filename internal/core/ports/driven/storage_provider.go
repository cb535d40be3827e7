package driven

import (
	"context"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
)

// StorageProvider is the contract every cloud storage backend implements.
// Descriptor methods must work on an uninitialized instance.
type StorageProvider interface {
	// Name returns the key the provider is registered under
	Name() domain.ProviderName
	DisplayName() string
	Capabilities() []domain.Capability
	AuthType() domain.AuthType
	StorageModel() domain.StorageModel

	// MaxFileSize returns the largest accepted file in bytes, 0 for unlimited
	MaxFileSize() int64

	// SupportedFileTypes returns MIME prefixes, empty for any type
	SupportedFileTypes() []string

	// ConfigSchema lists required keys, defaults and sensitive keys
	ConfigSchema() domain.ConfigSchema

	// ValidateConfiguration checks values without network access
	ValidateConfiguration(cfg *domain.ProviderConfig) *domain.ValidationResult

	// Initialize prepares the provider with its resolved configuration.
	Initialize(ctx context.Context, cfg *domain.ProviderConfig) error

	// Upload stores a file. cred is nil for providers that do not use OAuth.
	Upload(ctx context.Context, cred *domain.ConnectionCredential, req *domain.UploadRequest) (*domain.UploadResult, error)

	// Delete removes a previously uploaded file.
	Delete(ctx context.Context, cred *domain.ConnectionCredential, fileID string) error

	// TestConnection performs one cheap authenticated call.
	TestConnection(ctx context.Context, cred *domain.ConnectionCredential) error

	// Cleanup releases resources held by an initialized provider.
	Cleanup() error
}

// TokenRefresher is implemented by OAuth providers that can renew access tokens.
type TokenRefresher interface {
	// RefreshToken exchanges the stored refresh token for a new access token.
	// Returns domain.ErrNoRefreshToken, domain.ErrRefreshRejected or an error
	// wrapping domain.ErrTransient.
	RefreshToken(ctx context.Context, cred *domain.ConnectionCredential) (*domain.ConnectionCredential, error)
}

// OAuthConnector is implemented by providers users connect through OAuth.
type OAuthConnector interface {
	// AuthCodeURL builds the consent URL for a state and PKCE verifier.
	AuthCodeURL(state, codeVerifier string) string

	// Exchange trades an authorization code for a credential.
	// UserID is left empty for the caller to set.
	Exchange(ctx context.Context, code, codeVerifier string) (*domain.ConnectionCredential, error)
}

// ProviderConstructor creates an uninitialized provider. The returned value is
// checked against StorageProvider when the constructor is registered.
type ProviderConstructor func() any

// DiscoverySource contributes provider constructors to a registry.
type DiscoverySource interface {
	// Name identifies the source in logs
	Name() string

	// Discover returns the constructors this source knows about.
	Discover(ctx context.Context) (map[domain.ProviderName]ProviderConstructor, error)
}

// ProviderFactory creates providers by name.
type ProviderFactory interface {
	// Names returns registered provider names, sorted.
	Names() []domain.ProviderName

	// Descriptor returns the description captured at registration.
	Descriptor(name domain.ProviderName) (*domain.ProviderDescriptor, error)

	// Schema returns the configuration schema captured at registration.
	Schema(name domain.ProviderName) (domain.ConfigSchema, error)

	// New returns an uninitialized instance, for validation only.
	New(name domain.ProviderName) (StorageProvider, error)

	// Create returns an instance initialized with cfg.
	Create(ctx context.Context, name domain.ProviderName, cfg *domain.ProviderConfig) (StorageProvider, error)
}
