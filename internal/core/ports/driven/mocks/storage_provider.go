package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven"
)

var (
	_ driven.StorageProvider = (*MockStorageProvider)(nil)
	_ driven.StorageProvider = (*MockOAuthProvider)(nil)
	_ driven.TokenRefresher  = (*MockOAuthProvider)(nil)
	_ driven.OAuthConnector  = (*MockOAuthProvider)(nil)
)

// MockStorageProvider is a configurable provider that does not use OAuth.
// Behaviour is injected through the Fn fields; nil fields succeed.
type MockStorageProvider struct {
	Desc   domain.ProviderDescriptor
	Schema domain.ConfigSchema

	ValidateFn       func(cfg *domain.ProviderConfig) *domain.ValidationResult
	InitializeFn     func(cfg *domain.ProviderConfig) error
	UploadFn         func(cred *domain.ConnectionCredential, req *domain.UploadRequest) (*domain.UploadResult, error)
	DeleteFn         func(cred *domain.ConnectionCredential, fileID string) error
	TestConnectionFn func(cred *domain.ConnectionCredential) error

	mu                  sync.Mutex
	Config              *domain.ProviderConfig
	UploadCalls         int
	TestConnectionCalls int
	CleanupCalls        int
}

// NewMockStorageProvider creates a flat, API-key provider with the given name.
func NewMockStorageProvider(name domain.ProviderName) *MockStorageProvider {
	return &MockStorageProvider{
		Desc: domain.ProviderDescriptor{
			Name:         name,
			DisplayName:  string(name),
			Capabilities: []domain.Capability{domain.CapabilityUpload, domain.CapabilityDelete, domain.CapabilityAPIKey},
			AuthType:     domain.AuthTypeAPIKey,
			StorageModel: domain.StorageModelFlat,
		},
	}
}

func (m *MockStorageProvider) Name() domain.ProviderName         { return m.Desc.Name }
func (m *MockStorageProvider) DisplayName() string               { return m.Desc.DisplayName }
func (m *MockStorageProvider) Capabilities() []domain.Capability { return m.Desc.Capabilities }
func (m *MockStorageProvider) AuthType() domain.AuthType         { return m.Desc.AuthType }
func (m *MockStorageProvider) StorageModel() domain.StorageModel { return m.Desc.StorageModel }
func (m *MockStorageProvider) MaxFileSize() int64                { return m.Desc.MaxFileSize }
func (m *MockStorageProvider) SupportedFileTypes() []string      { return m.Desc.SupportedFileTypes }
func (m *MockStorageProvider) ConfigSchema() domain.ConfigSchema { return m.Schema }

func (m *MockStorageProvider) ValidateConfiguration(cfg *domain.ProviderConfig) *domain.ValidationResult {
	if m.ValidateFn != nil {
		return m.ValidateFn(cfg)
	}
	return domain.NewValidationResult()
}

func (m *MockStorageProvider) Initialize(ctx context.Context, cfg *domain.ProviderConfig) error {
	m.mu.Lock()
	m.Config = cfg
	m.mu.Unlock()
	if m.InitializeFn != nil {
		return m.InitializeFn(cfg)
	}
	return nil
}

func (m *MockStorageProvider) Upload(ctx context.Context, cred *domain.ConnectionCredential, req *domain.UploadRequest) (*domain.UploadResult, error) {
	m.mu.Lock()
	m.UploadCalls++
	m.mu.Unlock()
	if m.UploadFn != nil {
		return m.UploadFn(cred, req)
	}
	return &domain.UploadResult{FileID: "cloud-" + req.Filename}, nil
}

func (m *MockStorageProvider) Delete(ctx context.Context, cred *domain.ConnectionCredential, fileID string) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(cred, fileID)
	}
	return nil
}

func (m *MockStorageProvider) TestConnection(ctx context.Context, cred *domain.ConnectionCredential) error {
	m.mu.Lock()
	m.TestConnectionCalls++
	m.mu.Unlock()
	if m.TestConnectionFn != nil {
		return m.TestConnectionFn(cred)
	}
	return nil
}

func (m *MockStorageProvider) Cleanup() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CleanupCalls++
	return nil
}

// Calls returns the upload and connection-test counts.
func (m *MockStorageProvider) Calls() (uploads, tests int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.UploadCalls, m.TestConnectionCalls
}

// MockOAuthProvider is a hierarchical OAuth provider with scripted refresh results.
type MockOAuthProvider struct {
	*MockStorageProvider

	// RefreshFn is called for each refresh attempt
	RefreshFn  func(cred *domain.ConnectionCredential) (*domain.ConnectionCredential, error)
	ExchangeFn func(code, verifier string) (*domain.ConnectionCredential, error)

	refreshMu    sync.Mutex
	RefreshCalls int
}

// NewMockOAuthProvider creates an OAuth provider with the given name.
func NewMockOAuthProvider(name domain.ProviderName) *MockOAuthProvider {
	base := NewMockStorageProvider(name)
	base.Desc.AuthType = domain.AuthTypeOAuth
	base.Desc.StorageModel = domain.StorageModelHierarchical
	base.Desc.Capabilities = []domain.Capability{domain.CapabilityUpload, domain.CapabilityDelete, domain.CapabilityOAuth}
	return &MockOAuthProvider{MockStorageProvider: base}
}

func (m *MockOAuthProvider) RefreshToken(ctx context.Context, cred *domain.ConnectionCredential) (*domain.ConnectionCredential, error) {
	m.refreshMu.Lock()
	m.RefreshCalls++
	m.refreshMu.Unlock()
	if m.RefreshFn != nil {
		return m.RefreshFn(cred)
	}
	return nil, domain.ErrNoRefreshToken
}

// Refreshes returns the number of refresh attempts.
func (m *MockOAuthProvider) Refreshes() int {
	m.refreshMu.Lock()
	defer m.refreshMu.Unlock()
	return m.RefreshCalls
}

func (m *MockOAuthProvider) AuthCodeURL(state, codeVerifier string) string {
	return "https://auth.example.com/authorize?state=" + state
}

func (m *MockOAuthProvider) Exchange(ctx context.Context, code, codeVerifier string) (*domain.ConnectionCredential, error) {
	if m.ExchangeFn != nil {
		return m.ExchangeFn(code, codeVerifier)
	}
	return &domain.ConnectionCredential{AccessToken: "access-" + code, RefreshToken: "refresh-" + code, TokenType: "Bearer"}, nil
}
