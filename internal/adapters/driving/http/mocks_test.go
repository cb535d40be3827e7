package http

import (
	"context"
	"errors"
	"sync"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driving"
)

// Mock services embed their interface; calling a method without a fn set panics,
// which the recovery middleware turns into a 500.

type mockAuthService struct {
	driving.AuthService
	authenticateFn func(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error)
}

func (m *mockAuthService) Authenticate(ctx context.Context, req domain.LoginRequest) (*domain.LoginResponse, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, req)
	}
	return nil, errors.New("not implemented")
}

// ValidateToken accepts "<role>-token" for every known role
func (m *mockAuthService) ValidateToken(ctx context.Context, token string) (*domain.AuthContext, error) {
	switch token {
	case "admin-token":
		return &domain.AuthContext{UserID: "admin-1", Email: "admin@example.com", Role: domain.RoleAdmin}, nil
	case "employee-token":
		return &domain.AuthContext{UserID: "user-1", Email: "user@example.com", Role: domain.RoleEmployee}, nil
	case "client-token":
		return &domain.AuthContext{UserID: "client-1", Email: "client@example.com", Role: domain.RoleClient}, nil
	case "expired-token":
		return nil, domain.ErrTokenExpired
	}
	return nil, domain.ErrTokenInvalid
}

type mockUserService struct {
	driving.UserService
	getFn       func(ctx context.Context, id string) (*domain.User, error)
	getBySlugFn func(ctx context.Context, slug string) (*domain.User, error)
}

func (m *mockUserService) Get(ctx context.Context, id string) (*domain.User, error) {
	return m.getFn(ctx, id)
}

func (m *mockUserService) GetBySlug(ctx context.Context, slug string) (*domain.User, error) {
	if m.getBySlugFn != nil {
		return m.getBySlugFn(ctx, slug)
	}
	return nil, domain.ErrNotFound
}

type mockStorageManager struct {
	driving.StorageManager

	mu       sync.Mutex
	reloaded []domain.ProviderName
	switchFn func(userID string, name domain.ProviderName) error
}

func (m *mockStorageManager) DescribeAvailable(ctx context.Context) []*domain.ProviderDescriptor {
	return []*domain.ProviderDescriptor{
		{Name: domain.ProviderGoogleDrive, DisplayName: "Google Drive", AuthType: domain.AuthTypeOAuth},
	}
}

func (m *mockStorageManager) DefaultProviderName() domain.ProviderName {
	return domain.ProviderGoogleDrive
}

func (m *mockStorageManager) UserProviderName(ctx context.Context, userID string) domain.ProviderName {
	return domain.ProviderGoogleDrive
}

func (m *mockStorageManager) SwitchUserProvider(ctx context.Context, userID string, name domain.ProviderName) error {
	if m.switchFn != nil {
		return m.switchFn(userID, name)
	}
	return nil
}

func (m *mockStorageManager) Describe(name domain.ProviderName) (*domain.ProviderDescriptor, error) {
	if name == domain.ProviderGoogleDrive {
		return &domain.ProviderDescriptor{Name: name, DisplayName: "Google Drive"}, nil
	}
	return nil, domain.ErrProviderNotFound
}

func (m *mockStorageManager) Reload(name domain.ProviderName) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reloaded = append(m.reloaded, name)
}

type mockConfigService struct {
	driving.ConfigurationService
	configs    map[domain.ProviderName]*domain.ProviderConfig
	configured map[domain.ProviderName]bool
	saveFn     func(name domain.ProviderName, settings map[string]string) (*domain.ValidationResult, error)
}

func (m *mockConfigService) GetProviderConfig(ctx context.Context, name domain.ProviderName) (*domain.ProviderConfig, error) {
	cfg, ok := m.configs[name]
	if !ok {
		return nil, domain.ErrProviderNotFound
	}
	return cfg, nil
}

func (m *mockConfigService) GetAllProviderConfigs(ctx context.Context) map[domain.ProviderName]*domain.ProviderConfig {
	return m.configs
}

func (m *mockConfigService) IsProviderConfigured(ctx context.Context, name domain.ProviderName) bool {
	return m.configured[name]
}

func (m *mockConfigService) ValidateProviderConfig(ctx context.Context, name domain.ProviderName) (*domain.ValidationResult, error) {
	result := domain.NewValidationResult()
	if !m.configured[name] {
		result.IsValid = false
		result.Errors = append(result.Errors, "client_id is required")
	}
	return result, nil
}

func (m *mockConfigService) SaveProviderSettings(ctx context.Context, name domain.ProviderName, settings map[string]string) (*domain.ValidationResult, error) {
	return m.saveFn(name, settings)
}

func (m *mockConfigService) DefaultProviderName() domain.ProviderName {
	return domain.ProviderGoogleDrive
}

type mockConnectionService struct {
	driving.ConnectionService
	callbackFn func(req driving.CallbackRequest) (*driving.CallbackResponse, error)
}

func (m *mockConnectionService) Callback(ctx context.Context, req driving.CallbackRequest) (*driving.CallbackResponse, error) {
	return m.callbackFn(req)
}

type mockHealthService struct {
	driving.HealthService
	checkFn   func(userID string, name domain.ProviderName) (*domain.HealthStatus, error)
	summaries []*domain.HealthSummary
	report    *driving.SystemHealthReport
}

func (m *mockHealthService) CheckConnectionHealth(ctx context.Context, userID string, name domain.ProviderName) (*domain.HealthStatus, error) {
	return m.checkFn(userID, name)
}

func (m *mockHealthService) GetHealthSummary(ctx context.Context, userID string, name domain.ProviderName) (*domain.HealthSummary, error) {
	status, err := m.checkFn(userID, name)
	if err != nil {
		return nil, err
	}
	return status.Summary("Google Drive", testNow), nil
}

func (m *mockHealthService) GetAllProvidersHealth(ctx context.Context, userID string) []*domain.HealthSummary {
	return m.summaries
}

func (m *mockHealthService) SystemHealth(ctx context.Context, detailed bool) *driving.SystemHealthReport {
	report := *m.report
	if !detailed {
		report.Queue = nil
	}
	return &report
}

type mockRelayService struct {
	driving.RelayService

	mu     sync.Mutex
	stored []driving.StoreFileRequest
	bodies []string
	files  map[string]*domain.FileUpload
}

func (m *mockRelayService) Store(ctx context.Context, req driving.StoreFileRequest) (*domain.FileUpload, error) {
	buf := make([]byte, 1024)
	n, _ := req.Body.Read(buf)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.stored = append(m.stored, req)
	m.bodies = append(m.bodies, string(buf[:n]))
	return &domain.FileUpload{ID: "file-1", UserID: req.UserID, OriginalName: req.Filename, Status: domain.FileStatusPending}, nil
}

func (m *mockRelayService) Get(ctx context.Context, fileID string) (*domain.FileUpload, error) {
	f, ok := m.files[fileID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return f, nil
}

func (m *mockRelayService) Retry(ctx context.Context, fileID string) (*domain.FileUpload, error) {
	f, err := m.Get(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if f.Status != domain.FileStatusFailed {
		return nil, domain.ErrInvalidInput
	}
	f.ResetForRetry(testNow)
	return f, nil
}
