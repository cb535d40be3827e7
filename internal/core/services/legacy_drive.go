package services

import (
	"context"
	"log/slog"
	"sync"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driving"
)

// Ensure legacyDriveService implements DriveService
var _ driving.DriveService = (*legacyDriveService)(nil)

// legacyDriveService implements the old Drive contract on top of
// StorageManager and TokenService. Each method warns once per process.
type legacyDriveService struct {
	storage driving.StorageManager
	tokens  driving.TokenService
	logger  *slog.Logger

	uploadOnce, deleteOnce, connectedOnce, tokenOnce sync.Once
}

// NewLegacyDriveService creates the deprecated Drive adapter.
func NewLegacyDriveService(storage driving.StorageManager, tokens driving.TokenService, logger *slog.Logger) driving.DriveService {
	if logger == nil {
		logger = slog.Default()
	}
	return &legacyDriveService{storage: storage, tokens: tokens, logger: logger}
}

func (s *legacyDriveService) deprecated(once *sync.Once, method, replacement string) {
	once.Do(func() {
		s.logger.Warn("deprecated drive service method called",
			"method", method, "use", replacement)
	})
}

// UploadFile uploads to the user's Google Drive.
func (s *legacyDriveService) UploadFile(ctx context.Context, userID string, req *domain.UploadRequest) (*domain.UploadResult, error) {
	s.deprecated(&s.uploadOnce, "UploadFile", "StorageManager.GetProvider + StorageProvider.Upload")

	provider, cred, err := s.resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	return provider.Upload(ctx, cred, req)
}

// DeleteFile removes a file from the user's Google Drive.
func (s *legacyDriveService) DeleteFile(ctx context.Context, userID, fileID string) error {
	s.deprecated(&s.deleteOnce, "DeleteFile", "StorageManager.GetProvider + StorageProvider.Delete")

	provider, cred, err := s.resolve(ctx, userID)
	if err != nil {
		return err
	}
	return provider.Delete(ctx, cred, fileID)
}

// IsConnected reports whether the user has a usable Drive credential.
func (s *legacyDriveService) IsConnected(ctx context.Context, userID string) bool {
	s.deprecated(&s.connectedOnce, "IsConnected", "HealthService.GetHealthSummary")

	_, err := s.tokens.EnsureValidCredential(ctx, userID, domain.ProviderGoogleDrive)
	return err == nil
}

// GetValidToken returns a fresh access token.
func (s *legacyDriveService) GetValidToken(ctx context.Context, userID string) (string, error) {
	s.deprecated(&s.tokenOnce, "GetValidToken", "TokenService.EnsureValidCredential")

	cred, err := s.tokens.EnsureValidCredential(ctx, userID, domain.ProviderGoogleDrive)
	if err != nil {
		return "", err
	}
	return cred.AccessToken, nil
}

func (s *legacyDriveService) resolve(ctx context.Context, userID string) (driven.StorageProvider, *domain.ConnectionCredential, error) {
	provider, err := s.storage.GetProvider(ctx, domain.ProviderGoogleDrive)
	if err != nil {
		return nil, nil, err
	}
	cred, err := s.tokens.EnsureValidCredential(ctx, userID, domain.ProviderGoogleDrive)
	if err != nil {
		return nil, nil, err
	}
	return provider, cred, nil
}
