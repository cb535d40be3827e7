package driving

import (
	"context"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
)

// DriveService is the Google Drive specific contract that predates the
// provider abstraction.
//
// Deprecated: resolve a provider through StorageManager and credentials
// through TokenService instead.
type DriveService interface {
	UploadFile(ctx context.Context, userID string, req *domain.UploadRequest) (*domain.UploadResult, error)
	DeleteFile(ctx context.Context, userID, fileID string) error
	IsConnected(ctx context.Context, userID string) bool
	GetValidToken(ctx context.Context, userID string) (string, error)
}
