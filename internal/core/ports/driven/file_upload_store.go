package driven

import (
	"context"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
)

// FileUploadStore persists received files awaiting or finished relay (PostgreSQL).
type FileUploadStore interface {
	Save(ctx context.Context, file *domain.FileUpload) error

	// Get returns domain.ErrNotFound for an unknown id
	Get(ctx context.Context, id string) (*domain.FileUpload, error)

	// ListByUser returns the newest files first
	ListByUser(ctx context.Context, userID string, limit int) ([]*domain.FileUpload, error)

	// CountByStatus returns the number of files per relay status
	CountByStatus(ctx context.Context) (map[domain.FileStatus]int64, error)
}
