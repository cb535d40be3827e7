package driving

import (
	"context"
	"io"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
)

// StoreFileRequest is a file received for a user.
type StoreFileRequest struct {
	UserID        string
	Filename      string
	MimeType      string
	Size          int64
	UploaderEmail string `validate:"required,email"`
	Message       string `validate:"max=1000"`
	Body          io.Reader
}

// RelayService receives files and relays them to cloud storage.
type RelayService interface {
	// Store saves the file locally, records it and enqueues the relay.
	Store(ctx context.Context, req StoreFileRequest) (*domain.FileUpload, error)

	// Enqueue schedules a relay without waiting for it.
	Enqueue(ctx context.Context, fileID string) error

	// RelayFile uploads a stored file to its owner's provider.
	// Failures are returned as *domain.CloudStorageError.
	RelayFile(ctx context.Context, fileID string) error

	// Retry resets a failed file and enqueues it again.
	Retry(ctx context.Context, fileID string) (*domain.FileUpload, error)

	// Get returns a file record.
	Get(ctx context.Context, fileID string) (*domain.FileUpload, error)

	// List returns a user's most recent files.
	List(ctx context.Context, userID string, limit int) ([]*domain.FileUpload, error)
}
