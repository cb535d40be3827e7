package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven"
)

var _ driven.FileUploadStore = (*FileUploadStore)(nil)

const fileColumns = `id, user_id, original_name, local_path, mime_type, size, uploader_email, message,
	status, provider, cloud_file_id, error_type, error_message, attempts, created_at, updated_at, uploaded_at`

// FileUploadStore persists received files and their relay progress
type FileUploadStore struct {
	db *DB
}

// NewFileUploadStore creates a new FileUploadStore
func NewFileUploadStore(db *DB) *FileUploadStore {
	return &FileUploadStore{db: db}
}

// Save creates or updates a file record
func (s *FileUploadStore) Save(ctx context.Context, f *domain.FileUpload) error {
	query := `
		INSERT INTO file_uploads (` + fileColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			provider = EXCLUDED.provider,
			cloud_file_id = EXCLUDED.cloud_file_id,
			error_type = EXCLUDED.error_type,
			error_message = EXCLUDED.error_message,
			attempts = EXCLUDED.attempts,
			updated_at = EXCLUDED.updated_at,
			uploaded_at = EXCLUDED.uploaded_at
	`
	_, err := s.db.ExecContext(ctx, query,
		f.ID,
		f.UserID,
		f.OriginalName,
		f.LocalPath,
		f.MimeType,
		f.Size,
		f.UploaderEmail,
		NullEmpty(f.Message),
		string(f.Status),
		NullEmpty(string(f.Provider)),
		NullEmpty(f.CloudFileID),
		NullEmpty(string(f.ErrorType)),
		NullEmpty(f.ErrorMessage),
		f.Attempts,
		f.CreatedAt,
		f.UpdatedAt,
		NullTime(f.UploadedAt),
	)
	if err != nil {
		return fmt.Errorf("save file upload: %w", err)
	}
	return nil
}

// Get returns domain.ErrNotFound for an unknown id
func (s *FileUploadStore) Get(ctx context.Context, id string) (*domain.FileUpload, error) {
	f, err := scanFile(s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM file_uploads WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get file upload: %w", err)
	}
	return f, nil
}

// ListByUser returns the newest files first
func (s *FileUploadStore) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.FileUpload, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+fileColumns+`
		FROM file_uploads
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list file uploads: %w", err)
	}
	defer rows.Close()

	files := []*domain.FileUpload{}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file upload: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// CountByStatus returns the number of files per relay status
func (s *FileUploadStore) CountByStatus(ctx context.Context) (map[domain.FileStatus]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM file_uploads GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count file uploads: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.FileStatus]int64)
	for rows.Next() {
		var status domain.FileStatus
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func scanFile(row rowScanner) (*domain.FileUpload, error) {
	var f domain.FileUpload
	var message, provider, cloudID, errType, errMsg sql.NullString
	var uploadedAt sql.NullTime

	if err := row.Scan(
		&f.ID,
		&f.UserID,
		&f.OriginalName,
		&f.LocalPath,
		&f.MimeType,
		&f.Size,
		&f.UploaderEmail,
		&message,
		&f.Status,
		&provider,
		&cloudID,
		&errType,
		&errMsg,
		&f.Attempts,
		&f.CreatedAt,
		&f.UpdatedAt,
		&uploadedAt,
	); err != nil {
		return nil, err
	}
	f.Message = message.String
	f.Provider = domain.ProviderName(provider.String)
	f.CloudFileID = cloudID.String
	f.ErrorType = domain.CloudStorageErrorType(errType.String)
	f.ErrorMessage = errMsg.String
	f.UploadedAt = TimePtr(uploadedAt)
	return &f, nil
}
