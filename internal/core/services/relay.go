package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driving"
)

// Ensure relayService implements RelayService
var _ driving.RelayService = (*relayService)(nil)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// RelayServiceConfig holds configuration for the relay service.
type RelayServiceConfig struct {
	Files   driven.FileUploadStore
	Queue   driven.TaskQueue
	Storage driving.StorageManager
	Tokens  driving.TokenService
	Health  driving.HealthService

	// LocalPath is where received files wait for relay
	LocalPath string

	// MaxFileSize rejects larger uploads at receipt, 0 for no limit
	MaxFileSize int64

	// DeleteAfterUpload removes the local copy once the file reached the cloud
	DeleteAfterUpload bool

	Logger *slog.Logger
}

// relayService receives files and relays them to their owner's provider.
type relayService struct {
	files   driven.FileUploadStore
	queue   driven.TaskQueue
	storage driving.StorageManager
	tokens  driving.TokenService
	health  driving.HealthService

	localPath         string
	maxFileSize       int64
	deleteAfterUpload bool
	logger            *slog.Logger
	now               func() time.Time
}

// NewRelayService creates a new RelayService.
func NewRelayService(cfg RelayServiceConfig) driving.RelayService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	localPath := cfg.LocalPath
	if localPath == "" {
		localPath = filepath.Join(os.TempDir(), "cloudrelay")
	}
	return &relayService{
		files:             cfg.Files,
		queue:             cfg.Queue,
		storage:           cfg.Storage,
		tokens:            cfg.Tokens,
		health:            cfg.Health,
		localPath:         localPath,
		maxFileSize:       cfg.MaxFileSize,
		deleteAfterUpload: cfg.DeleteAfterUpload,
		logger:            logger,
		now:               time.Now,
	}
}

// Store writes the file to local storage, records it and enqueues the relay.
func (s *relayService) Store(ctx context.Context, req driving.StoreFileRequest) (*domain.FileUpload, error) {
	req.UploaderEmail = strings.ToLower(strings.TrimSpace(req.UploaderEmail))
	if err := validateStruct(req); err != nil {
		return nil, err
	}
	filename := filepath.Base(strings.ReplaceAll(req.Filename, "\\", "/"))
	if req.UserID == "" || req.Body == nil || filename == "." || filename == "/" {
		return nil, fmt.Errorf("%w: owner, filename and body are required", domain.ErrInvalidInput)
	}

	id := domain.GenerateID()
	path, size, err := s.writeLocal(id, req.Body)
	if err != nil {
		return nil, err
	}

	now := s.now()
	file := &domain.FileUpload{
		ID:            id,
		UserID:        req.UserID,
		OriginalName:  filename,
		LocalPath:     path,
		MimeType:      detectMimeType(req.MimeType, filename),
		Size:          size,
		UploaderEmail: req.UploaderEmail,
		Message:       strings.TrimSpace(req.Message),
		Status:        domain.FileStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.files.Save(ctx, file); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("save file record: %w", err)
	}

	if err := s.Enqueue(ctx, file.ID); err != nil {
		// The record stays pending and can be retried
		s.logger.Error("failed to enqueue relay", "file_id", file.ID, "error", err)
	}

	s.logger.Info("file received",
		"file_id", file.ID, "user_id", file.UserID, "size", file.Size, "mime_type", file.MimeType)
	return file, nil
}

func (s *relayService) writeLocal(id string, body io.Reader) (string, int64, error) {
	if err := os.MkdirAll(s.localPath, 0o750); err != nil {
		return "", 0, fmt.Errorf("create upload directory: %w", err)
	}
	path := filepath.Join(s.localPath, id)
	out, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return "", 0, fmt.Errorf("create local file: %w", err)
	}

	src := body
	if s.maxFileSize > 0 {
		src = io.LimitReader(body, s.maxFileSize+1)
	}
	size, err := io.Copy(out, src)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("write local file: %w", err)
	}
	if s.maxFileSize > 0 && size > s.maxFileSize {
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("%w: file exceeds %d bytes", domain.ErrInvalidInput, s.maxFileSize)
	}
	return path, size, nil
}

func detectMimeType(given, filename string) string {
	if mt, _, err := mime.ParseMediaType(given); err == nil && mt != "application/octet-stream" {
		return mt
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); byExt != "" {
		if mt, _, err := mime.ParseMediaType(byExt); err == nil {
			return mt
		}
	}
	return "application/octet-stream"
}

// Enqueue schedules a relay without waiting for it.
func (s *relayService) Enqueue(ctx context.Context, fileID string) error {
	return s.queue.Enqueue(ctx, domain.NewRelayFileTask(fileID))
}

// RelayFile uploads a stored file to its owner's provider.
func (s *relayService) RelayFile(ctx context.Context, fileID string) error {
	file, err := s.files.Get(ctx, fileID)
	if err != nil {
		return err
	}
	if file.IsUploaded() {
		s.logger.Debug("file already relayed", "file_id", file.ID)
		return nil
	}

	provider, err := s.storage.GetUserProvider(ctx, file.UserID)
	if err != nil {
		return s.fail(ctx, file, s.storage.UserProviderName(ctx, file.UserID), err, false)
	}
	name := provider.Name()

	file.MarkUploading(name, s.now())
	if err := s.files.Save(ctx, file); err != nil {
		return fmt.Errorf("save file record: %w", err)
	}

	var cred *domain.ConnectionCredential
	if provider.AuthType() == domain.AuthTypeOAuth {
		cred, err = s.tokens.EnsureValidCredential(ctx, file.UserID, name)
		if err != nil {
			return s.fail(ctx, file, name, err, true)
		}
	}

	desc := &domain.ProviderDescriptor{
		MaxFileSize:        provider.MaxFileSize(),
		SupportedFileTypes: provider.SupportedFileTypes(),
	}
	if !desc.AcceptsSize(file.Size) {
		return s.fail(ctx, file, name, domain.NewCloudStorageError(domain.ErrorTypeFileTooLarge, name,
			fmt.Errorf("%d bytes exceeds limit of %d", file.Size, desc.MaxFileSize)), false)
	}
	if !desc.AcceptsType(file.MimeType) {
		return s.fail(ctx, file, name, domain.NewCloudStorageError(domain.ErrorTypeInvalidFileType, name,
			fmt.Errorf("%s is not accepted", file.MimeType)), false)
	}

	body, err := os.Open(file.LocalPath)
	if err != nil {
		return s.fail(ctx, file, name, domain.NewCloudStorageError(domain.ErrorTypeFileNotFound, name,
			fmt.Errorf("open local copy: %w", err)), false)
	}
	defer body.Close()

	result, err := provider.Upload(ctx, cred, &domain.UploadRequest{
		Reader:        body,
		Filename:      file.OriginalName,
		MimeType:      file.MimeType,
		Size:          file.Size,
		UploaderEmail: file.UploaderEmail,
		Description:   file.Message,
	})
	if err != nil {
		return s.fail(ctx, file, name, err, true)
	}

	file.MarkUploaded(name, result.FileID, s.now())
	if err := s.files.Save(ctx, file); err != nil {
		return fmt.Errorf("save file record: %w", err)
	}
	s.health.RecordOperationSuccess(ctx, file.UserID, name, cred)

	if s.deleteAfterUpload {
		if err := os.Remove(file.LocalPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("failed to remove local copy", "file_id", file.ID, "error", err)
		}
	}

	s.logger.Info("file relayed",
		"file_id", file.ID, "provider", name, "cloud_file_id", result.FileID, "attempt", file.Attempts)
	return nil
}

// fail records a classified failure on the file and returns it as a CloudStorageError.
// providerFault marks failures that say something about the connection's health.
func (s *relayService) fail(ctx context.Context, file *domain.FileUpload, name domain.ProviderName, err error, providerFault bool) error {
	var cse *domain.CloudStorageError
	if !errors.As(err, &cse) {
		cse = domain.NewCloudStorageError(domain.ErrorTypeOf(err), name, err)
	}

	var displayName string
	if desc, descErr := s.storage.Describe(name); descErr == nil {
		displayName = desc.DisplayName
	}
	file.MarkFailed(cse.Type, domain.DescribeErrorType(cse.Type, err, displayName, false).Message, s.now())
	if saveErr := s.files.Save(ctx, file); saveErr != nil {
		s.logger.Error("failed to save file failure", "file_id", file.ID, "error", saveErr)
	}

	if providerFault {
		s.health.RecordOperationFailure(ctx, file.UserID, name, err)
	}

	s.logger.Warn("file relay failed",
		"file_id", file.ID, "provider", name, "error_type", cse.Type, "retryable", cse.Type.Retryable(), "error", err)
	return cse
}

// Retry resets a failed file and enqueues it again.
func (s *relayService) Retry(ctx context.Context, fileID string) (*domain.FileUpload, error) {
	file, err := s.files.Get(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.Status != domain.FileStatusFailed {
		return nil, fmt.Errorf("%w: only failed files can be retried", domain.ErrInvalidInput)
	}

	file.ResetForRetry(s.now())
	if err := s.files.Save(ctx, file); err != nil {
		return nil, fmt.Errorf("save file record: %w", err)
	}
	if err := s.Enqueue(ctx, file.ID); err != nil {
		return nil, fmt.Errorf("enqueue relay: %w", err)
	}
	return file, nil
}

// Get returns a file record.
func (s *relayService) Get(ctx context.Context, fileID string) (*domain.FileUpload, error) {
	return s.files.Get(ctx, fileID)
}

// List returns a user's most recent files.
func (s *relayService) List(ctx context.Context, userID string, limit int) ([]*domain.FileUpload, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.files.ListByUser(ctx, userID, limit)
}
