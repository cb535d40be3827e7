package domain

import "time"

// FileStatus is the relay state of an uploaded file
type FileStatus string

const (
	FileStatusPending   FileStatus = "pending"
	FileStatusUploading FileStatus = "uploading"
	FileStatusUploaded  FileStatus = "uploaded"
	FileStatusFailed    FileStatus = "failed"
)

// FileUpload is a file received from a client, stored locally until it is
// relayed to the owner's cloud provider.
type FileUpload struct {
	ID            string `json:"id"`
	UserID        string `json:"user_id"`
	OriginalName  string `json:"original_name"`
	LocalPath     string `json:"-"`
	MimeType      string `json:"mime_type"`
	Size          int64  `json:"size"`
	UploaderEmail string `json:"uploader_email"`
	Message       string `json:"message,omitempty"`

	Status      FileStatus   `json:"status"`
	Provider    ProviderName `json:"provider,omitempty"`
	CloudFileID string       `json:"cloud_file_id,omitempty"`

	ErrorType    CloudStorageErrorType `json:"error_type,omitempty"`
	ErrorMessage string                `json:"error_message,omitempty"`
	Attempts     int                   `json:"attempts"`

	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	UploadedAt *time.Time `json:"uploaded_at,omitempty"`
}

// MarkUploading records the start of a relay attempt.
func (f *FileUpload) MarkUploading(provider ProviderName, now time.Time) {
	f.Status = FileStatusUploading
	f.Provider = provider
	f.Attempts++
	f.UpdatedAt = now
}

// MarkUploaded records a successful relay.
func (f *FileUpload) MarkUploaded(provider ProviderName, cloudFileID string, now time.Time) {
	f.Status = FileStatusUploaded
	f.Provider = provider
	f.CloudFileID = cloudFileID
	f.ErrorType = ""
	f.ErrorMessage = ""
	f.UploadedAt = &now
	f.UpdatedAt = now
}

// MarkFailed records a failed relay with its classification.
func (f *FileUpload) MarkFailed(errType CloudStorageErrorType, message string, now time.Time) {
	f.Status = FileStatusFailed
	f.ErrorType = errType
	f.ErrorMessage = message
	f.UpdatedAt = now
}

// ResetForRetry returns a failed file to pending.
func (f *FileUpload) ResetForRetry(now time.Time) {
	f.Status = FileStatusPending
	f.ErrorType = ""
	f.ErrorMessage = ""
	f.UpdatedAt = now
}

// IsUploaded returns true if the file already reached the cloud.
func (f *FileUpload) IsUploaded() bool {
	return f.Status == FileStatusUploaded && f.CloudFileID != ""
}
