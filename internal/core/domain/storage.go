package domain

import (
	"io"
	"time"
)

// UploadRequest describes a file handed to a provider.
type UploadRequest struct {
	Reader   io.Reader
	Filename string
	MimeType string
	Size     int64

	// UploaderEmail is the external client who submitted the file.
	// Hierarchical providers group files per uploader.
	UploaderEmail string

	// Description is stored as object metadata where supported
	Description string
}

// UploadResult is what a provider returns for a stored file.
type UploadResult struct {
	FileID   string `json:"file_id"`
	Location string `json:"location,omitempty"`
}

// UserProviderPreference is a user's chosen provider.
type UserProviderPreference struct {
	UserID    string       `json:"user_id"`
	Provider  ProviderName `json:"provider"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}
