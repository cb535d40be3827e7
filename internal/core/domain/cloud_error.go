package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// CloudStorageErrorType classifies a provider failure for messaging and retry decisions.
type CloudStorageErrorType string

const (
	ErrorTypeTokenExpired            CloudStorageErrorType = "token_expired"
	ErrorTypeInvalidCredentials      CloudStorageErrorType = "invalid_credentials"
	ErrorTypeInsufficientPermissions CloudStorageErrorType = "insufficient_permissions"
	ErrorTypeAPIQuotaExceeded        CloudStorageErrorType = "api_quota_exceeded"
	ErrorTypeStorageQuotaExceeded    CloudStorageErrorType = "storage_quota_exceeded"
	ErrorTypeNetworkError            CloudStorageErrorType = "network_error"
	ErrorTypeServiceUnavailable      CloudStorageErrorType = "service_unavailable"
	ErrorTypeTimeout                 CloudStorageErrorType = "timeout"
	ErrorTypeFileNotFound            CloudStorageErrorType = "file_not_found"
	ErrorTypeFolderAccessDenied      CloudStorageErrorType = "folder_access_denied"
	ErrorTypeInvalidFileType         CloudStorageErrorType = "invalid_file_type"
	ErrorTypeFileTooLarge            CloudStorageErrorType = "file_too_large"
	ErrorTypeInvalidFileContent      CloudStorageErrorType = "invalid_file_content"
	ErrorTypeProviderNotConfigured   CloudStorageErrorType = "provider_not_configured"
	ErrorTypeUnknown                 CloudStorageErrorType = "unknown_error"
)

// ErrorGuidance is the fixed user-facing treatment of an error type.
type ErrorGuidance struct {
	// Message is a template; {provider} is replaced by the display name
	Message            string
	Instructions       []string
	Retryable          bool
	RequiresUserAction bool
}

var errorGuidance = map[CloudStorageErrorType]ErrorGuidance{
	ErrorTypeTokenExpired: {
		Message: "Your {provider} connection has expired. Please reconnect your account.",
		Instructions: []string{
			"Go to Cloud Storage settings",
			"Click \"Reconnect {provider}\"",
			"Complete the authorization process",
			"Try your upload again",
		},
		RequiresUserAction: true,
	},
	ErrorTypeInvalidCredentials: {
		Message: "Invalid {provider} credentials. Please reconnect your account.",
		Instructions: []string{
			"Go to Cloud Storage settings",
			"Disconnect and reconnect your {provider} account",
			"Make sure you grant all requested permissions",
		},
		RequiresUserAction: true,
	},
	ErrorTypeInsufficientPermissions: {
		Message: "Insufficient {provider} permissions. Please reconnect and grant full access.",
		Instructions: []string{
			"Go to Cloud Storage settings",
			"Reconnect your {provider} account",
			"Grant access to files and folders when prompted",
		},
		RequiresUserAction: true,
	},
	ErrorTypeAPIQuotaExceeded: {
		Message: "{provider} API limit reached. Your uploads will resume automatically.",
		Instructions: []string{
			"Wait for the quota to reset, usually within an hour",
			"Uploads are retried automatically",
		},
		Retryable: true,
	},
	ErrorTypeStorageQuotaExceeded: {
		Message: "Your {provider} storage is full. Please free up space or upgrade your storage plan.",
		Instructions: []string{
			"Delete unneeded files from your {provider} account",
			"Empty the {provider} trash",
			"Consider upgrading your storage plan",
		},
		RequiresUserAction: true,
	},
	ErrorTypeNetworkError: {
		Message: "A network problem interrupted the transfer to {provider}. It will be retried automatically.",
		Instructions: []string{
			"Check your internet connection",
			"Uploads are retried automatically",
		},
		Retryable: true,
	},
	ErrorTypeServiceUnavailable: {
		Message: "{provider} is temporarily unavailable. It will be retried automatically.",
		Instructions: []string{
			"Wait a few minutes",
			"Check the {provider} status page if the problem persists",
		},
		Retryable: true,
	},
	ErrorTypeTimeout: {
		Message: "The request to {provider} timed out. It will be retried automatically.",
		Instructions: []string{
			"Uploads are retried automatically",
			"Large files may take several attempts on slow connections",
		},
		Retryable: true,
	},
	ErrorTypeFileNotFound: {
		Message: "The file could not be found in {provider}.",
		Instructions: []string{
			"Check whether the file was moved or deleted in {provider}",
		},
	},
	ErrorTypeFolderAccessDenied: {
		Message: "Access to the target {provider} folder was denied.",
		Instructions: []string{
			"Check that the upload folder still exists",
			"Check that your account can write to it",
			"Reconnect {provider} if the folder was shared with a different account",
		},
		RequiresUserAction: true,
	},
	ErrorTypeInvalidFileType: {
		Message: "This file type is not supported by {provider}.",
		Instructions: []string{
			"Convert the file to a supported format",
			"Upload it again",
		},
		RequiresUserAction: true,
	},
	ErrorTypeFileTooLarge: {
		Message: "This file is too large for {provider}.",
		Instructions: []string{
			"Compress the file or split it into smaller parts",
			"Upload it again",
		},
		RequiresUserAction: true,
	},
	ErrorTypeInvalidFileContent: {
		Message: "{provider} rejected the file content.",
		Instructions: []string{
			"Check that the file is not corrupted",
			"Upload it again",
		},
		RequiresUserAction: true,
	},
	ErrorTypeProviderNotConfigured: {
		Message: "{provider} is not configured. Please contact your administrator.",
		Instructions: []string{
			"Ask an administrator to complete the {provider} configuration",
		},
		RequiresUserAction: true,
	},
	ErrorTypeUnknown: {
		Message: "An unexpected error occurred with {provider}. Please try again.",
		Instructions: []string{
			"Try again in a few minutes",
			"Contact support if the problem persists",
		},
		Retryable: true,
	},
}

// AllErrorTypes lists every error type in declaration order.
func AllErrorTypes() []CloudStorageErrorType {
	return []CloudStorageErrorType{
		ErrorTypeTokenExpired, ErrorTypeInvalidCredentials, ErrorTypeInsufficientPermissions,
		ErrorTypeAPIQuotaExceeded, ErrorTypeStorageQuotaExceeded, ErrorTypeNetworkError,
		ErrorTypeServiceUnavailable, ErrorTypeTimeout, ErrorTypeFileNotFound,
		ErrorTypeFolderAccessDenied, ErrorTypeInvalidFileType, ErrorTypeFileTooLarge,
		ErrorTypeInvalidFileContent, ErrorTypeProviderNotConfigured, ErrorTypeUnknown,
	}
}

// Guidance returns the treatment for t. Unrecognised types get the unknown_error treatment.
func (t CloudStorageErrorType) Guidance() ErrorGuidance {
	if g, ok := errorGuidance[t]; ok {
		return g
	}
	return errorGuidance[ErrorTypeUnknown]
}

// IsValid reports whether t is one of the declared types.
func (t CloudStorageErrorType) IsValid() bool {
	_, ok := errorGuidance[t]
	return ok
}

// Retryable reports whether the failure may resolve without user action.
func (t CloudStorageErrorType) Retryable() bool {
	return t.Guidance().Retryable
}

// RequiresUserAction reports whether someone has to intervene.
func (t CloudStorageErrorType) RequiresUserAction() bool {
	return t.Guidance().RequiresUserAction
}

// CloudStorageError is a provider failure translated into the taxonomy.
type CloudStorageError struct {
	Type     CloudStorageErrorType
	Provider ProviderName
	Err      error

	// RetryAfter is the provider's backoff hint, when it sent one
	RetryAfter time.Duration
}

// NewCloudStorageError wraps err with a classification.
func NewCloudStorageError(t CloudStorageErrorType, provider ProviderName, err error) *CloudStorageError {
	return &CloudStorageError{Type: t, Provider: provider, Err: err}
}

func (e *CloudStorageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Provider, e.Type)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Type, e.Err)
}

func (e *CloudStorageError) Unwrap() error {
	return e.Err
}

// ErrorTypeOf classifies any error.
func ErrorTypeOf(err error) CloudStorageErrorType {
	if err == nil {
		return ""
	}

	var cse *CloudStorageError
	if errors.As(err, &cse) {
		return cse.Type
	}

	switch {
	case errors.Is(err, ErrNoCredential), errors.Is(err, ErrRefreshRejected):
		return ErrorTypeInvalidCredentials
	case errors.Is(err, ErrNoRefreshToken), errors.Is(err, ErrTokenExpired):
		return ErrorTypeTokenExpired
	case errors.Is(err, ErrProviderNotConfigured), errors.Is(err, ErrProviderUnavailable):
		return ErrorTypeProviderNotConfigured
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorTypeTimeout
	case errors.Is(err, ErrTransient):
		return ErrorTypeNetworkError
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorTypeTimeout
		}
		return ErrorTypeNetworkError
	}

	return ErrorTypeUnknown
}

// IsTransient reports whether err is a network-class failure worth one more attempt.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransient) {
		return true
	}
	switch ErrorTypeOf(err) {
	case ErrorTypeNetworkError, ErrorTypeTimeout, ErrorTypeServiceUnavailable:
		return true
	}
	return false
}

// IsRetryable reports whether a failed operation should be retried by the queue.
func IsRetryable(err error) bool {
	return err != nil && ErrorTypeOf(err).Retryable()
}

// ErrorMessage is the presentation of a failure to a user.
type ErrorMessage struct {
	Type               CloudStorageErrorType `json:"error_type"`
	Message            string                `json:"message"`
	Instructions       []string              `json:"instructions"`
	Retryable          bool                  `json:"retryable"`
	RequiresUserAction bool                  `json:"requires_user_action"`

	// Admin-only fields
	TechnicalDetails  string `json:"technical_details,omitempty"`
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
}

// DescribeError builds the message for err. Technical details are attached
// only when privileged is true.
func DescribeError(err error, displayName string, privileged bool) ErrorMessage {
	t := ErrorTypeOf(err)
	if t == "" {
		t = ErrorTypeUnknown
	}
	return DescribeErrorType(t, err, displayName, privileged)
}

// DescribeErrorType builds the message for a known type, e.g. one read back from a record.
func DescribeErrorType(t CloudStorageErrorType, err error, displayName string, privileged bool) ErrorMessage {
	g := t.Guidance()
	if !t.IsValid() {
		t = ErrorTypeUnknown
	}

	msg := ErrorMessage{
		Type:               t,
		Message:            interpolateProvider(g.Message, displayName),
		Instructions:       make([]string, len(g.Instructions)),
		Retryable:          g.Retryable,
		RequiresUserAction: g.RequiresUserAction,
	}
	for i, step := range g.Instructions {
		msg.Instructions[i] = interpolateProvider(step, displayName)
	}

	if privileged && err != nil {
		msg.TechnicalDetails = err.Error()
		var cse *CloudStorageError
		if errors.As(err, &cse) && cse.RetryAfter > 0 {
			msg.RetryAfterSeconds = int(cse.RetryAfter.Seconds())
		}
	}

	return msg
}

func interpolateProvider(s, displayName string) string {
	if displayName == "" {
		displayName = "cloud storage"
	}
	return strings.ReplaceAll(s, "{provider}", displayName)
}
