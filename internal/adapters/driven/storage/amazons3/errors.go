package amazons3

import (
	"errors"
	"net/http"

	"github.com/aws/smithy-go"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
)

var errorCodes = map[string]domain.CloudStorageErrorType{
	"InvalidAccessKeyId":    domain.ErrorTypeInvalidCredentials,
	"SignatureDoesNotMatch": domain.ErrorTypeInvalidCredentials,
	"ExpiredToken":          domain.ErrorTypeTokenExpired,
	"InvalidToken":          domain.ErrorTypeInvalidCredentials,
	"AccessDenied":          domain.ErrorTypeInsufficientPermissions,
	"AllAccessDisabled":     domain.ErrorTypeInsufficientPermissions,
	"Forbidden":             domain.ErrorTypeInsufficientPermissions,
	"NoSuchBucket":          domain.ErrorTypeProviderNotConfigured,
	"PermanentRedirect":     domain.ErrorTypeProviderNotConfigured,
	"NoSuchKey":             domain.ErrorTypeFileNotFound,
	"NotFound":              domain.ErrorTypeFileNotFound,
	"SlowDown":              domain.ErrorTypeAPIQuotaExceeded,
	"Throttling":            domain.ErrorTypeAPIQuotaExceeded,
	"RequestLimitExceeded":  domain.ErrorTypeAPIQuotaExceeded,
	"TooManyRequests":       domain.ErrorTypeAPIQuotaExceeded,
	"EntityTooLarge":        domain.ErrorTypeFileTooLarge,
	"BadDigest":             domain.ErrorTypeInvalidFileContent,
	"InvalidDigest":         domain.ErrorTypeInvalidFileContent,
	"IncompleteBody":        domain.ErrorTypeInvalidFileContent,
	"RequestTimeout":        domain.ErrorTypeTimeout,
	"InternalError":         domain.ErrorTypeServiceUnavailable,
	"ServiceUnavailable":    domain.ErrorTypeServiceUnavailable,
}

type httpStatusError interface {
	HTTPStatusCode() int
}

// translate converts an SDK failure into a CloudStorageError.
func translate(err error) error {
	if err == nil {
		return nil
	}

	var cse *domain.CloudStorageError
	if errors.As(err, &cse) {
		return err
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if t, ok := errorCodes[apiErr.ErrorCode()]; ok {
			return domain.NewCloudStorageError(t, domain.ProviderAmazonS3, err)
		}
	}

	// HEAD responses carry no error body, only a status
	var statusErr httpStatusError
	if errors.As(err, &statusErr) {
		if t := statusType(statusErr.HTTPStatusCode()); t != "" {
			return domain.NewCloudStorageError(t, domain.ProviderAmazonS3, err)
		}
	}

	return domain.NewCloudStorageError(domain.ErrorTypeOf(err), domain.ProviderAmazonS3, err)
}

func statusType(code int) domain.CloudStorageErrorType {
	switch {
	case code == http.StatusUnauthorized:
		return domain.ErrorTypeInvalidCredentials
	case code == http.StatusForbidden:
		return domain.ErrorTypeInsufficientPermissions
	case code == http.StatusNotFound:
		return domain.ErrorTypeFileNotFound
	case code == http.StatusTooManyRequests:
		return domain.ErrorTypeAPIQuotaExceeded
	case code >= 500:
		return domain.ErrorTypeServiceUnavailable
	}
	return ""
}
