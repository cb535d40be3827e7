package googledrive

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
)

// translate converts a Drive or OAuth failure into a CloudStorageError.
func translate(err error) error {
	if err == nil {
		return nil
	}

	var cse *domain.CloudStorageError
	if errors.As(err, &cse) {
		return err
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		e := domain.NewCloudStorageError(apiErrorType(apiErr), domain.ProviderGoogleDrive, err)
		e.RetryAfter = retryAfter(apiErr.Header)
		return e
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return domain.NewCloudStorageError(retrieveErrorType(retrieveErr), domain.ProviderGoogleDrive, err)
	}

	return domain.NewCloudStorageError(domain.ErrorTypeOf(err), domain.ProviderGoogleDrive, err)
}

func apiErrorType(e *googleapi.Error) domain.CloudStorageErrorType {
	reason := ""
	if len(e.Errors) > 0 {
		reason = e.Errors[0].Reason
	}

	switch reason {
	case "rateLimitExceeded", "userRateLimitExceeded", "dailyLimitExceeded", "quotaExceeded":
		return domain.ErrorTypeAPIQuotaExceeded
	case "storageQuotaExceeded":
		return domain.ErrorTypeStorageQuotaExceeded
	case "insufficientPermissions", "insufficientFilePermissions":
		return domain.ErrorTypeInsufficientPermissions
	case "appNotAuthorizedToFile", "cannotAddParent", "teamDriveMembershipRequired":
		return domain.ErrorTypeFolderAccessDenied
	case "authError", "invalidCredentials":
		return domain.ErrorTypeTokenExpired
	}

	switch {
	case e.Code == http.StatusUnauthorized:
		return domain.ErrorTypeTokenExpired
	case e.Code == http.StatusForbidden:
		return domain.ErrorTypeInsufficientPermissions
	case e.Code == http.StatusNotFound:
		return domain.ErrorTypeFileNotFound
	case e.Code == http.StatusRequestTimeout:
		return domain.ErrorTypeTimeout
	case e.Code == http.StatusRequestEntityTooLarge:
		return domain.ErrorTypeFileTooLarge
	case e.Code == http.StatusUnsupportedMediaType:
		return domain.ErrorTypeInvalidFileType
	case e.Code == http.StatusTooManyRequests:
		return domain.ErrorTypeAPIQuotaExceeded
	case e.Code == http.StatusBadRequest:
		return domain.ErrorTypeInvalidFileContent
	case e.Code >= 500:
		return domain.ErrorTypeServiceUnavailable
	}
	return domain.ErrorTypeUnknown
}

func retrieveErrorType(e *oauth2.RetrieveError) domain.CloudStorageErrorType {
	switch e.ErrorCode {
	case "invalid_grant":
		return domain.ErrorTypeInvalidCredentials
	case "invalid_client", "unauthorized_client":
		return domain.ErrorTypeProviderNotConfigured
	}
	if e.Response != nil && e.Response.StatusCode >= 500 {
		return domain.ErrorTypeServiceUnavailable
	}
	return domain.ErrorTypeUnknown
}

// refreshError maps a token refresh failure onto the refresh sentinels.
func refreshError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		switch retrieveErrorType(retrieveErr) {
		case domain.ErrorTypeInvalidCredentials:
			return fmt.Errorf("%w: %s", domain.ErrRefreshRejected, retrieveErr.ErrorDescription)
		case domain.ErrorTypeServiceUnavailable:
			return fmt.Errorf("%w: token endpoint returned %d", domain.ErrTransient, retrieveErr.Response.StatusCode)
		case domain.ErrorTypeProviderNotConfigured:
			return domain.NewCloudStorageError(domain.ErrorTypeProviderNotConfigured, domain.ProviderGoogleDrive, err)
		}
		return fmt.Errorf("refresh token: %w", err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrTransient, err)
	}
	return fmt.Errorf("refresh token: %w", err)
}

func retryAfter(h http.Header) time.Duration {
	if h == nil {
		return 0
	}
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
