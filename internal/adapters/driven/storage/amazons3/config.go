package amazons3

import (
	"net/url"
	"strconv"
	"time"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
)

// Configuration keys.
const (
	KeyBucket          = "bucket"
	KeyRegion          = "region"
	KeyAccessKeyID     = "access_key_id"
	KeySecretAccessKey = "secret_access_key"
	KeyEndpoint        = "endpoint"
	KeyKeyPrefix       = "key_prefix"
	KeyPresignTTL      = "presign_ttl"
	KeyMaxAttempts     = "max_attempts"
)

// MaxFileSize is the S3 single object limit.
const MaxFileSize int64 = 5 << 40

func schema() domain.ConfigSchema {
	return domain.ConfigSchema{
		Required: []string{KeyBucket, KeyRegion, KeyAccessKeyID, KeySecretAccessKey},
		Defaults: map[string]string{
			KeyKeyPrefix:   "uploads",
			KeyPresignTTL:  "1h",
			KeyMaxAttempts: "3",
		},
		Sensitive: []string{KeySecretAccessKey},
	}
}

func validate(cfg *domain.ProviderConfig) *domain.ValidationResult {
	result := domain.NewValidationResult()
	result.SetMetadata("provider", string(domain.ProviderAmazonS3))

	for _, key := range cfg.MissingKeys(schema().Required) {
		result.AddError("missing required setting: %s", key)
	}

	if ep := cfg.Get(KeyEndpoint); ep != "" {
		u, err := url.Parse(ep)
		if err != nil || !u.IsAbs() {
			result.AddError("endpoint must be an absolute URL")
		} else if u.Scheme != "https" {
			result.AddWarning("endpoint is not https")
		}
	}

	if raw := cfg.Get(KeyPresignTTL); raw != "" {
		if d, err := time.ParseDuration(raw); err != nil || d <= 0 || d > 7*24*time.Hour {
			result.AddError("presign_ttl must be a duration between 1s and 168h")
		}
	}

	if raw := cfg.Get(KeyMaxAttempts); raw != "" {
		if n, err := strconv.Atoi(raw); err != nil || n < 1 {
			result.AddError("max_attempts must be a positive integer")
		}
	}

	if !result.IsValid {
		result.RecommendedAction = "Complete the Amazon S3 bucket and access key settings"
	}
	return result
}

func presignTTL(cfg *domain.ProviderConfig) time.Duration {
	if d, err := time.ParseDuration(cfg.Get(KeyPresignTTL)); err == nil && d > 0 {
		return d
	}
	return time.Hour
}

func maxAttempts(cfg *domain.ProviderConfig) int {
	if n, err := strconv.Atoi(cfg.Get(KeyMaxAttempts)); err == nil && n > 0 {
		return n
	}
	return 3
}
