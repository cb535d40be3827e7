package googledrive

import (
	"net/url"
	"strings"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
)

// Configuration keys.
const (
	KeyClientID          = "client_id"
	KeyClientSecret      = "client_secret"
	KeyRedirectURI       = "redirect_uri"
	KeyRootFolderID      = "root_folder_id"
	KeyFolderPerUploader = "folder_per_uploader"

	// KeyAPIEndpoint and the URL overrides below point the provider at a
	// different host, e.g. a local emulator.
	KeyAPIEndpoint = "api_endpoint"
	KeyAuthURL     = "auth_url"
	KeyTokenURL    = "token_url"
)

// MaxFileSize is the Drive per-file upload limit.
const MaxFileSize int64 = 5 << 40

func schema() domain.ConfigSchema {
	return domain.ConfigSchema{
		Required: []string{KeyClientID, KeyClientSecret, KeyRedirectURI},
		Defaults: map[string]string{
			KeyRootFolderID:      "root",
			KeyFolderPerUploader: "true",
		},
		Sensitive: []string{KeyClientSecret},
	}
}

func validate(cfg *domain.ProviderConfig) *domain.ValidationResult {
	result := domain.NewValidationResult()
	result.SetMetadata("provider", string(domain.ProviderGoogleDrive))

	for _, key := range cfg.MissingKeys(schema().Required) {
		result.AddError("missing required setting: %s", key)
	}

	if raw := cfg.Get(KeyRedirectURI); raw != "" {
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
			result.AddError("redirect_uri must be an absolute http(s) URL")
		} else if u.Scheme == "http" && u.Hostname() != "localhost" && u.Hostname() != "127.0.0.1" {
			result.AddWarning("redirect_uri should use https outside local development")
		}
	}

	if id := cfg.Get(KeyClientID); id != "" && !strings.HasSuffix(id, ".apps.googleusercontent.com") {
		result.AddWarning("client_id does not look like a Google OAuth client id")
	}

	if cfg.Get(KeyRootFolderID) == "" {
		result.AddWarning("root_folder_id not set, files go to the drive root")
	}

	if !result.IsValid {
		result.RecommendedAction = "Complete the Google Drive OAuth client settings"
	}
	return result
}
