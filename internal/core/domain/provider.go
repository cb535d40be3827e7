package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
)

// ProviderName is the unique key a storage provider is registered under
type ProviderName string

const (
	ProviderGoogleDrive    ProviderName = "google-drive"
	ProviderAmazonS3       ProviderName = "amazon-s3"
	ProviderMicrosoftTeams ProviderName = "microsoft-teams"
	ProviderDropbox        ProviderName = "dropbox"
)

// Capability is a feature a provider declares support for
type Capability string

const (
	CapabilityUpload         Capability = "upload"
	CapabilityDelete         Capability = "delete"
	CapabilityFolderCreation Capability = "folder_creation"
	CapabilityPresignedURLs  Capability = "presigned_urls"
	CapabilityOAuth          Capability = "oauth"
	CapabilityAPIKey         Capability = "api_key"
	CapabilityFileSharing    Capability = "file_sharing"
)

// AuthType is how a provider authenticates its calls
type AuthType string

const (
	AuthTypeOAuth  AuthType = "oauth"
	AuthTypeAPIKey AuthType = "api_key"
	AuthTypeNone   AuthType = "none"
)

// StorageModel describes how a provider organises objects
type StorageModel string

const (
	StorageModelHierarchical StorageModel = "hierarchical"
	StorageModelFlat         StorageModel = "flat"
)

// ProviderAvailability controls whether users can select a provider
type ProviderAvailability string

const (
	AvailabilityFullyAvailable ProviderAvailability = "fully_available"
	AvailabilityComingSoon     ProviderAvailability = "coming_soon"
	AvailabilityDisabled       ProviderAvailability = "disabled"
)

// ParseAvailability reads a configured availability. Unknown values are disabled.
func ParseAvailability(s string) ProviderAvailability {
	switch ProviderAvailability(strings.ToLower(strings.TrimSpace(s))) {
	case AvailabilityFullyAvailable:
		return AvailabilityFullyAvailable
	case AvailabilityComingSoon:
		return AvailabilityComingSoon
	default:
		return AvailabilityDisabled
	}
}

// ProviderDescriptor is the immutable, registration-time description of a provider.
type ProviderDescriptor struct {
	Name               ProviderName `json:"name"`
	DisplayName        string       `json:"display_name"`
	Capabilities       []Capability `json:"capabilities"`
	AuthType           AuthType     `json:"auth_type"`
	StorageModel       StorageModel `json:"storage_model"`
	MaxFileSize        int64        `json:"max_file_size"`
	SupportedFileTypes []string     `json:"supported_file_types,omitempty"`
}

// HasCapability reports whether the provider declares the capability.
func (d *ProviderDescriptor) HasCapability(c Capability) bool {
	return slices.Contains(d.Capabilities, c)
}

// AcceptsSize reports whether a file of the given size is within limits.
// A zero MaxFileSize means unlimited.
func (d *ProviderDescriptor) AcceptsSize(size int64) bool {
	return d.MaxFileSize <= 0 || size <= d.MaxFileSize
}

// AcceptsType reports whether the MIME type passes the provider's filter.
// Filter entries are MIME prefixes ("image/", "application/pdf").
func (d *ProviderDescriptor) AcceptsType(mimeType string) bool {
	if len(d.SupportedFileTypes) == 0 {
		return true
	}
	mimeType = strings.ToLower(mimeType)
	for _, prefix := range d.SupportedFileTypes {
		if strings.HasPrefix(mimeType, strings.ToLower(prefix)) {
			return true
		}
	}
	return false
}

// ConfigSchema lists the settings a provider needs.
type ConfigSchema struct {
	// Required keys must be present and non-empty for the provider to be configured
	Required []string
	// Defaults fill optional keys missing from every configuration layer
	Defaults map[string]string
	// Sensitive keys are masked when configuration is shown to admins
	Sensitive []string
}

// ConfigSource names the layer a resolved setting came from
type ConfigSource string

const (
	ConfigSourceDefault     ConfigSource = "default"
	ConfigSourceFile        ConfigSource = "file"
	ConfigSourceEnvironment ConfigSource = "environment"
	ConfigSourceDatabase    ConfigSource = "database"
)

// ProviderConfig is the merged configuration of a provider.
type ProviderConfig struct {
	Provider     ProviderName            `json:"provider"`
	Availability ProviderAvailability    `json:"availability"`
	Settings     map[string]string       `json:"settings"`
	Sources      map[string]ConfigSource `json:"sources,omitempty"`
	sensitive    map[string]struct{}
}

// NewProviderConfig creates an empty config for a provider.
func NewProviderConfig(name ProviderName, availability ProviderAvailability, sensitive []string) *ProviderConfig {
	cfg := &ProviderConfig{
		Provider:     name,
		Availability: availability,
		Settings:     make(map[string]string),
		Sources:      make(map[string]ConfigSource),
		sensitive:    make(map[string]struct{}, len(sensitive)),
	}
	for _, key := range sensitive {
		cfg.sensitive[key] = struct{}{}
	}
	return cfg
}

// Set records a value and the layer it came from.
func (c *ProviderConfig) Set(key, value string, source ConfigSource) {
	c.Settings[key] = value
	c.Sources[key] = source
}

// Get returns a setting or the empty string.
func (c *ProviderConfig) Get(key string) string {
	if c == nil || c.Settings == nil {
		return ""
	}
	return c.Settings[key]
}

// GetBool returns a setting parsed as a boolean ("true", "1", "yes").
func (c *ProviderConfig) GetBool(key string) bool {
	switch strings.ToLower(c.Get(key)) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

// MissingKeys returns the keys that are absent or blank.
func (c *ProviderConfig) MissingKeys(keys []string) []string {
	var missing []string
	for _, key := range keys {
		if strings.TrimSpace(c.Get(key)) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

// Fingerprint identifies the settings values. Two configs with the same
// values have the same fingerprint regardless of where the values came from.
func (c *ProviderConfig) Fingerprint() string {
	keys := make([]string, 0, len(c.Settings))
	for k := range c.Settings {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	h := sha256.New()
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%s\n", k, c.Settings[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Redacted returns a copy with sensitive values masked.
func (c *ProviderConfig) Redacted() *ProviderConfig {
	out := &ProviderConfig{
		Provider:     c.Provider,
		Availability: c.Availability,
		Settings:     make(map[string]string, len(c.Settings)),
		Sources:      make(map[string]ConfigSource, len(c.Sources)),
	}
	for k, v := range c.Settings {
		if _, secret := c.sensitive[k]; secret && v != "" {
			v = "********"
		}
		out.Settings[k] = v
	}
	for k, v := range c.Sources {
		out.Sources[k] = v
	}
	return out
}
