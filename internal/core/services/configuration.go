package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driving"
)

// Ensure configurationService implements ConfigurationService
var _ driving.ConfigurationService = (*configurationService)(nil)

// EnvPrefix starts every provider environment override:
// CLOUD_STORAGE_<PROVIDER>_<KEY>, e.g. CLOUD_STORAGE_GOOGLE_DRIVE_CLIENT_ID.
const EnvPrefix = "CLOUD_STORAGE_"

// redactedValue is what Redacted() shows for secrets. Saving it back keeps the stored value.
const redactedValue = "********"

// ProviderFileSettings is a provider's entry in the config file.
type ProviderFileSettings struct {
	Availability string
	Settings     map[string]string
}

// ConfigurationOptions configures the ConfigurationService.
type ConfigurationOptions struct {
	Providers       map[domain.ProviderName]ProviderFileSettings
	DefaultProvider domain.ProviderName

	// ValidationTTL is how long validation results are cached
	ValidationTTL time.Duration

	// Environ returns the process environment, os.Environ when nil
	Environ func() []string

	Logger *slog.Logger
}

// configurationService merges provider settings from four layers, lowest first:
// schema defaults, config file, environment, admin-saved settings.
type configurationService struct {
	factory  driven.ProviderFactory
	settings driven.ProviderSettingsStore
	cache    driven.ValidationCache
	opts     ConfigurationOptions
	logger   *slog.Logger
}

// NewConfigurationService creates a new ConfigurationService.
// settings and cache may be nil.
func NewConfigurationService(
	factory driven.ProviderFactory,
	settings driven.ProviderSettingsStore,
	cache driven.ValidationCache,
	opts ConfigurationOptions,
) driving.ConfigurationService {
	if opts.Environ == nil {
		opts.Environ = os.Environ
	}
	if opts.ValidationTTL <= 0 {
		opts.ValidationTTL = 5 * time.Minute
	}
	if opts.DefaultProvider == "" {
		opts.DefaultProvider = domain.ProviderGoogleDrive
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &configurationService{
		factory:  factory,
		settings: settings,
		cache:    cache,
		opts:     opts,
		logger:   logger,
	}
}

// GetProviderConfig returns the merged configuration of a registered provider.
func (s *configurationService) GetProviderConfig(ctx context.Context, name domain.ProviderName) (*domain.ProviderConfig, error) {
	schema, err := s.factory.Schema(name)
	if err != nil {
		return nil, err
	}

	cfg := domain.NewProviderConfig(name, s.Availability(name), schema.Sensitive)

	for key, value := range schema.Defaults {
		cfg.Set(key, value, domain.ConfigSourceDefault)
	}

	for key, value := range s.opts.Providers[name].Settings {
		if value != "" {
			cfg.Set(key, value, domain.ConfigSourceFile)
		}
	}

	for key, value := range s.envOverrides(name) {
		if key == "availability" {
			continue
		}
		cfg.Set(key, value, domain.ConfigSourceEnvironment)
	}

	for key, value := range s.savedSettings(ctx, name) {
		cfg.Set(key, value, domain.ConfigSourceDatabase)
	}

	return cfg, nil
}

// IsProviderConfigured reports whether every required key is set.
func (s *configurationService) IsProviderConfigured(ctx context.Context, name domain.ProviderName) bool {
	schema, err := s.factory.Schema(name)
	if err != nil {
		return false
	}
	cfg, err := s.GetProviderConfig(ctx, name)
	if err != nil {
		return false
	}
	return len(cfg.MissingKeys(schema.Required)) == 0
}

// GetAllProviderConfigs returns the configuration of every registered provider.
func (s *configurationService) GetAllProviderConfigs(ctx context.Context) map[domain.ProviderName]*domain.ProviderConfig {
	out := make(map[domain.ProviderName]*domain.ProviderConfig)
	for _, name := range s.factory.Names() {
		cfg, err := s.GetProviderConfig(ctx, name)
		if err != nil {
			s.logger.Warn("failed to resolve provider config", "provider", name, "error", err)
			continue
		}
		out[name] = cfg
	}
	return out
}

// ValidateProviderConfig combines missing required keys with the provider's own checks.
// Results are cached for ValidationTTL.
func (s *configurationService) ValidateProviderConfig(ctx context.Context, name domain.ProviderName) (*domain.ValidationResult, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, name)
		if err != nil {
			s.logger.Warn("validation cache read failed", "provider", name, "error", err)
		} else if cached != nil {
			return cached, nil
		}
	}

	result, err := s.validate(ctx, name)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, name, result, s.opts.ValidationTTL); err != nil {
			s.logger.Warn("validation cache write failed", "provider", name, "error", err)
		}
	}
	return result, nil
}

func (s *configurationService) validate(ctx context.Context, name domain.ProviderName) (*domain.ValidationResult, error) {
	schema, err := s.factory.Schema(name)
	if err != nil {
		return nil, err
	}
	cfg, err := s.GetProviderConfig(ctx, name)
	if err != nil {
		return nil, err
	}

	result := domain.NewValidationResult()
	if provider, err := s.factory.New(name); err != nil {
		result.AddError("provider cannot be instantiated: %v", err)
	} else {
		result.Merge(provider.ValidateConfiguration(cfg))
	}

	for _, key := range cfg.MissingKeys(schema.Required) {
		msg := "missing required setting: " + key
		if !slices.Contains(result.Errors, msg) {
			result.AddError("%s", msg)
		}
	}

	switch cfg.Availability {
	case domain.AvailabilityComingSoon:
		result.AddWarning("provider is marked coming soon and cannot be selected")
	case domain.AvailabilityDisabled:
		result.AddWarning("provider is disabled")
	}

	result.SetMetadata("provider", string(name))
	result.SetMetadata("availability", string(cfg.Availability))
	if !result.IsValid && result.RecommendedAction == "" {
		result.RecommendedAction = "Complete the provider configuration"
	}
	return result, nil
}

// SaveProviderSettings merges admin-entered settings into the stored ones.
// An empty value removes a key; the redaction mask keeps the stored secret.
func (s *configurationService) SaveProviderSettings(ctx context.Context, name domain.ProviderName, settings map[string]string) (*domain.ValidationResult, error) {
	if _, err := s.factory.Schema(name); err != nil {
		return nil, err
	}
	if s.settings == nil {
		return nil, fmt.Errorf("%w: settings store not configured", domain.ErrServiceUnavailable)
	}

	merged, err := s.settings.Get(ctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		merged = make(map[string]string)
	} else if err != nil {
		return nil, fmt.Errorf("load provider settings: %w", err)
	}

	for key, value := range settings {
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		switch {
		case key == "":
			continue
		case value == redactedValue:
			continue
		case value == "":
			delete(merged, key)
		default:
			merged[key] = value
		}
	}

	if err := s.settings.Save(ctx, name, merged); err != nil {
		return nil, fmt.Errorf("save provider settings: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, name); err != nil {
			s.logger.Warn("validation cache invalidate failed", "provider", name, "error", err)
		}
	}

	s.logger.Info("provider settings saved", "provider", name, "keys", len(merged))
	return s.ValidateProviderConfig(ctx, name)
}

// Availability returns the configured availability. Unknown values are disabled.
func (s *configurationService) Availability(name domain.ProviderName) domain.ProviderAvailability {
	raw := s.opts.Providers[name].Availability
	if v, ok := s.envOverrides(name)["availability"]; ok {
		raw = v
	}
	return domain.ParseAvailability(raw)
}

// DefaultProviderName returns the system default provider.
func (s *configurationService) DefaultProviderName() domain.ProviderName {
	return s.opts.DefaultProvider
}

func (s *configurationService) savedSettings(ctx context.Context, name domain.ProviderName) map[string]string {
	if s.settings == nil {
		return nil
	}
	saved, err := s.settings.Get(ctx, name)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("failed to load saved provider settings", "provider", name, "error", err)
		}
		return nil
	}
	return saved
}

// envOverrides returns CLOUD_STORAGE_<NAME>_* variables keyed by lower-case setting name.
func (s *configurationService) envOverrides(name domain.ProviderName) map[string]string {
	prefix := EnvPrefix + envName(name) + "_"
	out := make(map[string]string)
	for _, kv := range s.opts.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, prefix) || value == "" {
			continue
		}
		out[strings.ToLower(strings.TrimPrefix(key, prefix))] = value
	}
	return out
}

func envName(name domain.ProviderName) string {
	return strings.ToUpper(strings.ReplaceAll(string(name), "-", "_"))
}
