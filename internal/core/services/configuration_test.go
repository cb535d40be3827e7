package services

import (
	"context"
	"errors"
	"testing"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestS3Mock() *mocks.MockStorageProvider {
	p := mocks.NewMockStorageProvider(domain.ProviderAmazonS3)
	p.Schema = domain.ConfigSchema{
		Required:  []string{"bucket", "region", "secret_access_key"},
		Defaults:  map[string]string{"key_prefix": "uploads", "region": "us-east-1"},
		Sensitive: []string{"secret_access_key"},
	}
	return p
}

type configFixture struct {
	provider *mocks.MockStorageProvider
	settings *mocks.MockProviderSettingsStore
	cache    *mocks.MockValidationCache
	svc      *configurationService
}

func newConfigFixture(t *testing.T, opts ConfigurationOptions) *configFixture {
	t.Helper()
	provider := newTestS3Mock()
	settings := mocks.NewMockProviderSettingsStore()
	cache := mocks.NewMockValidationCache()
	if opts.Environ == nil {
		opts.Environ = fixedEnv()
	}
	opts.Logger = discardLogger()
	svc := NewConfigurationService(newTestRegistry(t, provider), settings, cache, opts).(*configurationService)
	return &configFixture{provider: provider, settings: settings, cache: cache, svc: svc}
}

func TestConfigurationService_LayerPrecedence(t *testing.T) {
	ctx := context.Background()
	f := newConfigFixture(t, ConfigurationOptions{
		Providers: map[domain.ProviderName]ProviderFileSettings{
			domain.ProviderAmazonS3: {
				Availability: "fully_available",
				Settings: map[string]string{
					"bucket": "file-bucket",
					"region": "eu-west-1",
				},
			},
		},
		Environ: fixedEnv(
			"CLOUD_STORAGE_AMAZON_S3_REGION=eu-central-1",
			"CLOUD_STORAGE_AMAZON_S3_SECRET_ACCESS_KEY=env-secret",
			"CLOUD_STORAGE_GOOGLE_DRIVE_CLIENT_ID=ignored",
			"UNRELATED=1",
		),
	})
	require.NoError(t, f.settings.Save(ctx, domain.ProviderAmazonS3, map[string]string{"secret_access_key": "db-secret"}))

	cfg, err := f.svc.GetProviderConfig(ctx, domain.ProviderAmazonS3)
	require.NoError(t, err)

	assert.Equal(t, domain.AvailabilityFullyAvailable, cfg.Availability)
	assert.Equal(t, "uploads", cfg.Get("key_prefix"))
	assert.Equal(t, "file-bucket", cfg.Get("bucket"))
	assert.Equal(t, "eu-central-1", cfg.Get("region"))
	assert.Equal(t, "db-secret", cfg.Get("secret_access_key"))
	assert.Empty(t, cfg.Get("client_id"))

	assert.Equal(t, domain.ConfigSourceDefault, cfg.Sources["key_prefix"])
	assert.Equal(t, domain.ConfigSourceFile, cfg.Sources["bucket"])
	assert.Equal(t, domain.ConfigSourceEnvironment, cfg.Sources["region"])
	assert.Equal(t, domain.ConfigSourceDatabase, cfg.Sources["secret_access_key"])

	assert.Equal(t, "********", cfg.Redacted().Get("secret_access_key"))
}

func TestConfigurationService_UnknownProvider(t *testing.T) {
	f := newConfigFixture(t, ConfigurationOptions{})

	_, err := f.svc.GetProviderConfig(context.Background(), "box")
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)
	assert.False(t, f.svc.IsProviderConfigured(context.Background(), "box"))

	_, err = f.svc.ValidateProviderConfig(context.Background(), "box")
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)
}

func TestConfigurationService_SettingsStoreFailureSkipsLayer(t *testing.T) {
	f := newConfigFixture(t, ConfigurationOptions{
		Providers: map[domain.ProviderName]ProviderFileSettings{
			domain.ProviderAmazonS3: {Settings: map[string]string{"bucket": "file-bucket"}},
		},
	})
	f.settings.GetErr = errors.New("connection refused")

	cfg, err := f.svc.GetProviderConfig(context.Background(), domain.ProviderAmazonS3)
	require.NoError(t, err)
	assert.Equal(t, "file-bucket", cfg.Get("bucket"))
}

func TestConfigurationService_IsProviderConfigured(t *testing.T) {
	ctx := context.Background()
	f := newConfigFixture(t, ConfigurationOptions{
		Providers: map[domain.ProviderName]ProviderFileSettings{
			domain.ProviderAmazonS3: {Settings: map[string]string{"bucket": "b"}},
		},
	})

	assert.False(t, f.svc.IsProviderConfigured(ctx, domain.ProviderAmazonS3))

	require.NoError(t, f.settings.Save(ctx, domain.ProviderAmazonS3, map[string]string{"secret_access_key": "  "}))
	assert.False(t, f.svc.IsProviderConfigured(ctx, domain.ProviderAmazonS3), "blank values do not count")

	require.NoError(t, f.settings.Save(ctx, domain.ProviderAmazonS3, map[string]string{"secret_access_key": "s"}))
	assert.True(t, f.svc.IsProviderConfigured(ctx, domain.ProviderAmazonS3))
}

func TestConfigurationService_GetAllProviderConfigs(t *testing.T) {
	provider := newTestS3Mock()
	other := mocks.NewMockStorageProvider(domain.ProviderDropbox)
	svc := NewConfigurationService(newTestRegistry(t, provider, other), nil, nil, ConfigurationOptions{
		Environ: fixedEnv(),
		Logger:  discardLogger(),
	})

	all := svc.GetAllProviderConfigs(context.Background())
	assert.Len(t, all, 2)
	assert.Contains(t, all, domain.ProviderAmazonS3)
	assert.Contains(t, all, domain.ProviderDropbox)
}

func TestConfigurationService_Availability(t *testing.T) {
	tests := []struct {
		name string
		file string
		env  []string
		want domain.ProviderAvailability
	}{
		{"unset is disabled", "", nil, domain.AvailabilityDisabled},
		{"from file", "coming_soon", nil, domain.AvailabilityComingSoon},
		{"env wins", "disabled", []string{"CLOUD_STORAGE_AMAZON_S3_AVAILABILITY=fully_available"}, domain.AvailabilityFullyAvailable},
		{"unknown value is disabled", "sometimes", nil, domain.AvailabilityDisabled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newConfigFixture(t, ConfigurationOptions{
				Providers: map[domain.ProviderName]ProviderFileSettings{
					domain.ProviderAmazonS3: {Availability: tt.file},
				},
				Environ: fixedEnv(tt.env...),
			})
			assert.Equal(t, tt.want, f.svc.Availability(domain.ProviderAmazonS3))
		})
	}
}

func TestConfigurationService_DefaultProviderName(t *testing.T) {
	f := newConfigFixture(t, ConfigurationOptions{})
	assert.Equal(t, domain.ProviderGoogleDrive, f.svc.DefaultProviderName())

	f = newConfigFixture(t, ConfigurationOptions{DefaultProvider: domain.ProviderAmazonS3})
	assert.Equal(t, domain.ProviderAmazonS3, f.svc.DefaultProviderName())
}

func TestConfigurationService_ValidateProviderConfig(t *testing.T) {
	ctx := context.Background()
	f := newConfigFixture(t, ConfigurationOptions{
		Providers: map[domain.ProviderName]ProviderFileSettings{
			domain.ProviderAmazonS3: {Availability: "coming_soon", Settings: map[string]string{"bucket": "b"}},
		},
	})
	f.provider.ValidateFn = func(cfg *domain.ProviderConfig) *domain.ValidationResult {
		r := domain.NewValidationResult()
		r.AddError("missing required setting: secret_access_key")
		r.AddWarning("endpoint is not https")
		return r
	}

	result, err := f.svc.ValidateProviderConfig(ctx, domain.ProviderAmazonS3)
	require.NoError(t, err)

	assert.False(t, result.IsValid)
	assert.Equal(t, []string{"missing required setting: secret_access_key"}, result.Errors)
	assert.Contains(t, result.Warnings, "endpoint is not https")
	assert.Contains(t, result.Warnings, "provider is marked coming soon and cannot be selected")
	assert.Equal(t, "coming_soon", result.Metadata["availability"])
	assert.NotEmpty(t, result.RecommendedAction)

	// Second call is served from the cache
	_, err = f.svc.ValidateProviderConfig(ctx, domain.ProviderAmazonS3)
	require.NoError(t, err)
	assert.Equal(t, 1, f.cache.Hits)
}

func TestConfigurationService_SaveProviderSettings(t *testing.T) {
	ctx := context.Background()
	f := newConfigFixture(t, ConfigurationOptions{})
	require.NoError(t, f.settings.Save(ctx, domain.ProviderAmazonS3, map[string]string{
		"bucket":            "old-bucket",
		"secret_access_key": "stored-secret",
		"endpoint":          "https://minio.local",
	}))

	// Prime the cache with a stale result
	_, err := f.svc.ValidateProviderConfig(ctx, domain.ProviderAmazonS3)
	require.NoError(t, err)

	result, err := f.svc.SaveProviderSettings(ctx, domain.ProviderAmazonS3, map[string]string{
		" Bucket ":          "new-bucket",
		"secret_access_key": "********",
		"endpoint":          "",
		"region":            "eu-west-2",
	})
	require.NoError(t, err)
	assert.True(t, result.IsValid, "errors: %v", result.Errors)
	assert.Equal(t, 0, f.cache.Hits, "save must invalidate the cached validation")

	saved, err := f.settings.Get(ctx, domain.ProviderAmazonS3)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"bucket":            "new-bucket",
		"secret_access_key": "stored-secret",
		"region":            "eu-west-2",
	}, saved)
}

func TestConfigurationService_SaveProviderSettings_NoStore(t *testing.T) {
	svc := NewConfigurationService(newTestRegistry(t, newTestS3Mock()), nil, nil, ConfigurationOptions{
		Environ: fixedEnv(),
		Logger:  discardLogger(),
	})

	_, err := svc.SaveProviderSettings(context.Background(), domain.ProviderAmazonS3, map[string]string{"bucket": "b"})
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}
