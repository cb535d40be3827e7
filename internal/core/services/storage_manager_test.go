package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type managerFixture struct {
	drive    *mocks.MockOAuthProvider
	s3       *mocks.MockStorageProvider
	dropbox  *mocks.MockStorageProvider
	prefs    *mocks.MockPreferenceStore
	settings *mocks.MockProviderSettingsStore
	config   *configurationService
	manager  *storageManager
}

// newManagerFixture registers google-drive (default) and amazon-s3 as available
// and dropbox as coming soon.
func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()
	drive := mocks.NewMockOAuthProvider(domain.ProviderGoogleDrive)
	drive.Desc.DisplayName = "Google Drive"
	drive.Schema = domain.ConfigSchema{Required: []string{"client_id"}}
	s3 := mocks.NewMockStorageProvider(domain.ProviderAmazonS3)
	s3.Schema = domain.ConfigSchema{Required: []string{"bucket"}}
	dropbox := mocks.NewMockStorageProvider(domain.ProviderDropbox)

	providers := available(domain.ProviderGoogleDrive, domain.ProviderAmazonS3)
	providers[domain.ProviderDropbox] = ProviderFileSettings{Availability: "coming_soon"}
	providers[domain.ProviderGoogleDrive] = ProviderFileSettings{
		Availability: "fully_available",
		Settings:     map[string]string{"client_id": "id"},
	}
	providers[domain.ProviderAmazonS3] = ProviderFileSettings{
		Availability: "fully_available",
		Settings:     map[string]string{"bucket": "b"},
	}

	reg := newTestRegistry(t, drive, s3, dropbox)
	settings := mocks.NewMockProviderSettingsStore()
	config := NewConfigurationService(reg, settings, nil, ConfigurationOptions{
		Providers:       providers,
		DefaultProvider: domain.ProviderGoogleDrive,
		Environ:         fixedEnv(),
		Logger:          discardLogger(),
	}).(*configurationService)
	prefs := mocks.NewMockPreferenceStore()
	manager := NewStorageManager(reg, config, prefs, discardLogger()).(*storageManager)

	return &managerFixture{
		drive: drive, s3: s3, dropbox: dropbox,
		prefs: prefs, settings: settings, config: config, manager: manager,
	}
}

// sibling builds a manager the way another process would: its own
// configuration service and cache over the same settings store.
func (f *managerFixture) sibling(t *testing.T) (*configurationService, *storageManager) {
	t.Helper()
	reg := newTestRegistry(t, f.drive, f.s3, f.dropbox)
	config := NewConfigurationService(reg, f.settings, nil, f.config.opts).(*configurationService)
	manager := NewStorageManager(reg, config, f.prefs, discardLogger()).(*storageManager)
	return config, manager
}

func TestStorageManager_GetAvailableProviders(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	assert.Equal(t, []domain.ProviderName{domain.ProviderAmazonS3, domain.ProviderGoogleDrive}, f.manager.GetAvailableProviders(ctx))
	assert.True(t, f.manager.IsValidProviderSelection(ctx, domain.ProviderAmazonS3))
	assert.False(t, f.manager.IsValidProviderSelection(ctx, domain.ProviderDropbox))
	assert.False(t, f.manager.IsValidProviderSelection(ctx, "box"))

	descs := f.manager.DescribeAvailable(ctx)
	require.Len(t, descs, 2)
	assert.Equal(t, domain.ProviderAmazonS3, descs[0].Name)
	assert.Equal(t, "Google Drive", descs[1].DisplayName)
}

func TestStorageManager_GetProvider(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	p1, err := f.manager.GetProvider(ctx, domain.ProviderAmazonS3)
	require.NoError(t, err)
	p2, err := f.manager.GetProvider(ctx, domain.ProviderAmazonS3)
	require.NoError(t, err)

	assert.Same(t, p1, p2, "instances are cached per provider")
	require.NotNil(t, f.s3.Config)
	assert.Equal(t, "b", f.s3.Config.Get("bucket"))
}

func TestStorageManager_GetProvider_Errors(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	_, err := f.manager.GetProvider(ctx, "box")
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)

	_, err = f.manager.GetProvider(ctx, domain.ProviderDropbox)
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)

	f.config.opts.Providers[domain.ProviderAmazonS3] = ProviderFileSettings{Availability: "fully_available"}
	_, err = f.manager.GetProvider(ctx, domain.ProviderAmazonS3)
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.ErrorIs(t, err, domain.ErrProviderNotConfigured)
}

func TestStorageManager_GetProvider_InitializeFailure(t *testing.T) {
	f := newManagerFixture(t)
	f.s3.InitializeFn = func(cfg *domain.ProviderConfig) error { return errors.New("bad region") }

	_, err := f.manager.GetProvider(context.Background(), domain.ProviderAmazonS3)
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
}

func TestStorageManager_GetProvider_Concurrent(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]driven.StorageProvider, 20)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = f.manager.GetProvider(ctx, domain.ProviderAmazonS3)
		}(i)
	}
	wg.Wait()

	for _, p := range results {
		assert.Same(t, results[0], p)
	}
	assert.Len(t, f.manager.instances, 1)
}

func TestStorageManager_UserProvider(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	// No preference resolves to the default
	assert.Equal(t, domain.ProviderGoogleDrive, f.manager.UserProviderName(ctx, "user-1"))

	require.NoError(t, f.manager.SwitchUserProvider(ctx, "user-1", domain.ProviderAmazonS3))
	p, err := f.manager.GetUserProvider(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderAmazonS3, p.Name())

	// A preference that is no longer available falls back to the default
	f.config.opts.Providers[domain.ProviderAmazonS3] = ProviderFileSettings{Availability: "disabled"}
	assert.Equal(t, domain.ProviderGoogleDrive, f.manager.UserProviderName(ctx, "user-1"))
	p, err = f.manager.GetUserProvider(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderGoogleDrive, p.Name())
}

func TestStorageManager_GetUserProvider_FallsBackOnResolveFailure(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()
	f.s3.InitializeFn = func(cfg *domain.ProviderConfig) error { return errors.New("broken") }

	require.NoError(t, f.manager.SwitchUserProvider(ctx, "user-1", domain.ProviderAmazonS3))

	p, err := f.manager.GetUserProvider(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderGoogleDrive, p.Name())
}

func TestStorageManager_SwitchUserProvider_Invalid(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	err := f.manager.SwitchUserProvider(ctx, "user-1", domain.ProviderDropbox)
	assert.ErrorIs(t, err, domain.ErrInvalidSelection)

	_, err = f.prefs.Get(ctx, "user-1")
	assert.ErrorIs(t, err, domain.ErrNotFound, "invalid selections are not stored")
}

func TestStorageManager_SwitchUserProvider_KeepsCreatedAt(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	require.NoError(t, f.manager.SwitchUserProvider(ctx, "user-1", domain.ProviderAmazonS3))
	first, _ := f.prefs.Get(ctx, "user-1")

	require.NoError(t, f.manager.SwitchUserProvider(ctx, "user-1", domain.ProviderGoogleDrive))
	second, _ := f.prefs.Get(ctx, "user-1")

	assert.Equal(t, domain.ProviderGoogleDrive, second.Provider)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
}

func TestStorageManager_ReloadAndClose(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	_, err := f.manager.GetProvider(ctx, domain.ProviderAmazonS3)
	require.NoError(t, err)
	_, err = f.manager.GetProvider(ctx, domain.ProviderGoogleDrive)
	require.NoError(t, err)

	f.manager.Reload(domain.ProviderAmazonS3)
	assert.Equal(t, 1, f.s3.CleanupCalls)
	assert.NotContains(t, f.manager.instances, domain.ProviderAmazonS3)

	require.NoError(t, f.manager.Close())
	assert.Equal(t, 1, f.drive.CleanupCalls)
	assert.Empty(t, f.manager.instances)
}

func TestStorageManager_GetProvider_PicksUpSettingsSavedElsewhere(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()
	apiConfig, apiManager := f.sibling(t)

	worker, err := f.manager.GetProvider(ctx, domain.ProviderAmazonS3)
	require.NoError(t, err)
	assert.Equal(t, "b", f.s3.Config.Get("bucket"))

	_, err = apiConfig.SaveProviderSettings(ctx, domain.ProviderAmazonS3, map[string]string{"bucket": "rotated"})
	require.NoError(t, err)
	apiManager.Reload(domain.ProviderAmazonS3)

	// Within the recheck interval the cached instance is served as is
	again, err := f.manager.GetProvider(ctx, domain.ProviderAmazonS3)
	require.NoError(t, err)
	assert.Same(t, worker, again)
	assert.Equal(t, "b", f.s3.Config.Get("bucket"))

	now := time.Now()
	f.manager.now = func() time.Time { return now.Add(settingsRecheck) }
	_, err = f.manager.GetProvider(ctx, domain.ProviderAmazonS3)
	require.NoError(t, err)
	assert.Equal(t, "rotated", f.s3.Config.Get("bucket"))
	assert.Equal(t, 1, f.s3.CleanupCalls)

	// Unchanged settings keep the instance
	f.manager.now = func() time.Time { return now.Add(3 * settingsRecheck) }
	_, err = f.manager.GetProvider(ctx, domain.ProviderAmazonS3)
	require.NoError(t, err)
	assert.Equal(t, 1, f.s3.CleanupCalls)
}

func TestStorageManager_Describe(t *testing.T) {
	f := newManagerFixture(t)

	desc, err := f.manager.Describe(domain.ProviderDropbox)
	require.NoError(t, err)
	assert.Equal(t, domain.ProviderDropbox, desc.Name)

	_, err = f.manager.Describe("box")
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)
}
