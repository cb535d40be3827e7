package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driving"
)

// Ensure storageManager implements StorageManager
var _ driving.StorageManager = (*storageManager)(nil)

// settingsRecheck is how often a cached instance compares its settings with
// the merged config. Admin saves land in the database, so another process
// (API vs worker) picks them up within this interval.
const settingsRecheck = 30 * time.Second

// storageManager resolves providers through the factory and caches one
// initialized instance per provider name.
type storageManager struct {
	factory driven.ProviderFactory
	config  driving.ConfigurationService
	prefs   driven.PreferenceStore
	logger  *slog.Logger
	recheck time.Duration
	now     func() time.Time

	mu        sync.RWMutex
	instances map[domain.ProviderName]*cachedProvider
}

type cachedProvider struct {
	provider    driven.StorageProvider
	fingerprint string
	checkedAt   time.Time
}

// NewStorageManager creates a new StorageManager.
func NewStorageManager(
	factory driven.ProviderFactory,
	config driving.ConfigurationService,
	prefs driven.PreferenceStore,
	logger *slog.Logger,
) driving.StorageManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &storageManager{
		factory:   factory,
		config:    config,
		prefs:     prefs,
		logger:    logger,
		recheck:   settingsRecheck,
		now:       time.Now,
		instances: make(map[domain.ProviderName]*cachedProvider),
	}
}

// GetAvailableProviders returns registered, fully available providers, sorted.
func (m *storageManager) GetAvailableProviders(ctx context.Context) []domain.ProviderName {
	var out []domain.ProviderName
	for _, name := range m.factory.Names() {
		if m.config.Availability(name) == domain.AvailabilityFullyAvailable {
			out = append(out, name)
		}
	}
	return out
}

// IsValidProviderSelection reports whether a user may select the provider.
func (m *storageManager) IsValidProviderSelection(ctx context.Context, name domain.ProviderName) bool {
	if _, err := m.factory.Descriptor(name); err != nil {
		return false
	}
	return m.config.Availability(name) == domain.AvailabilityFullyAvailable
}

// GetProvider returns a cached, initialized instance. The instance is
// re-created when its merged settings changed since it was initialized.
func (m *storageManager) GetProvider(ctx context.Context, name domain.ProviderName) (driven.StorageProvider, error) {
	if _, err := m.factory.Descriptor(name); err != nil {
		return nil, err
	}
	if availability := m.config.Availability(name); availability != domain.AvailabilityFullyAvailable {
		return nil, fmt.Errorf("%w: %s is %s", domain.ErrProviderUnavailable, name, availability)
	}

	m.mu.RLock()
	entry, ok := m.instances[name]
	fresh := ok && m.now().Sub(entry.checkedAt) < m.recheck
	m.mu.RUnlock()
	if fresh {
		return entry.provider, nil
	}

	if !m.config.IsProviderConfigured(ctx, name) {
		m.evict(name, "provider no longer configured")
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrProviderUnavailable, name, domain.ErrProviderNotConfigured)
	}
	cfg, err := m.config.GetProviderConfig(ctx, name)
	if err != nil {
		return nil, err
	}
	fingerprint := cfg.Fingerprint()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Check again in case another goroutine created it
	if entry, ok := m.instances[name]; ok {
		if entry.fingerprint == fingerprint {
			entry.checkedAt = m.now()
			return entry.provider, nil
		}
		delete(m.instances, name)
		m.cleanup(name, entry.provider)
		m.logger.Info("provider settings changed, reinitializing", "provider", name)
	}

	provider, err := m.factory.Create(ctx, name, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrProviderUnavailable, err)
	}

	m.instances[name] = &cachedProvider{provider: provider, fingerprint: fingerprint, checkedAt: m.now()}
	m.logger.Info("storage provider initialized", "provider", name)
	return provider, nil
}

// GetUserProvider returns the user's preferred provider, falling back to the default.
func (m *storageManager) GetUserProvider(ctx context.Context, userID string) (driven.StorageProvider, error) {
	name := m.UserProviderName(ctx, userID)
	provider, err := m.GetProvider(ctx, name)
	if err == nil || name == m.DefaultProviderName() {
		return provider, err
	}

	m.logger.Warn("preferred provider unavailable, using default",
		"user_id", userID, "provider", name, "error", err)
	return m.GetDefaultProvider(ctx)
}

// GetDefaultProvider returns the system default provider.
func (m *storageManager) GetDefaultProvider(ctx context.Context) (driven.StorageProvider, error) {
	return m.GetProvider(ctx, m.DefaultProviderName())
}

// SwitchUserProvider stores the user's choice.
func (m *storageManager) SwitchUserProvider(ctx context.Context, userID string, name domain.ProviderName) error {
	if !m.IsValidProviderSelection(ctx, name) {
		return fmt.Errorf("%w: %s", domain.ErrInvalidSelection, name)
	}

	now := time.Now()
	pref := &domain.UserProviderPreference{
		UserID:    userID,
		Provider:  name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if existing, err := m.prefs.Get(ctx, userID); err == nil {
		pref.CreatedAt = existing.CreatedAt
	} else if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("load provider preference: %w", err)
	}

	if err := m.prefs.Save(ctx, pref); err != nil {
		return fmt.Errorf("save provider preference: %w", err)
	}
	m.logger.Info("user switched storage provider", "user_id", userID, "provider", name)
	return nil
}

// UserProviderName returns the stored preference when it is still selectable.
func (m *storageManager) UserProviderName(ctx context.Context, userID string) domain.ProviderName {
	pref, err := m.prefs.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			m.logger.Warn("failed to load provider preference", "user_id", userID, "error", err)
		}
		return m.DefaultProviderName()
	}
	if !m.IsValidProviderSelection(ctx, pref.Provider) {
		return m.DefaultProviderName()
	}
	return pref.Provider
}

// DefaultProviderName returns the configured default provider.
func (m *storageManager) DefaultProviderName() domain.ProviderName {
	return m.config.DefaultProviderName()
}

// Describe returns the descriptor of a registered provider.
func (m *storageManager) Describe(name domain.ProviderName) (*domain.ProviderDescriptor, error) {
	return m.factory.Descriptor(name)
}

// DescribeAvailable returns descriptors of the available providers.
func (m *storageManager) DescribeAvailable(ctx context.Context) []*domain.ProviderDescriptor {
	names := m.GetAvailableProviders(ctx)
	out := make([]*domain.ProviderDescriptor, 0, len(names))
	for _, name := range names {
		desc, err := m.factory.Descriptor(name)
		if err != nil {
			continue
		}
		out = append(out, desc)
	}
	return out
}

// Reload drops the cached instance of a provider.
func (m *storageManager) Reload(name domain.ProviderName) {
	m.evict(name, "reload")
}

func (m *storageManager) evict(name domain.ProviderName, reason string) {
	m.mu.Lock()
	entry, ok := m.instances[name]
	delete(m.instances, name)
	m.mu.Unlock()

	if ok {
		m.logger.Debug("provider instance dropped", "provider", name, "reason", reason)
		m.cleanup(name, entry.provider)
	}
}

func (m *storageManager) cleanup(name domain.ProviderName, provider driven.StorageProvider) {
	if err := provider.Cleanup(); err != nil {
		m.logger.Warn("provider cleanup failed", "provider", name, "error", err)
	}
}

// Close cleans up every cached instance.
func (m *storageManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for name, entry := range m.instances {
		if err := entry.provider.Cleanup(); err != nil {
			errs = append(errs, fmt.Errorf("cleanup %s: %w", name, err))
		}
	}
	clear(m.instances)
	return errors.Join(errs...)
}
