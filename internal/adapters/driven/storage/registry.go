package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ProviderFactory = (*Registry)(nil)

type registration struct {
	constructor driven.ProviderConstructor
	descriptor  domain.ProviderDescriptor
	schema      domain.ConfigSchema
}

// Registry maps provider names to constructors.
// Descriptors and schemas are captured once, when a constructor is registered.
type Registry struct {
	mu        sync.RWMutex
	providers map[domain.ProviderName]registration
	logger    *slog.Logger
}

// NewRegistry creates an empty provider registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		providers: make(map[domain.ProviderName]registration),
		logger:    logger,
	}
}

// Register adds or replaces the constructor for name.
func (r *Registry) Register(name domain.ProviderName, constructor driven.ProviderConstructor) error {
	reg, ok := probe(constructor)
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrInvalidProvider, name)
	}
	// The registered name wins over whatever the instance reports
	reg.descriptor.Name = name

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[name]; exists {
		r.logger.Warn("replacing registered storage provider", "provider", name)
	}
	r.providers[name] = reg
	return nil
}

// ValidateProvider reports whether constructor produces a usable provider.
// It never panics.
func (r *Registry) ValidateProvider(constructor driven.ProviderConstructor) bool {
	_, ok := probe(constructor)
	return ok
}

// DiscoverProviders registers the constructors offered by each source.
// Failing sources and invalid constructors are logged and skipped.
// Returns the names that were registered.
func (r *Registry) DiscoverProviders(ctx context.Context, sources ...driven.DiscoverySource) []domain.ProviderName {
	var registered []domain.ProviderName

	for _, source := range sources {
		found, err := discover(ctx, source)
		if err != nil {
			r.logger.Warn("provider discovery source failed", "source", source.Name(), "error", err)
			continue
		}

		names := slices.Sorted(maps.Keys(found))
		for _, name := range names {
			if err := r.Register(name, found[name]); err != nil {
				r.logger.Warn("skipping invalid storage provider", "source", source.Name(), "provider", name, "error", err)
				continue
			}
			registered = append(registered, name)
		}
	}

	r.logger.Info("storage providers discovered", "count", len(registered), "providers", registered)
	return registered
}

// GetRegisteredProviders returns a copy of the name to constructor map.
func (r *Registry) GetRegisteredProviders() map[domain.ProviderName]driven.ProviderConstructor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[domain.ProviderName]driven.ProviderConstructor, len(r.providers))
	for name, reg := range r.providers {
		out[name] = reg.constructor
	}
	return out
}

// Names returns registered provider names, sorted.
func (r *Registry) Names() []domain.ProviderName {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.providers))
}

// Descriptor returns the descriptor captured at registration.
func (r *Registry) Descriptor(name domain.ProviderName) (*domain.ProviderDescriptor, error) {
	reg, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	d := reg.descriptor
	d.Capabilities = slices.Clone(d.Capabilities)
	d.SupportedFileTypes = slices.Clone(d.SupportedFileTypes)
	return &d, nil
}

// Schema returns the configuration schema captured at registration.
func (r *Registry) Schema(name domain.ProviderName) (domain.ConfigSchema, error) {
	reg, err := r.lookup(name)
	if err != nil {
		return domain.ConfigSchema{}, err
	}
	return reg.schema, nil
}

// New returns a fresh, uninitialized instance.
func (r *Registry) New(name domain.ProviderName) (driven.StorageProvider, error) {
	reg, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	provider, err := instantiate(reg.constructor)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidProvider, name, err)
	}
	return provider, nil
}

// Create returns an instance initialized with cfg.
func (r *Registry) Create(ctx context.Context, name domain.ProviderName, cfg *domain.ProviderConfig) (driven.StorageProvider, error) {
	provider, err := r.New(name)
	if err != nil {
		return nil, err
	}
	if err := provider.Initialize(ctx, cfg); err != nil {
		return nil, fmt.Errorf("initialize %s: %w", name, err)
	}
	return provider, nil
}

func (r *Registry) lookup(name domain.ProviderName) (registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.providers[name]
	if !ok {
		return registration{}, fmt.Errorf("%w: %s", domain.ErrProviderNotFound, name)
	}
	return reg, nil
}

// probe instantiates constructor once and captures its descriptor.
// Any panic, nil result or contract mismatch makes the constructor invalid.
func probe(constructor driven.ProviderConstructor) (reg registration, ok bool) {
	defer func() {
		if recover() != nil {
			reg, ok = registration{}, false
		}
	}()

	provider, err := instantiate(constructor)
	if err != nil {
		return registration{}, false
	}
	return registration{
		constructor: constructor,
		descriptor:  describe(provider),
		schema:      provider.ConfigSchema(),
	}, true
}

func instantiate(constructor driven.ProviderConstructor) (provider driven.StorageProvider, err error) {
	if constructor == nil {
		return nil, errors.New("nil constructor")
	}
	defer func() {
		if rec := recover(); rec != nil {
			provider, err = nil, fmt.Errorf("constructor panicked: %v", rec)
		}
	}()

	value := constructor()
	if value == nil {
		return nil, errors.New("constructor returned nil")
	}
	provider, ok := value.(driven.StorageProvider)
	if !ok {
		return nil, fmt.Errorf("%T does not implement the storage provider contract", value)
	}
	return provider, nil
}

func discover(ctx context.Context, source driven.DiscoverySource) (found map[domain.ProviderName]driven.ProviderConstructor, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("discovery panicked: %v", rec)
		}
	}()
	return source.Discover(ctx)
}

func describe(p driven.StorageProvider) domain.ProviderDescriptor {
	return domain.ProviderDescriptor{
		Name:               p.Name(),
		DisplayName:        p.DisplayName(),
		Capabilities:       slices.Clone(p.Capabilities()),
		AuthType:           p.AuthType(),
		StorageModel:       p.StorageModel(),
		MaxFileSize:        p.MaxFileSize(),
		SupportedFileTypes: slices.Clone(p.SupportedFileTypes()),
	}
}
