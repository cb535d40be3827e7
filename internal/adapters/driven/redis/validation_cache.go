package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven"
)

// Ensure ValidationCache implements the interface
var _ driven.ValidationCache = (*ValidationCache)(nil)

const validationPrefix = keyPrefix + "validation:"

// ValidationCache keeps recent configuration validation results as JSON with a TTL.
type ValidationCache struct {
	client redis.UniversalClient
}

// NewValidationCache creates a new Redis-backed validation cache.
func NewValidationCache(client redis.UniversalClient) *ValidationCache {
	return &ValidationCache{client: client}
}

func validationKey(provider domain.ProviderName) string {
	return validationPrefix + string(provider)
}

// Get returns nil, nil on a miss.
func (c *ValidationCache) Get(ctx context.Context, provider domain.ProviderName) (*domain.ValidationResult, error) {
	data, err := c.client.Get(ctx, validationKey(provider)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get validation result: %w", err)
	}

	var result domain.ValidationResult
	if err := json.Unmarshal(data, &result); err != nil {
		// Unreadable entries are treated as a miss and dropped
		c.client.Del(ctx, validationKey(provider))
		return nil, nil
	}
	return &result, nil
}

// Set stores a result for ttl.
func (c *ValidationCache) Set(ctx context.Context, provider domain.ProviderName, result *domain.ValidationResult, ttl time.Duration) error {
	if result == nil {
		return c.Invalidate(ctx, provider)
	}
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal validation result: %w", err)
	}
	if err := c.client.Set(ctx, validationKey(provider), data, ttl).Err(); err != nil {
		return fmt.Errorf("set validation result: %w", err)
	}
	return nil
}

// Invalidate drops the cached result.
func (c *ValidationCache) Invalidate(ctx context.Context, provider domain.ProviderName) error {
	if err := c.client.Del(ctx, validationKey(provider)).Err(); err != nil {
		return fmt.Errorf("invalidate validation result: %w", err)
	}
	return nil
}

// Ping checks if Redis is reachable.
func (c *ValidationCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
