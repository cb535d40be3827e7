package services

import (
	"io"
	"log/slog"
	"testing"

	"github.com/custodia-labs/cloudrelay/internal/adapters/driven/storage"
	"github.com/custodia-labs/cloudrelay/internal/core/domain"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestRegistry registers each provider under its own name.
// The constructor returns the same instance so tests can inspect it.
func newTestRegistry(t *testing.T, providers ...driven.StorageProvider) *storage.Registry {
	t.Helper()
	reg := storage.NewRegistry(discardLogger())
	for _, p := range providers {
		require.NoError(t, reg.Register(p.Name(), func() any { return p }))
	}
	return reg
}

func fixedEnv(kv ...string) func() []string {
	return func() []string { return kv }
}

// available marks every name fully available with no file settings.
func available(names ...domain.ProviderName) map[domain.ProviderName]ProviderFileSettings {
	out := make(map[domain.ProviderName]ProviderFileSettings, len(names))
	for _, name := range names {
		out[name] = ProviderFileSettings{Availability: string(domain.AvailabilityFullyAvailable)}
	}
	return out
}
