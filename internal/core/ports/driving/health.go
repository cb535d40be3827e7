package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/cloudrelay/internal/core/domain"
	"github.com/custodia-labs/cloudrelay/internal/core/ports/driven"
)

// HealthService tracks the health of user connections to storage providers.
type HealthService interface {
	// CheckConnectionHealth runs a live check and persists the result.
	// Only domain.ErrProviderNotFound is returned as an error; every other
	// failure is recorded in the returned status.
	CheckConnectionHealth(ctx context.Context, userID string, name domain.ProviderName) (*domain.HealthStatus, error)

	// GetHealthSummary builds a summary from stored data only.
	GetHealthSummary(ctx context.Context, userID string, name domain.ProviderName) (*domain.HealthSummary, error)

	// GetAllProvidersHealth returns one summary per available provider.
	GetAllProvidersHealth(ctx context.Context, userID string) []*domain.HealthSummary

	// RecordOperationSuccess marks the connection healthy after a real operation.
	// cred is the credential the operation used, nil for non-OAuth providers.
	RecordOperationSuccess(ctx context.Context, userID string, name domain.ProviderName, cred *domain.ConnectionCredential)

	// RecordOperationFailure records a failed real operation.
	RecordOperationFailure(ctx context.Context, userID string, name domain.ProviderName, err error)

	// SystemHealth pings infrastructure. detailed adds queue and file statistics.
	SystemHealth(ctx context.Context, detailed bool) *SystemHealthReport
}

// ComponentCheck is the result of pinging one infrastructure component.
// @Description Infrastructure component check
type ComponentCheck struct {
	Status    string `json:"status" example:"ok"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// SystemHealthReport aggregates component checks.
type SystemHealthReport struct {
	Healthy   bool                        `json:"healthy"`
	CheckedAt time.Time                   `json:"checked_at"`
	Checks    map[string]ComponentCheck   `json:"checks"`
	Queue     *driven.QueueStats          `json:"queue,omitempty"`
	Files     map[domain.FileStatus]int64 `json:"files,omitempty"`
}
