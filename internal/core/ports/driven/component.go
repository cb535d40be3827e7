package driven

import "context"

// HealthChecker is an infrastructure dependency reported by system health checks.
type HealthChecker interface {
	// Ping returns nil when the dependency is reachable
	Ping(ctx context.Context) error
}
