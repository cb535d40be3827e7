package driven

import (
	"context"
	"time"
)

// DistributedLock coordinates work that must run on one instance at a time,
// such as the scheduled health sweep.
type DistributedLock interface {
	// Acquire attempts to take a named lock for ttl.
	// Returns false, nil when another instance holds it.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release is best-effort and safe to call when the lock is not held.
	Release(ctx context.Context, name string) error

	// Extend renews a held lock. Advisory-lock backends treat this as a no-op.
	Extend(ctx context.Context, name string, ttl time.Duration) error

	// Ping checks if the lock backend is healthy.
	Ping(ctx context.Context) error
}
