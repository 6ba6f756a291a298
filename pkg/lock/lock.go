// Package lock provides mutual exclusion for singleton jobs across
// scheduler replicas.
package lock

import (
	"context"
	"time"
)

// ReleaseFunc releases a held lock. Safe to call once.
type ReleaseFunc func(ctx context.Context) error

// Locker acquires named locks with a TTL so a crashed holder cannot wedge
// the job forever.
type Locker interface {
	// Acquire attempts to take the lock without blocking. Reports whether
	// the lock was obtained; the release function is non-nil only on
	// success.
	Acquire(ctx context.Context, key string, ttl time.Duration) (ReleaseFunc, bool, error)
}
