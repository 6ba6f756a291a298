package lock

import (
	"context"
	"sync"
	"time"
)

// LocalLocker implements Locker within a single process. Used by tests and
// single-replica deployments where Redis is unavailable.
type LocalLocker struct {
	mu    sync.Mutex
	held  map[string]time.Time
	clock func() time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		held:  make(map[string]time.Time),
		clock: time.Now,
	}
}

func (l *LocalLocker) Acquire(_ context.Context, key string, ttl time.Duration) (ReleaseFunc, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()

	expiry, taken := l.held[key]
	if taken && now.Before(expiry) {
		return nil, false, nil
	}

	l.held[key] = now.Add(ttl)

	release := func(_ context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()

		delete(l.held, key)

		return nil
	}

	return release, true, nil
}
