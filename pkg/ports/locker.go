package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker coordinates run execution across multiple instances (replicas),
// so that a run id is executed by at most one worker at a time.
type DistributedLocker interface {
	// Lock acquires the lock for key (e.g., a run id), blocking until it is acquired
	// or ctx is done. The lock expires after ttl if never released.
	// The returned UnlockFunc MUST be called to release it.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}

// NopLocker grants every lock immediately. Suitable for a single instance.
type NopLocker struct{}

// Lock implements DistributedLocker.
func (NopLocker) Lock(context.Context, string, time.Duration) (UnlockFunc, error) {
	return func(context.Context) error { return nil }, nil
}
