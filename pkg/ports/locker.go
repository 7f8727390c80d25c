package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker coordinates turn processing across replicas. Turns
// for the same conversation ID must be serialized; the session manager
// uses this interface to extend its in-process locks across instances.
type DistributedLocker interface {
	// Lock acquires a lock for the given key (the conversation ID).
	// It blocks until the lock is acquired or the context is canceled.
	// The returned UnlockFunc MUST be called to release the lock.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
