package ports

import (
	"context"
	"time"
)

// KV is the persistence adapter behind the scoped variable store.
// Implementations must be safe for concurrent use; each call is
// independently atomic at the key level. No cross-key transactions are
// provided or required.
type KV interface {
	// Get retrieves a value. Returns domain.ErrKeyNotFound when absent
	// or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value. A zero ttl means no expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys returns all live keys with the given prefix. Used by the
	// variable store to materialize a scope for condition evaluation.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
