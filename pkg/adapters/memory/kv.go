package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/parley/pkg/domain"
)

type entry struct {
	value     []byte
	expiresAt time.Time // zero = no expiration
}

// KV implements ports.KV in process memory with lazy TTL expiry.
// Safe for concurrent use. Intended for tests and single-node setups;
// production deployments use the Redis adapter.
type KV struct {
	mu   sync.RWMutex
	data map[string]entry

	// now is swappable for TTL tests.
	now func() time.Time
}

// NewKV creates an empty in-memory KV adapter.
func NewKV() *KV {
	return &KV{
		data: make(map[string]entry),
		now:  time.Now,
	}
}

// Get retrieves a value, treating expired entries as absent.
func (k *KV) Get(ctx context.Context, key string) ([]byte, error) {
	k.mu.RLock()
	e, ok := k.data[key]
	k.mu.RUnlock()

	if !ok {
		return nil, domain.ErrKeyNotFound
	}
	if !e.expiresAt.IsZero() && k.now().After(e.expiresAt) {
		// Lazy cleanup on read.
		k.mu.Lock()
		delete(k.data, key)
		k.mu.Unlock()
		return nil, domain.ErrKeyNotFound
	}

	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Set stores a value with an optional TTL.
func (k *KV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	e := entry{value: stored}
	if ttl > 0 {
		e.expiresAt = k.now().Add(ttl)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.data[key] = e
	return nil
}

// Delete removes a key.
func (k *KV) Delete(ctx context.Context, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.data, key)
	return nil
}

// Keys returns live keys with the given prefix.
func (k *KV) Keys(ctx context.Context, prefix string) ([]string, error) {
	now := k.now()

	k.mu.RLock()
	defer k.mu.RUnlock()

	var keys []string
	for key, e := range k.data {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}
