package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aretw0/parley/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// KV implements ports.KV on Redis, relying on native key TTLs for
// variable expiry.
type KV struct {
	client *backend.Client
	prefix string
}

// KVOption configures the KV adapter.
type KVOption func(*KV)

// WithKVPrefix sets the key prefix (default "parley:kv:").
func WithKVPrefix(prefix string) KVOption {
	return func(k *KV) {
		k.prefix = prefix
	}
}

// NewKV creates a Redis KV adapter from connection parameters.
func NewKV(address, password string, db int, opts ...KVOption) *KV {
	client := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewKVFromClient(client, opts...)
}

// NewKVFromClient creates a Redis KV adapter from an existing client.
func NewKVFromClient(client *backend.Client, opts ...KVOption) *KV {
	kv := &KV{
		client: client,
		prefix: "parley:kv:",
	}
	for _, opt := range opts {
		opt(kv)
	}
	return kv
}

// Get retrieves a value.
func (k *KV) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := k.client.Get(ctx, k.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}
	return val, nil
}

// Set stores a value. A zero ttl stores without expiration.
func (k *KV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := k.client.Set(ctx, k.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set in redis: %w", err)
	}
	return nil
}

// Delete removes a key.
func (k *KV) Delete(ctx context.Context, key string) error {
	if err := k.client.Del(ctx, k.prefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete from redis: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (k *KV) Close() error {
	return k.client.Close()
}

// Keys returns live keys with the given prefix using SCAN.
func (k *KV) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := k.client.Scan(ctx, 0, k.prefix+prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), k.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan redis keys: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}
