package redis_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/parley/pkg/adapters/redis"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports/tests"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisKV_Contract(t *testing.T) {
	_, client := newTestClient(t)
	tests.RunKVContract(t, redis.NewKVFromClient(client))
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newTestClient(t)
	tests.RunStateStoreContract(t, redis.NewStoreFromClient(client))
}

func TestRedisKV_TTL_Expiration(t *testing.T) {
	mr, client := newTestClient(t)
	kv := redis.NewKVFromClient(client)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "session-var", []byte(`"v"`), 1*time.Second))

	val, err := kv.Get(ctx, "session-var")
	require.NoError(t, err)
	assert.Equal(t, `"v"`, string(val))

	mr.FastForward(2 * time.Second)

	_, err = kv.Get(ctx, "session-var")
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := newTestClient(t)
	store := redis.NewStoreFromClient(client, redis.WithTTL(1*time.Second))
	ctx := context.Background()

	state := domain.NewConversationState("conv-ttl")
	state.ActiveDomain = "credit"
	require.NoError(t, store.Save(ctx, "conv-ttl", state))

	loaded, err := store.Load(ctx, "conv-ttl")
	require.NoError(t, err)
	assert.Equal(t, "credit", loaded.ActiveDomain)

	mr.FastForward(2 * time.Second)

	_, err = store.Load(ctx, "conv-ttl")
	assert.ErrorIs(t, err, domain.ErrConversationNotFound)
}

func TestLocker_MutualExclusion(t *testing.T) {
	_, client := newTestClient(t)
	locker := redis.NewLocker(client, "parley:")
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "conv-1", 5*time.Second)
	require.NoError(t, err)

	// A second holder must block until release.
	var acquired sync.WaitGroup
	acquired.Add(1)
	go func() {
		defer acquired.Done()
		unlock2, err := locker.Lock(ctx, "conv-1", 5*time.Second)
		assert.NoError(t, err)
		if err == nil {
			assert.NoError(t, unlock2(ctx))
		}
	}()

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, unlock(ctx))
	acquired.Wait()
}

func TestLocker_ContextCancel(t *testing.T) {
	_, client := newTestClient(t)
	locker := redis.NewLocker(client, "parley:")

	unlock, err := locker.Lock(context.Background(), "conv-2", 5*time.Second)
	require.NoError(t, err)
	defer func() { _ = unlock(context.Background()) }()

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	_, err = locker.Lock(ctx, "conv-2", 5*time.Second)
	assert.ErrorIs(t, err, redis.ErrLockAcquire)
}
