package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryKV_Contract(t *testing.T) {
	tests.RunKVContract(t, memory.NewKV())
}

func TestMemoryStore_Contract(t *testing.T) {
	tests.RunStateStoreContract(t, memory.NewStore())
}

func TestMemoryKV_TTL_Expiration(t *testing.T) {
	kv := memory.NewKV()
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "ephemeral", []byte("x"), 10*time.Millisecond))

	val, err := kv.Get(ctx, "ephemeral")
	require.NoError(t, err)
	assert.Equal(t, "x", string(val))

	time.Sleep(20 * time.Millisecond)

	_, err = kv.Get(ctx, "ephemeral")
	assert.ErrorIs(t, err, domain.ErrKeyNotFound)
}
