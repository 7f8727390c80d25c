package middleware

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/parley/pkg/domain"
)

func testKey(b byte) []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = b
	}
	return key
}

func TestEncryption_RoundTrip(t *testing.T) {
	backend := newMockStore()
	store := NewEncryptionMiddleware(EncryptionConfig{ActiveKey: testKey(1)})(backend)

	state := domain.NewConversationState("conv-1")
	state.ActiveDomain = "commerce"
	state.Append(domain.RoleUser, "my card is 4111")
	state.Retrieved["order_id"] = "A-42"

	require.NoError(t, store.Save(context.Background(), "conv-1", state))

	// The backend must only ever see the opaque envelope.
	raw, err := backend.Load(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Empty(t, raw.Messages)
	assert.Empty(t, raw.ActiveDomain)
	assert.Contains(t, raw.Retrieved, "__encrypted__")

	loaded, err := store.Load(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "commerce", loaded.ActiveDomain)
	require.Len(t, loaded.Messages, 1)
	assert.Equal(t, "my card is 4111", loaded.Messages[0].Content)
	assert.Equal(t, "A-42", loaded.Retrieved["order_id"])
}

func TestEncryption_KeyRotation(t *testing.T) {
	backend := newMockStore()
	oldKey := testKey(1)
	newKey := testKey(2)

	// Write with the old key.
	oldStore := NewEncryptionMiddleware(EncryptionConfig{ActiveKey: oldKey})(backend)
	state := domain.NewConversationState("conv-rotate")
	state.ActiveDomain = "credit"
	require.NoError(t, oldStore.Save(context.Background(), "conv-rotate", state))

	// Read back after rotating, with the old key as fallback.
	rotated := NewEncryptionMiddleware(EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(backend)

	loaded, err := rotated.Load(context.Background(), "conv-rotate")
	require.NoError(t, err)
	assert.Equal(t, "credit", loaded.ActiveDomain)
}

func TestEncryption_WrongKeyFails(t *testing.T) {
	backend := newMockStore()
	writer := NewEncryptionMiddleware(EncryptionConfig{ActiveKey: testKey(1)})(backend)
	require.NoError(t, writer.Save(context.Background(), "conv-x", domain.NewConversationState("conv-x")))

	reader := NewEncryptionMiddleware(EncryptionConfig{ActiveKey: testKey(9)})(backend)
	_, err := reader.Load(context.Background(), "conv-x")
	assert.ErrorContains(t, err, "decrypt")
}

func TestEncryption_RejectsPlainRecord(t *testing.T) {
	backend := newMockStore()
	// Simulate a record written before encryption was enabled.
	require.NoError(t, backend.Save(context.Background(), "conv-plain", domain.NewConversationState("conv-plain")))

	store := NewEncryptionMiddleware(EncryptionConfig{ActiveKey: testKey(1)})(backend)
	_, err := store.Load(context.Background(), "conv-plain")
	assert.ErrorContains(t, err, "envelope")
}

func TestEncryption_BadKeyLengthPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewEncryptionMiddleware(EncryptionConfig{ActiveKey: []byte("short")})
	})
}
