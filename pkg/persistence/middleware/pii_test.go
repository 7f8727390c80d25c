package middleware

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/parley/pkg/domain"
)

func TestPII_MasksRetrievedKeys(t *testing.T) {
	backend := newMockStore()
	store := NewPIIMiddleware(PIIConfig{
		KeyPatterns: []string{"(?i)card", "ssn"},
	})(backend)

	state := domain.NewConversationState("conv-1")
	state.Retrieved["card_number"] = "4111-1111-1111-1111"
	state.Retrieved["order_id"] = "A-42"
	state.Retrieved["customer"] = map[string]any{"ssn": "123-45-6789", "name": "Pat"}

	require.NoError(t, store.Save(context.Background(), "conv-1", state))

	persisted, err := backend.Load(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "***", persisted.Retrieved["card_number"])
	assert.Equal(t, "A-42", persisted.Retrieved["order_id"])

	nested := persisted.Retrieved["customer"].(map[string]any)
	assert.Equal(t, "***", nested["ssn"])
	assert.Equal(t, "Pat", nested["name"])

	// The engine's copy must stay intact.
	assert.Equal(t, "4111-1111-1111-1111", state.Retrieved["card_number"])
	assert.Equal(t, "123-45-6789", state.Retrieved["customer"].(map[string]any)["ssn"])
}

func TestPII_ScrubsMessageContent(t *testing.T) {
	backend := newMockStore()
	store := NewPIIMiddleware(PIIConfig{
		ValuePatterns: []string{`\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b`},
	})(backend)

	state := domain.NewConversationState("conv-2")
	state.Append(domain.RoleUser, "charge card 4111 1111 1111 1111 please")
	state.Append(domain.RoleAssistant, "done")

	require.NoError(t, store.Save(context.Background(), "conv-2", state))

	persisted, err := backend.Load(context.Background(), "conv-2")
	require.NoError(t, err)
	assert.Equal(t, "charge card *** please", persisted.Messages[0].Content)
	assert.Equal(t, "done", persisted.Messages[1].Content)
	assert.Equal(t, "charge card 4111 1111 1111 1111 please", state.Messages[0].Content)
}

func TestPII_ChainsWithEncryption(t *testing.T) {
	backend := newMockStore()
	var store = NewEncryptionMiddleware(EncryptionConfig{ActiveKey: testKey(3)})(backend)
	store = NewPIIMiddleware(PIIConfig{KeyPatterns: []string{"token"}})(store)

	state := domain.NewConversationState("conv-3")
	state.Retrieved["api_token"] = "secret"

	require.NoError(t, store.Save(context.Background(), "conv-3", state))

	loaded, err := store.Load(context.Background(), "conv-3")
	require.NoError(t, err)
	assert.Equal(t, "***", loaded.Retrieved["api_token"])
}
