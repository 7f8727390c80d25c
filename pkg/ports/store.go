package ports

import (
	"context"

	"github.com/aretw0/parley/pkg/domain"
)

// StateStore persists conversation state between turns, enabling
// "stop & resume" conversations across process restarts.
type StateStore interface {
	// Save persists the state for a conversation ID.
	Save(ctx context.Context, conversationID string, state *domain.ConversationState) error

	// Load retrieves the state for a conversation ID.
	// Returns domain.ErrConversationNotFound if the conversation does not exist.
	Load(ctx context.Context, conversationID string) (*domain.ConversationState, error)

	// Delete removes the state for a conversation ID.
	Delete(ctx context.Context, conversationID string) error

	// List returns the IDs of known conversations.
	List(ctx context.Context) ([]string, error)
}
