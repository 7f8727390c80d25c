package middleware

import (
	"context"
	"sync"

	"github.com/aretw0/parley/pkg/domain"
)

// mockStore records the last persisted state so tests can inspect what
// actually crossed the persistence boundary.
type mockStore struct {
	mu     sync.Mutex
	states map[string]*domain.ConversationState
}

func newMockStore() *mockStore {
	return &mockStore{states: make(map[string]*domain.ConversationState)}
}

func (s *mockStore) Save(_ context.Context, conversationID string, state *domain.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[conversationID] = state
	return nil
}

func (s *mockStore) Load(_ context.Context, conversationID string) (*domain.ConversationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.states[conversationID]
	if !ok {
		return nil, domain.ErrConversationNotFound
	}
	return state, nil
}

func (s *mockStore) Delete(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, conversationID)
	return nil
}

func (s *mockStore) List(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.states))
	for id := range s.states {
		ids = append(ids, id)
	}
	return ids, nil
}
