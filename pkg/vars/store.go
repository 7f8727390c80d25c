// Package vars implements the scoped variable store. Variables carry a
// scope tag (workflow, conversation, user, bot) and an optional TTL;
// lookups cascade from the narrowest scope to the widest. The workflow
// scope lives in process memory for the duration of one executor run and
// is never flushed to the backend; the durable scopes persist as JSON
// through a ports.KV adapter.
package vars

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// ErrWorkflowScopeOutsideRun is returned when workflow-scoped access is
// attempted directly on the Store (it only exists inside a Run).
var ErrWorkflowScopeOutsideRun = errors.New("workflow scope requires an executor run")

// ErrInvalidScope is returned for unknown scope tags.
var ErrInvalidScope = errors.New("invalid variable scope")

// Store is the durable half of the variable store. It is shared across
// concurrent turns; per-key atomicity comes from the backing adapter.
type Store struct {
	kv    ports.KV
	botID string
}

// Option configures the Store.
type Option func(*Store)

// WithBotID namespaces bot-scoped variables per assistant installation
// (default "default").
func WithBotID(botID string) Option {
	return func(s *Store) {
		s.botID = botID
	}
}

// NewStore creates a scoped variable store over a KV adapter.
func NewStore(kv ports.KV, opts ...Option) *Store {
	s := &Store{
		kv:    kv,
		botID: "default",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// owner resolves the key namespace for a durable scope. The user scope
// owner is the user ID when the caller has one, otherwise the
// conversation ID stands in for it.
func (s *Store) owner(scope domain.Scope, conversationID, userID string) (string, error) {
	switch scope {
	case domain.ScopeConversation:
		return conversationID, nil
	case domain.ScopeUser:
		if userID != "" {
			return userID, nil
		}
		return conversationID, nil
	case domain.ScopeBot:
		return s.botID, nil
	case domain.ScopeWorkflow:
		return "", ErrWorkflowScopeOutsideRun
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidScope, scope)
}

func storageKey(scope domain.Scope, owner, key string) string {
	return fmt.Sprintf("vars:%s:%s:%s", scope, owner, key)
}

// Get retrieves a variable from exactly one durable scope.
func (s *Store) Get(ctx context.Context, scope domain.Scope, conversationID, userID, key string) (any, bool, error) {
	owner, err := s.owner(scope, conversationID, userID)
	if err != nil {
		return nil, false, err
	}

	raw, err := s.kv.Get(ctx, storageKey(scope, owner, key))
	if err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, false, fmt.Errorf("failed to decode variable %s: %w", key, err)
	}
	return value, true, nil
}

// Set writes a variable to exactly the named durable scope. A zero ttl
// persists without expiration.
func (s *Store) Set(ctx context.Context, scope domain.Scope, conversationID, userID, key string, value any, ttl time.Duration) error {
	owner, err := s.owner(scope, conversationID, userID)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode variable %s: %w", key, err)
	}
	return s.kv.Set(ctx, storageKey(scope, owner, key), raw, ttl)
}

// Delete clears a variable from the named durable scope.
func (s *Store) Delete(ctx context.Context, scope domain.Scope, conversationID, userID, key string) error {
	owner, err := s.owner(scope, conversationID, userID)
	if err != nil {
		return err
	}
	return s.kv.Delete(ctx, storageKey(scope, owner, key))
}

// scopeValues loads every variable of one durable scope.
func (s *Store) scopeValues(ctx context.Context, scope domain.Scope, conversationID, userID string) (map[string]any, error) {
	owner, err := s.owner(scope, conversationID, userID)
	if err != nil {
		return nil, err
	}

	prefix := storageKey(scope, owner, "")
	keys, err := s.kv.Keys(ctx, prefix)
	if err != nil {
		return nil, err
	}

	values := make(map[string]any, len(keys))
	for _, full := range keys {
		name := strings.TrimPrefix(full, prefix)
		raw, err := s.kv.Get(ctx, full)
		if err != nil {
			if errors.Is(err, domain.ErrKeyNotFound) {
				continue // expired between Keys and Get
			}
			return nil, err
		}
		var value any
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, fmt.Errorf("failed to decode variable %s: %w", name, err)
		}
		values[name] = value
	}
	return values, nil
}
