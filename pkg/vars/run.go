package vars

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/parley/pkg/domain"
)

// Run is one executor run's view of the variable store. Workflow-scoped
// variables live in the Run itself and are discarded with it; durable
// scopes delegate to the shared Store. A nested sub-workflow run gets a
// fresh Run (isolated workflow scope) over the same Store (shared
// durable scopes).
type Run struct {
	store          *Store
	conversationID string
	userID         string

	mu    sync.RWMutex
	local map[string]any
}

// NewRun opens a run-scoped view for one conversation turn. userID may
// be empty; the conversation ID then stands in as the user-scope owner.
func (s *Store) NewRun(conversationID, userID string) *Run {
	return &Run{
		store:          s,
		conversationID: conversationID,
		userID:         userID,
		local:          make(map[string]any),
	}
}

// Fork creates a sibling run with an isolated workflow scope, for
// sub-workflow invocations.
func (r *Run) Fork() *Run {
	return r.store.NewRun(r.conversationID, r.userID)
}

// ConversationID returns the owning conversation thread.
func (r *Run) ConversationID() string {
	return r.conversationID
}

// Get reads from exactly one scope.
func (r *Run) Get(ctx context.Context, scope domain.Scope, key string) (any, bool, error) {
	if scope == domain.ScopeWorkflow {
		r.mu.RLock()
		defer r.mu.RUnlock()
		v, ok := r.local[key]
		return v, ok, nil
	}
	return r.store.Get(ctx, scope, r.conversationID, r.userID, key)
}

// Set writes to exactly the named scope. Workflow-scope writes stay in
// local memory; their lifetime is the run, so the ttl argument is
// ignored for them.
func (r *Run) Set(ctx context.Context, scope domain.Scope, key string, value any, ttl time.Duration) error {
	if scope == domain.ScopeWorkflow {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.local[key] = value
		return nil
	}
	return r.store.Set(ctx, scope, r.conversationID, r.userID, key, value, ttl)
}

// Delete clears a variable from the named scope.
func (r *Run) Delete(ctx context.Context, scope domain.Scope, key string) error {
	if scope == domain.ScopeWorkflow {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.local, key)
		return nil
	}
	return r.store.Delete(ctx, scope, r.conversationID, r.userID, key)
}

// Resolve walks the scope cascade (workflow, conversation, user, bot)
// and returns the first hit. An absent key reports found=false, never an
// error.
func (r *Run) Resolve(ctx context.Context, key string) (any, bool, error) {
	for _, scope := range domain.ScopeCascade {
		v, ok, err := r.Get(ctx, scope, key)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return v, true, nil
		}
	}
	return nil, false, nil
}

// Flatten materializes the full variable namespace for condition
// evaluation: widest scope first, so narrower scopes shadow wider ones
// per the cascade order.
func (r *Run) Flatten(ctx context.Context) (map[string]any, error) {
	merged := make(map[string]any)

	for i := len(domain.ScopeCascade) - 1; i >= 1; i-- {
		values, err := r.store.scopeValues(ctx, domain.ScopeCascade[i], r.conversationID, r.userID)
		if err != nil {
			return nil, err
		}
		for k, v := range values {
			merged[k] = v
		}
	}

	r.mu.RLock()
	for k, v := range r.local {
		merged[k] = v
	}
	r.mu.RUnlock()

	return merged, nil
}
