package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

type piiMiddleware struct {
	keyPatterns   []*regexp.Regexp
	valuePatterns []*regexp.Regexp
	next          ports.StateStore
}

// PIIConfig controls what gets masked before a state is persisted.
type PIIConfig struct {
	// KeyPatterns match keys in the retrieved-data map. Matching keys
	// have their values replaced with "***".
	KeyPatterns []string

	// ValuePatterns match substrings inside message content (card
	// numbers, emails). Matches are replaced with "***".
	ValuePatterns []string
}

// NewPIIMiddleware creates a middleware that masks sensitive data before
// it reaches the underlying store. The in-memory state the executor works
// with is left untouched.
func NewPIIMiddleware(cfg PIIConfig) Middleware {
	m := &piiMiddleware{}
	for _, p := range cfg.KeyPatterns {
		m.keyPatterns = append(m.keyPatterns, regexp.MustCompile(p))
	}
	for _, p := range cfg.ValuePatterns {
		m.valuePatterns = append(m.valuePatterns, regexp.MustCompile(p))
	}
	return func(next ports.StateStore) ports.StateStore {
		clone := *m
		clone.next = next
		return &clone
	}
}

func (m *piiMiddleware) Save(ctx context.Context, conversationID string, state *domain.ConversationState) error {
	// Clone so masking never leaks into the state used by the engine.
	// Retrieved needs a deep copy since masking recurses into nested maps.
	masked := state.Clone()
	masked.Retrieved = deepCopyMap(state.Retrieved)

	maskMap(masked.Retrieved, m.keyPatterns)

	for i := range masked.Messages {
		for _, p := range m.valuePatterns {
			masked.Messages[i].Content = p.ReplaceAllString(masked.Messages[i].Content, "***")
		}
	}

	return m.next.Save(ctx, conversationID, masked)
}

func (m *piiMiddleware) Load(ctx context.Context, conversationID string) (*domain.ConversationState, error) {
	return m.next.Load(ctx, conversationID)
}

func (m *piiMiddleware) Delete(ctx context.Context, conversationID string) error {
	return m.next.Delete(ctx, conversationID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

func maskMap(m map[string]any, patterns []*regexp.Regexp) {
	for k, v := range m {
		for _, p := range patterns {
			if p.MatchString(k) {
				m[k] = "***"
				break
			}
		}

		// Recurse if map
		if subMap, ok := v.(map[string]any); ok {
			maskMap(subMap, patterns)
		}
	}
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if subMap, ok := v.(map[string]any); ok {
			out[k] = deepCopyMap(subMap)
		} else {
			out[k] = v
		}
	}
	return out
}
