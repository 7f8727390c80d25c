package domain

import "time"

// Message is one role-tagged entry in the turn transcript.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// RoutingRecord captures one hop through the routing graph.
type RoutingRecord struct {
	Domain    string    `json:"domain"`
	Agent     string    `json:"agent"`
	Timestamp time.Time `json:"timestamp"`
}

// ControlFlags let responders and the engine steer the turn loop.
type ControlFlags struct {
	// Reroute requests a fresh classification pass before the next node.
	Reroute bool `json:"reroute,omitempty"`

	// Terminate ends the turn after the current node's output is applied.
	Terminate bool `json:"terminate,omitempty"`

	// Error carries a turn-level failure marker (e.g. "timeout").
	// Empty means the turn ended normally.
	Error string `json:"error,omitempty"`
}

// ConversationState is the mutable unit of work for one turn.
// It is created at the first turn of a conversation, mutated node-by-node
// during one executor run, and persisted between turns by the caller.
// It must never be shared across two in-flight turns of the same
// conversation; pkg/session provides the per-conversation serialization.
type ConversationState struct {
	// ConversationID is stable per user thread.
	ConversationID string `json:"conversation_id"`

	// Messages is the append-only transcript of the current turn.
	Messages []Message `json:"messages"`

	// ActiveDomain is the business vertical currently owning the
	// conversation. Empty until the classifier has run.
	ActiveDomain string `json:"active_domain,omitempty"`

	// RoutingHistory records every node hop, oldest first.
	RoutingHistory []RoutingRecord `json:"routing_history,omitempty"`

	// Retrieved holds opaque data populated by responders (lookups,
	// search results). Merged into the variable namespace for
	// transition conditions.
	Retrieved map[string]any `json:"retrieved,omitempty"`

	// Flags steer the executor loop.
	Flags ControlFlags `json:"flags"`
}

// NewConversationState creates a clean state for a conversation thread.
func NewConversationState(conversationID string) *ConversationState {
	return &ConversationState{
		ConversationID: conversationID,
		Messages:       []Message{},
		Retrieved:      make(map[string]any),
	}
}

// Append adds a message to the transcript.
func (s *ConversationState) Append(role, content string) {
	s.Messages = append(s.Messages, Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
}

// LastAssistantMessage returns the most recent assistant reply, or "" if
// none was produced yet.
func (s *ConversationState) LastAssistantMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			return s.Messages[i].Content
		}
	}
	return ""
}

// Clone creates a copy with deep-copied maps and slices for safe mutation.
// Node effects are applied to a clone first so a failing responder never
// half-applies its output.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	next := *s
	next.Messages = make([]Message, len(s.Messages))
	copy(next.Messages, s.Messages)
	next.RoutingHistory = make([]RoutingRecord, len(s.RoutingHistory))
	copy(next.RoutingHistory, s.RoutingHistory)
	next.Retrieved = make(map[string]any, len(s.Retrieved))
	for k, v := range s.Retrieved {
		next.Retrieved[k] = v
	}
	return &next
}
