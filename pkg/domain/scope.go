package domain

// Scope is the lifetime/visibility tier of a variable.
type Scope string

const (
	// ScopeWorkflow lives for a single executor run and is never
	// flushed to the durable backend.
	ScopeWorkflow Scope = "workflow"
	// ScopeConversation persists across turns of one conversation.
	ScopeConversation Scope = "conversation"
	// ScopeUser persists across conversations of one user.
	ScopeUser Scope = "user"
	// ScopeBot is global to the assistant installation.
	ScopeBot Scope = "bot"
)

// ScopeCascade is the fixed resolution order: a lookup returns the value
// from the narrowest scope that has it.
var ScopeCascade = []Scope{ScopeWorkflow, ScopeConversation, ScopeUser, ScopeBot}

// Valid reports whether s names a known scope.
func (s Scope) Valid() bool {
	switch s {
	case ScopeWorkflow, ScopeConversation, ScopeUser, ScopeBot:
		return true
	}
	return false
}
