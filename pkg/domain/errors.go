package domain

import "errors"

// ErrConversationNotFound is returned when a conversation ID cannot be
// found in the state store.
var ErrConversationNotFound = errors.New("conversation not found")

// ErrKeyNotFound is returned by KV adapters for absent keys.
var ErrKeyNotFound = errors.New("key not found")

// ErrWorkflowNotFound is returned at setup time when a referenced
// workflow key does not exist.
var ErrWorkflowNotFound = errors.New("workflow not found")

// ErrResponderNotFound is returned when a node references a responder
// key that was never registered.
var ErrResponderNotFound = errors.New("responder not found")

// Control-flag error markers set on a turn's ConversationState when the
// executor ends a turn abnormally but still returns partial state.
const (
	ErrorFlagTimeout    = "timeout"
	ErrorFlagResponder  = "responder_failure"
	ErrorFlagStepBudget = "step_budget_exceeded"
	ErrorFlagRecursion  = "recursion_limit"
)
