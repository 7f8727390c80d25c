package domain

// PartialUpdate is what a responder hands back after executing a node.
// The executor applies it atomically: either every field is merged into
// the conversation state, or none is.
type PartialUpdate struct {
	// Messages are appended to the transcript in order.
	Messages []Message `json:"messages,omitempty"`

	// Variables are written through the scoped variable store. The map
	// is keyed by scope name; unknown scopes fail the node.
	Variables map[string]map[string]any `json:"variables,omitempty"`

	// Retrieved is merged (key-wise overwrite) into state.Retrieved.
	Retrieved map[string]any `json:"retrieved,omitempty"`

	// Flags are OR-merged into the state's control flags; an Error value
	// overwrites only when the state has none yet.
	Flags ControlFlags `json:"flags,omitempty"`
}
